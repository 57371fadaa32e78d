package risk

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/quantsim/quantsim/src/eventmodels"
)

type StopType string

const (
	StopTypeFixed    StopType = "fixed"
	StopTypeTrailing StopType = "trailing"
	StopTypeTimed    StopType = "timed"
)

// FixedStop fires when the unrealized loss ratio versus entry exceeds
// the threshold.
type FixedStop struct {
	Threshold float64
}

func (s FixedStop) ShouldStop(entryPrice, currentPrice float64) bool {
	if entryPrice <= 0 {
		return false
	}

	loss := (entryPrice - currentPrice) / entryPrice

	return loss > s.Threshold
}

// TrailingStop tracks the running peak price since entry per symbol.
// The stop level only tightens as the peak rises; it never loosens.
type TrailingStop struct {
	Trailing float64
	peaks    map[eventmodels.StockSymbol]float64
}

func NewTrailingStop(trailing float64) *TrailingStop {
	return &TrailingStop{
		Trailing: trailing,
		peaks:    make(map[eventmodels.StockSymbol]float64),
	}
}

func (s *TrailingStop) Observe(symbol eventmodels.StockSymbol, price float64) {
	if peak, ok := s.peaks[symbol]; !ok || price > peak {
		s.peaks[symbol] = price
	}
}

func (s *TrailingStop) ShouldStop(symbol eventmodels.StockSymbol, price float64) bool {
	peak, ok := s.peaks[symbol]
	if !ok {
		return false
	}

	return price <= peak*(1-s.Trailing)
}

func (s *TrailingStop) Peak(symbol eventmodels.StockSymbol) (float64, bool) {
	peak, ok := s.peaks[symbol]
	return peak, ok
}

func (s *TrailingStop) Reset(symbol eventmodels.StockSymbol) {
	delete(s.peaks, symbol)
}

// TimedStop fires after a position has been held for MaxBars elapsed
// bars, regardless of price.
type TimedStop struct {
	MaxBars int
	held    map[eventmodels.StockSymbol]int
}

func NewTimedStop(maxBars int) *TimedStop {
	return &TimedStop{
		MaxBars: maxBars,
		held:    make(map[eventmodels.StockSymbol]int),
	}
}

func (s *TimedStop) RecordEntry(symbol eventmodels.StockSymbol) {
	if _, ok := s.held[symbol]; !ok {
		s.held[symbol] = 0
	}
}

func (s *TimedStop) ObserveBar(symbol eventmodels.StockSymbol) {
	if bars, ok := s.held[symbol]; ok {
		s.held[symbol] = bars + 1
	}
}

func (s *TimedStop) ShouldStop(symbol eventmodels.StockSymbol) bool {
	bars, ok := s.held[symbol]

	return ok && bars >= s.MaxBars
}

func (s *TimedStop) Reset(symbol eventmodels.StockSymbol) {
	delete(s.held, symbol)
}

// TriggerRecord captures one stop firing: which rule fired, the price
// it fired at, the ideal exit price (the stop level itself), and the
// realized slippage between the two.
type TriggerRecord struct {
	Symbol       eventmodels.StockSymbol `json:"symbol"`
	Type         StopType                `json:"type"`
	TriggerPrice float64                 `json:"trigger_price"`
	IdealPrice   float64                 `json:"ideal_price"`
	Slippage     float64                 `json:"slippage"`
	Timestamp    time.Time               `json:"timestamp"`
}

// StopTracker records every stop trigger for later statistics.
type StopTracker struct {
	records []TriggerRecord
}

func NewStopTracker() *StopTracker {
	return &StopTracker{}
}

func (t *StopTracker) Record(symbol eventmodels.StockSymbol, stopType StopType, triggerPrice, idealPrice float64, timestamp time.Time) {
	record := TriggerRecord{
		Symbol:       symbol,
		Type:         stopType,
		TriggerPrice: triggerPrice,
		IdealPrice:   idealPrice,
		Slippage:     idealPrice - triggerPrice,
		Timestamp:    timestamp,
	}

	t.records = append(t.records, record)

	log.Debugf("stop trigger: %s %s @ %.4f (ideal %.4f)", stopType, symbol, triggerPrice, idealPrice)
}

func (t *StopTracker) Records() []TriggerRecord {
	return t.records
}

func (t *StopTracker) Count(stopType StopType) int {
	count := 0
	for _, r := range t.records {
		if r.Type == stopType {
			count++
		}
	}

	return count
}
