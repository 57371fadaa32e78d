package eventmodels

import (
	"fmt"
	"time"
)

// Bar is a single OHLCV aggregate for one symbol. Bars are immutable
// once they pass Validate at the ingestion boundary.
type Bar struct {
	Symbol    StockSymbol `json:"symbol"`
	Timestamp time.Time   `json:"timestamp"`
	Open      float64     `json:"open"`
	High      float64     `json:"high"`
	Low       float64     `json:"low"`
	Close     float64     `json:"close"`
	Volume    float64     `json:"volume"`
}

func (b *Bar) EventTime() time.Time {
	return b.Timestamp
}

func (b *Bar) EventType() EventType {
	return MarketBarEventType
}

func (b *Bar) Validate() error {
	if b.Symbol == "" {
		return fmt.Errorf("bar validation: missing symbol")
	}

	if b.Timestamp.IsZero() {
		return fmt.Errorf("bar validation: %s: missing timestamp", b.Symbol)
	}

	if b.High < b.Open || b.High < b.Close || b.High < b.Low {
		return fmt.Errorf("bar validation: %s @ %s: high %.4f below open/close/low", b.Symbol, b.Timestamp, b.High)
	}

	if b.Low > b.Open || b.Low > b.Close {
		return fmt.Errorf("bar validation: %s @ %s: low %.4f above open/close", b.Symbol, b.Timestamp, b.Low)
	}

	if b.Volume < 0 {
		return fmt.Errorf("bar validation: %s @ %s: negative volume %.2f", b.Symbol, b.Timestamp, b.Volume)
	}

	return nil
}

func NewBar(symbol StockSymbol, timestamp time.Time, open, high, low, close, volume float64) *Bar {
	return &Bar{
		Symbol:    symbol,
		Timestamp: timestamp,
		Open:      open,
		High:      high,
		Low:       low,
		Close:     close,
		Volume:    volume,
	}
}
