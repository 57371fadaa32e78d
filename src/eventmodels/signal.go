package eventmodels

import (
	"fmt"
	"time"
)

type SignalDirection string

const (
	SignalDirectionBuy  SignalDirection = "BUY"
	SignalDirectionSell SignalDirection = "SELL"
	SignalDirectionHold SignalDirection = "HOLD"
)

// Signal is emitted by an external strategy component and consumed
// once by the scheduler.
type Signal struct {
	Timestamp  time.Time       `json:"timestamp"`
	Symbol     StockSymbol     `json:"symbol"`
	Direction  SignalDirection `json:"direction"`
	Strength   float64         `json:"strength"`
	StrategyID string          `json:"strategy_id"`
}

func (s *Signal) EventTime() time.Time {
	return s.Timestamp
}

func (s *Signal) EventType() EventType {
	return SignalEventType
}

func (s *Signal) Validate() error {
	switch s.Direction {
	case SignalDirectionBuy, SignalDirectionSell, SignalDirectionHold:
	default:
		return fmt.Errorf("signal validation: unknown direction %q", s.Direction)
	}

	if s.Strength < 0 || s.Strength > 1 {
		return fmt.Errorf("signal validation: strength %.4f outside [0, 1]", s.Strength)
	}

	return nil
}

func NewSignal(timestamp time.Time, symbol StockSymbol, direction SignalDirection, strength float64, strategyID string) *Signal {
	return &Signal{
		Timestamp:  timestamp,
		Symbol:     symbol,
		Direction:  direction,
		Strength:   strength,
		StrategyID: strategyID,
	}
}
