package eventmodels

import "time"

type EventType string

const (
	MarketBarEventType EventType = "market_bar"
	SignalEventType    EventType = "signal"
	OrderEventType     EventType = "order"
	FillEventType      EventType = "fill"
)

// Precedence breaks timestamp ties: bars are delivered before the
// signals they produce, signals before orders, orders before fills.
func (t EventType) Precedence() int {
	switch t {
	case MarketBarEventType:
		return 0
	case SignalEventType:
		return 1
	case OrderEventType:
		return 2
	case FillEventType:
		return 3
	default:
		return 4
	}
}

// TimedEvent is anything the scheduler can sequence.
type TimedEvent interface {
	EventTime() time.Time
	EventType() EventType
}
