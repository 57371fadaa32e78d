package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/quantsim/quantsim/src/eventmodels"
)

// Order is owned exclusively by the fill simulator until it reaches a
// terminal state. One record covers all four order types; the type tag
// selects the fill rule.
type Order struct {
	ID               uuid.UUID               `json:"id"`
	Symbol           eventmodels.StockSymbol `json:"symbol"`
	Side             OrderSide               `json:"side"`
	AbsoluteQuantity float64                 `json:"quantity"`
	Type             OrderType               `json:"type"`
	LimitPrice       *float64                `json:"limit_price,omitempty"`
	StopPrice        *float64                `json:"stop_price,omitempty"`
	Status           OrderStatus             `json:"status"`
	FilledQuantity   float64                 `json:"filled_quantity"`
	AvgFillPrice     float64                 `json:"avg_fill_price"`
	CreateDate       time.Time               `json:"create_date"`
	StrategyID       string                  `json:"strategy_id,omitempty"`
	RejectReason     *string                 `json:"reject_reason,omitempty"`

	// set once price breaches the stop level; a triggered stop fills
	// per market (or limit) rules on the same or a later bar
	StopTriggered bool `json:"stop_triggered,omitempty"`
}

func (o *Order) EventTime() time.Time {
	return o.CreateDate
}

func (o *Order) EventType() eventmodels.EventType {
	return eventmodels.OrderEventType
}

// GetQuantity returns the signed quantity: positive for buys,
// negative for sells.
func (o *Order) GetQuantity() float64 {
	return o.Side.Sign() * o.AbsoluteQuantity
}

func (o *Order) RemainingQuantity() float64 {
	return o.AbsoluteQuantity - o.FilledQuantity
}

func (o *Order) Validate() error {
	if o.AbsoluteQuantity <= 0 {
		return ErrInvalidOrderVolumeZero
	}

	switch o.Type {
	case Market:
	case Limit:
		if o.LimitPrice == nil {
			return ErrMissingLimitPrice
		}
	case Stop:
		if o.StopPrice == nil {
			return ErrMissingStopPrice
		}
	case StopLimit:
		if o.StopPrice == nil {
			return ErrMissingStopPrice
		}
		if o.LimitPrice == nil {
			return ErrMissingLimitPrice
		}
	default:
		return fmt.Errorf("unknown order type %q", o.Type)
	}

	if o.LimitPrice != nil && *o.LimitPrice <= 0 {
		return ErrInvalidLimitPrice
	}

	if o.StopPrice != nil && *o.StopPrice <= 0 {
		return ErrInvalidStopPrice
	}

	return nil
}

// Fill applies an execution of quantity at price. State transitions
// are monotonic: filling a terminal order is an error.
func (o *Order) Fill(quantity float64, price float64) error {
	if !o.Status.IsTradingAllowed() {
		return fmt.Errorf("fill order %s: %w", o.ID, ErrOrderTerminal)
	}

	if quantity <= 0 {
		return fmt.Errorf("fill order %s: quantity must be greater than 0", o.ID)
	}

	if price <= 0 {
		return fmt.Errorf("fill order %s: price must be greater than 0", o.ID)
	}

	if o.FilledQuantity+quantity > o.AbsoluteQuantity {
		return fmt.Errorf("fill order %s: fill quantity %.2f exceeds remaining %.2f", o.ID, quantity, o.RemainingQuantity())
	}

	total := o.AvgFillPrice*o.FilledQuantity + price*quantity
	o.FilledQuantity += quantity
	o.AvgFillPrice = total / o.FilledQuantity

	if o.FilledQuantity >= o.AbsoluteQuantity {
		o.Status = OrderStatusFilled
	} else {
		o.Status = OrderStatusPartial
	}

	return nil
}

// Cancel moves the order to cancelled. Returns false if the order is
// already terminal.
func (o *Order) Cancel() bool {
	if o.Status.IsTerminal() {
		return false
	}

	o.Status = OrderStatusCancelled
	return true
}

func (o *Order) Reject(reason string) {
	o.Status = OrderStatusRejected
	o.RejectReason = &reason
}

func NewOrder(createDate time.Time, symbol eventmodels.StockSymbol, side OrderSide, quantity float64, orderType OrderType, limitPrice, stopPrice *float64, strategyID string) *Order {
	return &Order{
		ID:               uuid.New(),
		Symbol:           symbol,
		Side:             side,
		AbsoluteQuantity: quantity,
		Type:             orderType,
		LimitPrice:       limitPrice,
		StopPrice:        stopPrice,
		Status:           OrderStatusPending,
		CreateDate:       createDate,
		StrategyID:       strategyID,
	}
}
