package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/quantsim/quantsim/src/eventmodels"
)

// Fill is immutable once created and appended to the audit-only fill
// log. Quantity is signed: positive for buys, negative for sells.
type Fill struct {
	OrderID    uuid.UUID               `json:"order_id"`
	Symbol     eventmodels.StockSymbol `json:"symbol"`
	Quantity   float64                 `json:"quantity"`
	Price      float64                 `json:"price"`
	Commission float64                 `json:"commission"`
	Timestamp  time.Time               `json:"timestamp"`
}

func (f *Fill) EventTime() time.Time {
	return f.Timestamp
}

func (f *Fill) EventType() eventmodels.EventType {
	return eventmodels.FillEventType
}

func NewFill(orderID uuid.UUID, symbol eventmodels.StockSymbol, timestamp time.Time, quantity, price, commission float64) *Fill {
	return &Fill{
		OrderID:    orderID,
		Symbol:     symbol,
		Quantity:   quantity,
		Price:      price,
		Commission: commission,
		Timestamp:  timestamp,
	}
}
