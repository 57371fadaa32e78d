package models

import (
	"time"

	"github.com/quantsim/quantsim/src/eventmodels"
)

// Lot is a discrete purchased batch with its own entry price and
// time. Closing a lot shrinks or removes it; it is never mutated in
// place otherwise.
type Lot struct {
	Symbol     eventmodels.StockSymbol `json:"symbol"`
	Quantity   float64                 `json:"quantity"`
	EntryPrice float64                 `json:"entry_price"`
	EntryDate  time.Time               `json:"entry_date"`
}

// RealizedPnL records one lot closure (full or partial) with the
// matched entry price.
type RealizedPnL struct {
	Symbol     eventmodels.StockSymbol `json:"symbol"`
	Quantity   float64                 `json:"quantity"`
	EntryPrice float64                 `json:"entry_price"`
	ExitPrice  float64                 `json:"exit_price"`
	PnL        float64                 `json:"pnl"`
	EntryDate  time.Time               `json:"entry_date"`
	ExitDate   time.Time               `json:"exit_date"`
}
