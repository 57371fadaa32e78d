package models

import "github.com/quantsim/quantsim/src/eventmodels"

type Position struct {
	Symbol    eventmodels.StockSymbol `json:"symbol"`
	Quantity  float64                 `json:"quantity"`
	CostBasis float64                 `json:"cost_basis"`
	PL        float64                 `json:"pl"`
}

func (p *Position) MarketValue(price float64) float64 {
	return p.Quantity * price
}
