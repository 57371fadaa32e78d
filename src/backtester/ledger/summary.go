package ledger

import (
	"sort"
	"time"

	"github.com/quantsim/quantsim/src/eventmodels"
)

type PositionSummary struct {
	Symbol        eventmodels.StockSymbol `json:"symbol"`
	Quantity      float64                 `json:"quantity"`
	CostBasis     float64                 `json:"cost_basis"`
	MarketValue   float64                 `json:"market_value"`
	Weight        float64                 `json:"weight"`
	UnrealizedPnL float64                 `json:"unrealized_pnl"`
}

// PositionsSummary returns per-symbol quantity, weight, and unrealized
// PnL, sorted by market value descending.
func (l *Ledger) PositionsSummary(asOf time.Time) []PositionSummary {
	totalValue := l.TotalValue(asOf)

	summaries := make([]PositionSummary, 0, len(l.lots))
	for symbol := range l.lots {
		position := l.Position(symbol)
		if position == nil {
			continue
		}

		marketValue := position.Quantity * l.markOrBasis(symbol)

		weight := 0.0
		if totalValue > 0 {
			weight = marketValue / totalValue
		}

		summaries = append(summaries, PositionSummary{
			Symbol:        symbol,
			Quantity:      position.Quantity,
			CostBasis:     position.CostBasis,
			MarketValue:   marketValue,
			Weight:        weight,
			UnrealizedPnL: position.PL,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].MarketValue != summaries[j].MarketValue {
			return summaries[i].MarketValue > summaries[j].MarketValue
		}
		return summaries[i].Symbol < summaries[j].Symbol
	})

	return summaries
}

// Weights returns each position's share of total equity.
func (l *Ledger) Weights(asOf time.Time) map[eventmodels.StockSymbol]float64 {
	weights := make(map[eventmodels.StockSymbol]float64)
	for _, s := range l.PositionsSummary(asOf) {
		weights[s.Symbol] = s.Weight
	}

	return weights
}

type Concentration struct {
	Top1       float64 `json:"top1"`
	Top3       float64 `json:"top3"`
	Top5       float64 `json:"top5"`
	Herfindahl float64 `json:"herfindahl"`
}

// Concentration reports top-N position weights and the Herfindahl
// index over current positions. Higher values flag concentration risk.
func (l *Ledger) Concentration(asOf time.Time) Concentration {
	summaries := l.PositionsSummary(asOf)

	weights := make([]float64, len(summaries))
	for i, s := range summaries {
		weights[i] = s.Weight
	}

	sort.Sort(sort.Reverse(sort.Float64Slice(weights)))

	var c Concentration
	for i, w := range weights {
		if i < 1 {
			c.Top1 += w
		}
		if i < 3 {
			c.Top3 += w
		}
		if i < 5 {
			c.Top5 += w
		}
		c.Herfindahl += w * w
	}

	return c
}
