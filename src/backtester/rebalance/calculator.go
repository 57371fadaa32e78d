package rebalance

import (
	"fmt"
	"math"
	"sort"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/quantsim/quantsim/src/backtester/ledger"
	"github.com/quantsim/quantsim/src/eventmodels"
)

type TradeDirection string

const (
	DirectionSell TradeDirection = "SELL"
	DirectionBuy  TradeDirection = "BUY"
)

type Trade struct {
	Symbol    eventmodels.StockSymbol `json:"symbol"`
	Direction TradeDirection          `json:"direction"`
	Quantity  float64                 `json:"quantity"`
	Price     float64                 `json:"price"`
	Value     float64                 `json:"value"`
}

// SignedQuantity is positive for buys, negative for sells.
func (t Trade) SignedQuantity() float64 {
	if t.Direction == DirectionSell {
		return -t.Quantity
	}

	return t.Quantity
}

// Plan is ephemeral: generated on request, with every sell-side entry
// preceding every buy-side entry so cash is freed before it is spent.
type Plan struct {
	Trades              []Trade   `json:"trades"`
	Turnover            float64   `json:"turnover"`
	EstimatedCommission float64   `json:"estimated_commission"`
	Timestamp           time.Time `json:"timestamp"`
}

type Config struct {
	// trades below this absolute value are dropped as dust
	MinTradeValue  float64 `yaml:"min_trade_value"`
	CommissionRate float64 `yaml:"commission_rate"`
}

// BuildPlan computes the trades that move current positions to the
// target weights. Weights must sum to at most 1; symbols absent from
// targets are targeted to zero. Within each direction trades are
// ordered symbol-ascending for reproducibility.
func BuildPlan(positions []ledger.PositionSummary, equity float64, targets map[eventmodels.StockSymbol]float64, prices map[eventmodels.StockSymbol]float64, cfg Config, asOf time.Time) (*Plan, error) {
	totalWeight := 0.0
	for symbol, weight := range targets {
		if weight < 0 {
			return nil, fmt.Errorf("target weight for %s is negative: %.4f", symbol, weight)
		}
		totalWeight += weight
	}

	if totalWeight > 1+1e-9 {
		return nil, fmt.Errorf("target weights sum to %.4f, must be <= 1", totalWeight)
	}

	if equity <= 0 {
		return nil, fmt.Errorf("equity must be greater than 0")
	}

	currentValues := make(map[eventmodels.StockSymbol]float64)
	for _, p := range positions {
		currentValues[p.Symbol] = p.MarketValue
	}

	symbols := make(map[eventmodels.StockSymbol]struct{})
	for symbol := range currentValues {
		symbols[symbol] = struct{}{}
	}
	for symbol := range targets {
		symbols[symbol] = struct{}{}
	}

	var sells, buys []Trade
	totalDelta := 0.0

	for symbol := range symbols {
		delta := targets[symbol]*equity - currentValues[symbol]
		if math.Abs(delta) < 1e-9 || math.Abs(delta) < cfg.MinTradeValue {
			continue
		}

		price, ok := prices[symbol]
		if !ok || price <= 0 {
			log.Warnf("rebalance: no price for %s, skipping", symbol)
			continue
		}

		trade := Trade{
			Symbol:   symbol,
			Quantity: math.Abs(delta) / price,
			Price:    price,
			Value:    math.Abs(delta),
		}

		if delta < 0 {
			trade.Direction = DirectionSell
			sells = append(sells, trade)
		} else {
			trade.Direction = DirectionBuy
			buys = append(buys, trade)
		}

		totalDelta += math.Abs(delta)
	}

	sort.Slice(sells, func(i, j int) bool { return sells[i].Symbol < sells[j].Symbol })
	sort.Slice(buys, func(i, j int) bool { return buys[i].Symbol < buys[j].Symbol })

	trades := append(sells, buys...)

	commission := 0.0
	for _, t := range trades {
		commission += t.Value * cfg.CommissionRate
	}

	return &Plan{
		Trades:              trades,
		Turnover:            totalDelta / equity,
		EstimatedCommission: commission,
		Timestamp:           asOf,
	}, nil
}
