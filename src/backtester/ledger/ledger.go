package ledger

import (
	"fmt"
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/quantsim/quantsim/src/backtester/models"
	"github.com/quantsim/quantsim/src/eventmodels"
)

const quantityEpsilon = 1e-9

// Ledger maintains cash, lots, and realized PnL as fills arrive. Sells
// close lots per the configured cost method; the sum of lot quantities
// for a symbol never goes negative.
type Ledger struct {
	initialCash     float64
	cash            float64
	method          CostMethod
	lots            map[eventmodels.StockSymbol][]*models.Lot
	prices          map[eventmodels.StockSymbol]float64
	realized        []models.RealizedPnL
	fills           []*models.Fill
	totalCommission float64
	peak            float64
	cache           valueCache
}

func NewLedger(initialCash float64, method CostMethod) (*Ledger, error) {
	if initialCash <= 0 {
		return nil, fmt.Errorf("initial cash must be greater than 0")
	}

	if err := method.Validate(); err != nil {
		return nil, err
	}

	return &Ledger{
		initialCash: initialCash,
		cash:        initialCash,
		method:      method,
		lots:        make(map[eventmodels.StockSymbol][]*models.Lot),
		prices:      make(map[eventmodels.StockSymbol]float64),
		peak:        initialCash,
	}, nil
}

// ApplyFill adjusts cash and lots. Buys append (or blend) a lot; sells
// close lots per the cost method and emit realized PnL records. The
// fill is appended to the audit log and the value cache invalidated.
func (l *Ledger) ApplyFill(fill *models.Fill) error {
	if fill.Quantity == 0 {
		return fmt.Errorf("apply fill %s: quantity must be non-zero", fill.OrderID)
	}

	if fill.Price <= 0 {
		return fmt.Errorf("apply fill %s: price must be greater than 0", fill.OrderID)
	}

	if fill.Quantity > 0 {
		if err := l.applyBuy(fill); err != nil {
			return err
		}
	} else {
		if err := l.applySell(fill); err != nil {
			return err
		}
	}

	l.fills = append(l.fills, fill)
	l.totalCommission += fill.Commission
	l.prices[fill.Symbol] = fill.Price
	l.cache.invalidate()

	log.Debugf("applied fill: %s %.2f@%.4f, cash %.2f", fill.Symbol, fill.Quantity, fill.Price, l.cash)

	return nil
}

func (l *Ledger) applyBuy(fill *models.Fill) error {
	cost := fill.Quantity*fill.Price + fill.Commission
	if cost > l.cash+quantityEpsilon {
		return fmt.Errorf("buy %s %.2f@%.4f costs %.2f with %.2f available: %w",
			fill.Symbol, fill.Quantity, fill.Price, cost, l.cash, models.ErrInsufficientFunds)
	}

	l.cash -= cost
	l.addLot(fill)

	return nil
}

func (l *Ledger) applySell(fill *models.Fill) error {
	sellQty := -fill.Quantity

	held := l.PositionQuantity(fill.Symbol)
	if sellQty > held+quantityEpsilon {
		return fmt.Errorf("sell %s %.2f with %.2f held: %w",
			fill.Symbol, sellQty, held, models.ErrInsufficientPosition)
	}

	closures := l.closeLots(fill.Symbol, sellQty)
	for _, c := range closures {
		l.realized = append(l.realized, models.RealizedPnL{
			Symbol:     fill.Symbol,
			Quantity:   c.quantity,
			EntryPrice: c.entryPrice,
			ExitPrice:  fill.Price,
			PnL:        (fill.Price - c.entryPrice) * c.quantity,
			EntryDate:  c.entryDate,
			ExitDate:   fill.Timestamp,
		})
	}

	l.cash += sellQty*fill.Price - fill.Commission

	return nil
}

// MarkPrice records the latest observed price for a symbol. Equity
// queries value positions at marked prices.
func (l *Ledger) MarkPrice(symbol eventmodels.StockSymbol, price float64) {
	l.prices[symbol] = price
	l.cache.invalidate()
}

// TotalValue returns cash plus the market value of all lots as of the
// given simulated timestamp. Results are cached per timestamp until
// the next fill or price mark.
func (l *Ledger) TotalValue(asOf time.Time) float64 {
	if value, ok := l.cache.get(asOf); ok {
		return value
	}

	value := l.cash + l.PositionsValue()
	l.cache.set(asOf, value)

	return value
}

func (l *Ledger) PositionsValue() float64 {
	total := 0.0
	for symbol, lots := range l.lots {
		price := l.markOrBasis(symbol)
		for _, lot := range lots {
			total += lot.Quantity * price
		}
	}

	return total
}

// TakeSnapshot computes the point-in-time equity snapshot and updates
// the running peak.
func (l *Ledger) TakeSnapshot(asOf time.Time) models.EquitySnapshot {
	equity := l.TotalValue(asOf)

	if equity > l.peak {
		l.peak = equity
	}

	drawdown := 0.0
	if l.peak > 0 {
		drawdown = (l.peak - equity) / l.peak
	}

	return models.EquitySnapshot{
		Timestamp:      asOf,
		Equity:         equity,
		Cash:           l.cash,
		PositionsValue: equity - l.cash,
		Peak:           l.peak,
		Drawdown:       drawdown,
	}
}

func (l *Ledger) PositionQuantity(symbol eventmodels.StockSymbol) float64 {
	total := 0.0
	for _, lot := range l.lots[symbol] {
		total += lot.Quantity
	}

	return total
}

func (l *Ledger) Position(symbol eventmodels.StockSymbol) *models.Position {
	lots := l.lots[symbol]
	if len(lots) == 0 {
		return nil
	}

	quantity := 0.0
	cost := 0.0
	for _, lot := range lots {
		quantity += lot.Quantity
		cost += lot.Quantity * lot.EntryPrice
	}

	costBasis := cost / quantity
	price := l.markOrBasis(symbol)

	return &models.Position{
		Symbol:    symbol,
		Quantity:  quantity,
		CostBasis: costBasis,
		PL:        (price - costBasis) * quantity,
	}
}

func (l *Ledger) Symbols() []eventmodels.StockSymbol {
	symbols := make([]eventmodels.StockSymbol, 0, len(l.lots))
	for symbol := range l.lots {
		symbols = append(symbols, symbol)
	}

	return symbols
}

func (l *Ledger) Lots(symbol eventmodels.StockSymbol) []*models.Lot {
	return l.lots[symbol]
}

func (l *Ledger) Cash() float64 {
	return l.cash
}

func (l *Ledger) InitialCash() float64 {
	return l.initialCash
}

func (l *Ledger) RealizedRecords() []models.RealizedPnL {
	return l.realized
}

func (l *Ledger) RealizedPnL() float64 {
	total := 0.0
	for _, r := range l.realized {
		total += r.PnL
	}

	return total
}

func (l *Ledger) Fills() []*models.Fill {
	return l.fills
}

func (l *Ledger) TotalCommission() float64 {
	return l.totalCommission
}

func (l *Ledger) markOrBasis(symbol eventmodels.StockSymbol) float64 {
	if price, ok := l.prices[symbol]; ok {
		return price
	}

	// no mark yet for this symbol; value at cost so equity does not
	// jump when the first bar arrives
	lots := l.lots[symbol]
	quantity := 0.0
	cost := 0.0
	for _, lot := range lots {
		quantity += lot.Quantity
		cost += lot.Quantity * lot.EntryPrice
	}

	if quantity == 0 {
		return 0
	}

	log.Warnf("no price marked for %s, valuing at cost basis", symbol)

	return cost / quantity
}

func (l *Ledger) addLot(fill *models.Fill) {
	lot := &models.Lot{
		Symbol:     fill.Symbol,
		Quantity:   fill.Quantity,
		EntryPrice: fill.Price,
		EntryDate:  fill.Timestamp,
	}

	if l.method == WeightedAverage {
		// all lots of a symbol blend into one; entry date keeps the
		// earliest open
		existing := l.lots[fill.Symbol]
		if len(existing) == 1 {
			blended := existing[0]
			total := blended.Quantity + lot.Quantity
			blended.EntryPrice = (blended.Quantity*blended.EntryPrice + lot.Quantity*lot.EntryPrice) / total
			blended.Quantity = total
			return
		}
	}

	l.lots[fill.Symbol] = append(l.lots[fill.Symbol], lot)
}

type closure struct {
	quantity   float64
	entryPrice float64
	entryDate  time.Time
}

func (l *Ledger) closeLots(symbol eventmodels.StockSymbol, quantity float64) []closure {
	lots := l.lots[symbol]

	order := make([]*models.Lot, len(lots))
	copy(order, lots)

	if l.method == LIFO {
		for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
			order[i], order[j] = order[j], order[i]
		}
	}

	var closures []closure
	remaining := quantity

	for _, lot := range order {
		if remaining <= quantityEpsilon {
			break
		}

		matched := math.Min(remaining, lot.Quantity)
		closures = append(closures, closure{
			quantity:   matched,
			entryPrice: lot.EntryPrice,
			entryDate:  lot.EntryDate,
		})

		lot.Quantity -= matched
		remaining -= matched
	}

	// drop exhausted lots
	kept := lots[:0]
	for _, lot := range lots {
		if lot.Quantity > quantityEpsilon {
			kept = append(kept, lot)
		}
	}

	if len(kept) == 0 {
		delete(l.lots, symbol)
	} else {
		l.lots[symbol] = kept
	}

	return closures
}
