package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/quantsim/quantsim/src/backtester/ledger"
	"github.com/quantsim/quantsim/src/backtester/models"
	"github.com/quantsim/quantsim/src/backtester/risk"
	"github.com/quantsim/quantsim/src/backtester/slippage"
	"github.com/quantsim/quantsim/src/eventmodels"
	"github.com/quantsim/quantsim/src/eventpubsub"
)

const (
	stopLossStrategyID = "stop_loss"
	cashReserveRatio   = 0.005
)

// Engine wires the scheduler, fill simulator and ledger into a single
// run. One Engine serves exactly one run; the optimizer constructs a
// fresh Engine per evaluation so runs never share state.
type Engine struct {
	cfg       Config
	scheduler *eventpubsub.Scheduler
	ledger    *ledger.Ledger
	slippage  slippage.Model
	strategy  Strategy
	clock     *models.Clock

	orders     []*models.Order
	orderIndex map[uuid.UUID]*models.Order
	resting    []*models.Order
	fills      []*models.Fill
	snapshots  []models.EquitySnapshot

	currentBars map[eventmodels.StockSymbol]*eventmodels.Bar

	fixed    *risk.FixedStop
	trailing *risk.TrailingStop
	timed    *risk.TimedStop
	tracker  *risk.StopTracker

	// symbols with a stop-loss exit order in flight; suppresses
	// duplicate exits until the order reaches a terminal state
	pendingExit map[eventmodels.StockSymbol]bool

	benchmark  []float64
	currentDay string
}

func NewEngine(cfg Config) (*Engine, error) {
	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("NewEngine: %w", err)
	}

	lgr, err := ledger.NewLedger(cfg.InitialCash, cfg.CostMethod)
	if err != nil {
		return nil, fmt.Errorf("NewEngine: %w", err)
	}

	model, err := slippage.FromConfig(cfg.Slippage)
	if err != nil {
		return nil, fmt.Errorf("NewEngine: %w", err)
	}

	e := &Engine{
		cfg:         cfg,
		scheduler:   eventpubsub.NewScheduler(),
		ledger:      lgr,
		slippage:    model,
		orderIndex:  make(map[uuid.UUID]*models.Order),
		currentBars: make(map[eventmodels.StockSymbol]*eventmodels.Bar),
		pendingExit: make(map[eventmodels.StockSymbol]bool),
		tracker:     risk.NewStopTracker(),
	}

	if cfg.StopLoss.Fixed != nil {
		e.fixed = &risk.FixedStop{Threshold: *cfg.StopLoss.Fixed}
	}

	if cfg.StopLoss.Trailing != nil {
		e.trailing = risk.NewTrailingStop(*cfg.StopLoss.Trailing)
	}

	if cfg.StopLoss.TimedBars != nil {
		e.timed = risk.NewTimedStop(*cfg.StopLoss.TimedBars)
	}

	e.scheduler.Subscribe(eventmodels.MarketBarEventType, e.onMarketBar)
	e.scheduler.Subscribe(eventmodels.SignalEventType, e.onSignal)
	e.scheduler.Subscribe(eventmodels.OrderEventType, e.onOrder)
	e.scheduler.Subscribe(eventmodels.FillEventType, e.onFill)

	return e, nil
}

// SetBenchmark supplies a benchmark return series for Beta. It must be
// aligned with the run's equity return series to be meaningful.
func (e *Engine) SetBenchmark(returns []float64) {
	e.benchmark = returns
}

func (e *Engine) Ledger() *ledger.Ledger {
	return e.ledger
}

// Run replays the bar series through the scheduler. Bars must be
// sorted by timestamp; bars sharing a timestamp form one evaluation
// tick and produce one equity snapshot. Cancellation is checked
// between ticks, never mid-tick.
func (e *Engine) Run(ctx context.Context, bars []*eventmodels.Bar, strategy Strategy) (*Result, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("Run: no bars supplied")
	}

	for i, bar := range bars {
		if err := bar.Validate(); err != nil {
			return nil, fmt.Errorf("Run: bar %d: %w", i, err)
		}

		if i > 0 && bar.Timestamp.Before(bars[i-1].Timestamp) {
			return nil, fmt.Errorf("Run: bar %d: %w", i, models.ErrNonMonotonicTimestamp)
		}
	}

	e.strategy = strategy
	e.clock = models.NewClock(bars[0].Timestamp, bars[len(bars)-1].Timestamp)

	for i := 0; i < len(bars); {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("Run: cancelled at %s: %w", e.clock.CurrentTime, err)
		}

		ts := bars[i].Timestamp
		e.rollDay(ts)
		e.clock.Advance(ts)

		for ; i < len(bars) && bars[i].Timestamp.Equal(ts); i++ {
			e.scheduler.Publish(bars[i])
		}

		if err := e.scheduler.Drain(); err != nil {
			return nil, fmt.Errorf("Run: %w", err)
		}

		e.snapshots = append(e.snapshots, e.ledger.TakeSnapshot(ts))
	}

	return e.buildResult(), nil
}

func (e *Engine) buildResult() *Result {
	final := e.cfg.InitialCash
	if len(e.snapshots) > 0 {
		final = e.snapshots[len(e.snapshots)-1].Equity
	}

	summary := risk.Compute(e.snapshots, e.benchmark, e.cfg.Risk)

	return &Result{
		RunID:           uuid.New(),
		Snapshots:       e.snapshots,
		Orders:          e.orders,
		Fills:           e.fills,
		Realized:        e.ledger.RealizedRecords(),
		Summary:         summary,
		Alerts:          risk.Alerts(summary, e.cfg.Risk.Thresholds),
		StopTriggers:    e.tracker.Records(),
		InitialCash:     e.cfg.InitialCash,
		FinalEquity:     final,
		TotalReturn:     (final - e.cfg.InitialCash) / e.cfg.InitialCash,
		TotalCommission: e.ledger.TotalCommission(),
	}
}

// rollDay cancels resting remainders at day boundaries when the run is
// configured for day orders.
func (e *Engine) rollDay(ts time.Time) {
	day := ts.Format("2006-01-02")

	if e.currentDay != "" && day != e.currentDay && e.cfg.ExpireUnfilledAtClose {
		for _, order := range e.resting {
			if order.Cancel() {
				log.Debugf("cancelled day order %s (%s %s %.0f) at day boundary", order.ID, order.Side, order.Symbol, order.RemainingQuantity())
			}

			if order.Side == models.OrderSideSell {
				delete(e.pendingExit, order.Symbol)
			}
		}

		e.resting = nil
	}

	e.currentDay = day
}

func (e *Engine) onMarketBar(event eventmodels.TimedEvent) error {
	bar, ok := event.(*eventmodels.Bar)
	if !ok {
		return fmt.Errorf("onMarketBar: unexpected payload %T", event)
	}

	e.currentBars[bar.Symbol] = bar
	e.ledger.MarkPrice(bar.Symbol, bar.Close)

	e.evaluateStops(bar)

	for _, order := range append([]*models.Order(nil), e.resting...) {
		if order.Symbol != bar.Symbol || !order.Status.IsTradingAllowed() {
			continue
		}

		e.tryFill(order, bar, false)
	}

	if e.strategy != nil {
		for _, signal := range e.strategy.OnBar(bar) {
			if err := signal.Validate(); err != nil {
				log.Warnf("dropping invalid signal from %s: %v", signal.StrategyID, err)
				continue
			}

			e.scheduler.Publish(signal)
		}
	}

	return nil
}

// evaluateStops checks the configured stop-loss rules against the
// incoming bar and emits a full-position market exit for the first
// rule that fires. Checks run in fixed, trailing, timed order.
func (e *Engine) evaluateStops(bar *eventmodels.Bar) {
	held := e.ledger.PositionQuantity(bar.Symbol)
	if held <= 0 || e.pendingExit[bar.Symbol] {
		return
	}

	if e.trailing != nil {
		e.trailing.Observe(bar.Symbol, bar.Close)
	}

	if e.timed != nil {
		e.timed.ObserveBar(bar.Symbol)
	}

	if e.fixed != nil {
		pos := e.ledger.Position(bar.Symbol)
		if pos != nil && e.fixed.ShouldStop(pos.CostBasis, bar.Close) {
			ideal := pos.CostBasis * (1 - e.fixed.Threshold)
			e.emitStopExit(bar, held, risk.StopTypeFixed, ideal)
			return
		}
	}

	if e.trailing != nil && e.trailing.ShouldStop(bar.Symbol, bar.Close) {
		ideal := bar.Close
		if peak, ok := e.trailing.Peak(bar.Symbol); ok {
			ideal = peak * (1 - e.trailing.Trailing)
		}

		e.emitStopExit(bar, held, risk.StopTypeTrailing, ideal)
		return
	}

	if e.timed != nil && e.timed.ShouldStop(bar.Symbol) {
		e.emitStopExit(bar, held, risk.StopTypeTimed, bar.Close)
	}
}

func (e *Engine) emitStopExit(bar *eventmodels.Bar, held float64, stopType risk.StopType, idealPrice float64) {
	order := models.NewOrder(bar.Timestamp, bar.Symbol, models.OrderSideSell, held, models.Market, nil, nil, stopLossStrategyID)

	e.pendingExit[bar.Symbol] = true
	e.tracker.Record(bar.Symbol, stopType, bar.Close, idealPrice, bar.Timestamp)
	e.scheduler.Publish(order)

	log.Infof("%s stop fired for %s at %.2f, closing %.0f", stopType, bar.Symbol, bar.Close, held)
}

func (e *Engine) onSignal(event eventmodels.TimedEvent) error {
	signal, ok := event.(*eventmodels.Signal)
	if !ok {
		return fmt.Errorf("onSignal: unexpected payload %T", event)
	}

	switch signal.Direction {
	case eventmodels.SignalDirectionHold:
		return nil

	case eventmodels.SignalDirectionBuy:
		e.sizeAndSubmitBuy(signal)

	case eventmodels.SignalDirectionSell:
		held := e.ledger.PositionQuantity(signal.Symbol)
		if held <= 0 {
			return nil
		}

		order := models.NewOrder(signal.Timestamp, signal.Symbol, models.OrderSideSell, held, models.Market, nil, nil, signal.StrategyID)
		e.scheduler.Publish(order)
	}

	return nil
}

// sizeAndSubmitBuy converts a buy signal into a whole-share market
// order. Signal strength scales the per-symbol value cap; the order is
// skipped when the cap is already met or cash cannot cover one share
// plus commission.
func (e *Engine) sizeAndSubmitBuy(signal *eventmodels.Signal) {
	bar := e.currentBars[signal.Symbol]
	if bar == nil {
		log.Warnf("no bar seen for %s, dropping buy signal", signal.Symbol)
		return
	}

	price := bar.Close
	equity := e.ledger.TotalValue(signal.Timestamp)
	heldValue := e.ledger.PositionQuantity(signal.Symbol) * price

	target := equity * e.cfg.MaxPositionRatio * signal.Strength

	// reserve a sliver of cash so slippage on the fill cannot push the
	// order past available funds
	budget := math.Min(target-heldValue, e.ledger.Cash())
	quantity := math.Floor(budget / (price * (1 + e.cfg.CommissionRate) * (1 + cashReserveRatio)))

	if quantity < 1 {
		return
	}

	order := models.NewOrder(signal.Timestamp, signal.Symbol, models.OrderSideBuy, quantity, models.Market, nil, nil, signal.StrategyID)
	e.scheduler.Publish(order)
}

func (e *Engine) onOrder(event eventmodels.TimedEvent) error {
	order, ok := event.(*models.Order)
	if !ok {
		return fmt.Errorf("onOrder: unexpected payload %T", event)
	}

	if _, seen := e.orderIndex[order.ID]; seen {
		return fmt.Errorf("onOrder: duplicate order %s", order.ID)
	}

	e.orders = append(e.orders, order)
	e.orderIndex[order.ID] = order

	if err := order.Validate(); err != nil {
		order.Reject(err.Error())
		log.Warnf("rejected order %s: %v", order.ID, err)
		return nil
	}

	bar := e.currentBars[order.Symbol]

	if order.Side == models.OrderSideBuy && bar != nil {
		estimated := order.RemainingQuantity() * bar.Close * (1 + e.cfg.CommissionRate)
		if estimated > e.ledger.Cash() {
			order.Reject(models.ErrInsufficientFunds.Error())
			log.Warnf("rejected order %s: need %.2f, have %.2f", order.ID, estimated, e.ledger.Cash())
			return nil
		}
	}

	if order.Side == models.OrderSideSell && order.AbsoluteQuantity > e.ledger.PositionQuantity(order.Symbol) {
		order.Reject(models.ErrInsufficientPosition.Error())
		delete(e.pendingExit, order.Symbol)
		log.Warnf("rejected order %s: selling %.0f with %.0f held", order.ID, order.AbsoluteQuantity, e.ledger.PositionQuantity(order.Symbol))
		return nil
	}

	e.resting = append(e.resting, order)

	// market orders priced off next open wait for the next bar
	if bar != nil && !(order.Type == models.Market && e.cfg.ExecutionPrice == ExecNextBarOpen) {
		e.tryFill(order, bar, true)
	}

	return nil
}

// tryFill runs one order against one bar and publishes the resulting
// fill, if any. The participation cap may shrink the fill below the
// remaining quantity; the remainder keeps resting.
func (e *Engine) tryFill(order *models.Order, bar *eventmodels.Bar, sameBar bool) {
	price, crossed := e.crossPrice(order, bar, sameBar)
	if !crossed {
		return
	}

	quantity := order.RemainingQuantity()

	if e.cfg.MaxParticipationRate > 0 {
		maxQuantity := math.Floor(e.cfg.MaxParticipationRate * bar.Volume)
		if maxQuantity < 1 {
			return
		}

		if quantity > maxQuantity {
			quantity = maxQuantity
		}
	}

	execPrice := e.executionPrice(order, bar, price)
	commission := quantity * execPrice * e.cfg.CommissionRate

	fill := models.NewFill(order.ID, order.Symbol, bar.Timestamp, order.Side.Sign()*quantity, execPrice, commission)
	e.scheduler.Publish(fill)
}

// crossPrice decides whether the order crosses on this bar and at what
// pre-slippage price. Limit fills price at the better of the limit and
// the bar reference; stops convert to market (or limit) once breached
// and stay triggered on later bars.
func (e *Engine) crossPrice(order *models.Order, bar *eventmodels.Bar, sameBar bool) (float64, bool) {
	ref := bar.Close
	if order.Type == models.Market && e.cfg.ExecutionPrice == ExecNextBarOpen && !sameBar {
		ref = bar.Open
	}

	switch order.Type {
	case models.Market:
		return ref, true

	case models.Limit:
		return crossLimit(order, bar, ref)

	case models.Stop, models.StopLimit:
		if !order.StopTriggered {
			if order.Side == models.OrderSideBuy && bar.High >= *order.StopPrice {
				order.StopTriggered = true
			}

			if order.Side == models.OrderSideSell && bar.Low <= *order.StopPrice {
				order.StopTriggered = true
			}
		}

		if !order.StopTriggered {
			return 0, false
		}

		if order.Type == models.Stop {
			return ref, true
		}

		return crossLimit(order, bar, ref)
	}

	return 0, false
}

func crossLimit(order *models.Order, bar *eventmodels.Bar, ref float64) (float64, bool) {
	limit := *order.LimitPrice

	if order.Side == models.OrderSideBuy {
		if bar.Low <= limit {
			return math.Min(limit, ref), true
		}

		return 0, false
	}

	if bar.High >= limit {
		return math.Max(limit, ref), true
	}

	return 0, false
}

// executionPrice applies slippage adversely to the crossing price.
// Limit (and stop-limit) fills never execute through the limit, and no
// fill prices below a cent.
func (e *Engine) executionPrice(order *models.Order, bar *eventmodels.Bar, price float64) float64 {
	delta := e.slippage.Estimate(order, bar)

	exec := price + order.Side.Sign()*delta

	if order.LimitPrice != nil {
		if order.Side == models.OrderSideBuy {
			exec = math.Min(exec, *order.LimitPrice)
		} else {
			exec = math.Max(exec, *order.LimitPrice)
		}
	}

	return math.Max(exec, 0.01)
}

func (e *Engine) onFill(event eventmodels.TimedEvent) error {
	fill, ok := event.(*models.Fill)
	if !ok {
		return fmt.Errorf("onFill: unexpected payload %T", event)
	}

	order := e.orderIndex[fill.OrderID]
	if order == nil {
		return fmt.Errorf("onFill: fill for unknown order %s", fill.OrderID)
	}

	if err := e.ledger.ApplyFill(fill); err != nil {
		if errors.Is(err, models.ErrInsufficientFunds) || errors.Is(err, models.ErrInsufficientPosition) {
			order.Reject(err.Error())
			e.removeResting(order)
			log.Warnf("rejected order %s on fill: %v", order.ID, err)
			return nil
		}

		return fmt.Errorf("onFill: %w", err)
	}

	e.fills = append(e.fills, fill)

	if err := order.Fill(math.Abs(fill.Quantity), fill.Price); err != nil {
		return fmt.Errorf("onFill: order %s: %w", order.ID, err)
	}

	if order.Status.IsTerminal() {
		e.removeResting(order)
	}

	held := e.ledger.PositionQuantity(fill.Symbol)

	if fill.Quantity > 0 && held-fill.Quantity < 1e-9 {
		// opened from flat; seed the trailing peak and bar counter
		if e.trailing != nil {
			e.trailing.Reset(fill.Symbol)
			e.trailing.Observe(fill.Symbol, fill.Price)
		}

		if e.timed != nil {
			e.timed.RecordEntry(fill.Symbol)
		}
	}

	if fill.Quantity < 0 && held <= 1e-9 {
		if e.trailing != nil {
			e.trailing.Reset(fill.Symbol)
		}

		if e.timed != nil {
			e.timed.Reset(fill.Symbol)
		}

		delete(e.pendingExit, fill.Symbol)
	}

	return nil
}

func (e *Engine) removeResting(order *models.Order) {
	for i, resting := range e.resting {
		if resting.ID == order.ID {
			e.resting = append(e.resting[:i], e.resting[i+1:]...)
			break
		}
	}

	if order.Side == models.OrderSideSell && order.Status == models.OrderStatusRejected {
		delete(e.pendingExit, order.Symbol)
	}
}
