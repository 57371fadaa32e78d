package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantsim/quantsim/src/backtester/models"
	"github.com/quantsim/quantsim/src/eventmodels"
)

func testFill(symbol eventmodels.StockSymbol, ts time.Time, quantity, price, commission float64) *models.Fill {
	return models.NewFill(uuid.New(), symbol, ts, quantity, price, commission)
}

func TestLedgerCostMethods(t *testing.T) {
	startTime := time.Date(2021, time.January, 4, 9, 30, 0, 0, time.UTC)
	symbol := eventmodels.StockSymbol("AAPL")

	seed := func(t *testing.T, method CostMethod) *Ledger {
		ledger, err := NewLedger(100000, method)
		require.NoError(t, err)

		require.NoError(t, ledger.ApplyFill(testFill(symbol, startTime, 1000, 10.0, 0)))
		require.NoError(t, ledger.ApplyFill(testFill(symbol, startTime.Add(time.Minute), 500, 12.0, 0)))

		return ledger
	}

	t.Run("FIFO matches the oldest lot first", func(t *testing.T) {
		ledger := seed(t, FIFO)

		require.NoError(t, ledger.ApplyFill(testFill(symbol, startTime.Add(2*time.Minute), -600, 13.0, 0)))

		records := ledger.RealizedRecords()
		require.Len(t, records, 1)
		assert.InDelta(t, 10.0, records[0].EntryPrice, 1e-9)
		assert.InDelta(t, 600*(13.0-10.0), records[0].PnL, 1e-9)

		// 400 shares of the first lot survive, the second is untouched
		lots := ledger.Lots(symbol)
		require.Len(t, lots, 2)
		assert.InDelta(t, 400.0, lots[0].Quantity, 1e-9)
		assert.InDelta(t, 10.0, lots[0].EntryPrice, 1e-9)
		assert.InDelta(t, 500.0, lots[1].Quantity, 1e-9)
	})

	t.Run("LIFO matches the newest lot first", func(t *testing.T) {
		ledger := seed(t, LIFO)

		require.NoError(t, ledger.ApplyFill(testFill(symbol, startTime.Add(2*time.Minute), -600, 13.0, 0)))

		records := ledger.RealizedRecords()
		require.Len(t, records, 2)

		// 500 from the 12.0 lot, then 100 from the 10.0 lot
		assert.InDelta(t, 500.0, records[0].Quantity, 1e-9)
		assert.InDelta(t, 12.0, records[0].EntryPrice, 1e-9)
		assert.InDelta(t, 100.0, records[1].Quantity, 1e-9)
		assert.InDelta(t, 10.0, records[1].EntryPrice, 1e-9)

		assert.InDelta(t, 500*(13.0-12.0)+100*(13.0-10.0), ledger.RealizedPnL(), 1e-9)
	})

	t.Run("Weighted average blends buys into one lot", func(t *testing.T) {
		ledger := seed(t, WeightedAverage)

		lots := ledger.Lots(symbol)
		require.Len(t, lots, 1)
		assert.InDelta(t, 1500.0, lots[0].Quantity, 1e-9)
		assert.InDelta(t, (1000*10.0+500*12.0)/1500, lots[0].EntryPrice, 1e-9)

		require.NoError(t, ledger.ApplyFill(testFill(symbol, startTime.Add(2*time.Minute), -600, 13.0, 0)))

		records := ledger.RealizedRecords()
		require.Len(t, records, 1)
		assert.InDelta(t, 600*(13.0-10.666666666666666), records[0].PnL, 1e-6)
	})

	t.Run("FIFO and LIFO agree with a single lot", func(t *testing.T) {
		for _, method := range []CostMethod{FIFO, LIFO} {
			ledger, err := NewLedger(100000, method)
			require.NoError(t, err)

			require.NoError(t, ledger.ApplyFill(testFill(symbol, startTime, 100, 10.0, 0)))
			require.NoError(t, ledger.ApplyFill(testFill(symbol, startTime.Add(time.Minute), -100, 11.0, 0)))

			assert.InDelta(t, 100.0, ledger.RealizedPnL(), 1e-9)
			assert.Empty(t, ledger.Lots(symbol))
		}
	})

	t.Run("FIFO and LIFO agree across lots sharing one entry price", func(t *testing.T) {
		// three 200-share lots at 10.0; a 500-share sell spans lots in
		// opposite orders under the two methods yet realizes the same PnL
		for _, method := range []CostMethod{FIFO, LIFO} {
			ledger, err := NewLedger(100000, method)
			require.NoError(t, err)

			for i := 0; i < 3; i++ {
				require.NoError(t, ledger.ApplyFill(testFill(symbol, startTime.Add(time.Duration(i)*time.Minute), 200, 10.0, 0)))
			}

			require.NoError(t, ledger.ApplyFill(testFill(symbol, startTime.Add(3*time.Minute), -500, 12.0, 0)))

			assert.InDelta(t, 500*(12.0-10.0), ledger.RealizedPnL(), 1e-9)
			assert.InDelta(t, 100.0, ledger.PositionQuantity(symbol), 1e-9)
		}
	})

	t.Run("Unknown cost method is rejected", func(t *testing.T) {
		_, err := NewLedger(100000, CostMethod("hifo"))
		assert.Error(t, err)
	})
}

func TestLedgerGuards(t *testing.T) {
	startTime := time.Date(2021, time.January, 4, 9, 30, 0, 0, time.UTC)
	symbol := eventmodels.StockSymbol("AAPL")

	t.Run("Selling more than held is rejected and leaves state intact", func(t *testing.T) {
		ledger, err := NewLedger(100000, FIFO)
		require.NoError(t, err)

		require.NoError(t, ledger.ApplyFill(testFill(symbol, startTime, 100, 10.0, 0)))

		cashBefore := ledger.Cash()
		err = ledger.ApplyFill(testFill(symbol, startTime.Add(time.Minute), -150, 11.0, 0))
		assert.ErrorIs(t, err, models.ErrInsufficientPosition)

		assert.Equal(t, cashBefore, ledger.Cash())
		assert.InDelta(t, 100.0, ledger.PositionQuantity(symbol), 1e-9)
		assert.Empty(t, ledger.RealizedRecords())
	})

	t.Run("Buying beyond cash is rejected", func(t *testing.T) {
		ledger, err := NewLedger(1000, FIFO)
		require.NoError(t, err)

		err = ledger.ApplyFill(testFill(symbol, startTime, 200, 10.0, 0))
		assert.ErrorIs(t, err, models.ErrInsufficientFunds)
		assert.Equal(t, 1000.0, ledger.Cash())
	})

	t.Run("Commission reduces cash on both sides", func(t *testing.T) {
		ledger, err := NewLedger(10000, FIFO)
		require.NoError(t, err)

		require.NoError(t, ledger.ApplyFill(testFill(symbol, startTime, 100, 10.0, 5.0)))
		assert.InDelta(t, 10000-1000-5, ledger.Cash(), 1e-9)

		require.NoError(t, ledger.ApplyFill(testFill(symbol, startTime.Add(time.Minute), -100, 11.0, 5.0)))
		assert.InDelta(t, 10000-1000-5+1100-5, ledger.Cash(), 1e-9)

		assert.InDelta(t, 10.0, ledger.TotalCommission(), 1e-9)
	})
}

func TestLedgerValuation(t *testing.T) {
	startTime := time.Date(2021, time.January, 4, 9, 30, 0, 0, time.UTC)
	symbol := eventmodels.StockSymbol("AAPL")

	t.Run("Total value combines cash and marked positions", func(t *testing.T) {
		ledger, err := NewLedger(10000, FIFO)
		require.NoError(t, err)

		require.NoError(t, ledger.ApplyFill(testFill(symbol, startTime, 100, 10.0, 0)))
		ledger.MarkPrice(symbol, 12.0)

		assert.InDelta(t, 9000+1200, ledger.TotalValue(startTime), 1e-9)
	})

	t.Run("Fills mark the last trade price", func(t *testing.T) {
		ledger, err := NewLedger(10000, FIFO)
		require.NoError(t, err)

		require.NoError(t, ledger.ApplyFill(testFill(symbol, startTime, 100, 10.0, 0)))

		assert.InDelta(t, 10000.0, ledger.TotalValue(startTime), 1e-9)
	})

	t.Run("Cached value is reused for the same asOf and dropped on change", func(t *testing.T) {
		ledger, err := NewLedger(10000, FIFO)
		require.NoError(t, err)

		require.NoError(t, ledger.ApplyFill(testFill(symbol, startTime, 100, 10.0, 0)))
		ledger.MarkPrice(symbol, 12.0)

		first := ledger.TotalValue(startTime)
		assert.Equal(t, first, ledger.TotalValue(startTime))

		// a new mark invalidates the cached value
		ledger.MarkPrice(symbol, 14.0)
		assert.InDelta(t, 9000+1400, ledger.TotalValue(startTime), 1e-9)

		// so does a fill
		require.NoError(t, ledger.ApplyFill(testFill(symbol, startTime.Add(time.Minute), 100, 14.0, 0)))
		assert.InDelta(t, 9000-1400+2800, ledger.TotalValue(startTime.Add(time.Minute)), 1e-9)
	})

	t.Run("Snapshots carry the running peak and drawdown", func(t *testing.T) {
		ledger, err := NewLedger(10000, FIFO)
		require.NoError(t, err)

		require.NoError(t, ledger.ApplyFill(testFill(symbol, startTime, 100, 10.0, 0)))

		ledger.MarkPrice(symbol, 15.0)
		snap := ledger.TakeSnapshot(startTime.Add(time.Minute))
		assert.InDelta(t, 10500.0, snap.Equity, 1e-9)
		assert.InDelta(t, 10500.0, snap.Peak, 1e-9)
		assert.InDelta(t, 0.0, snap.Drawdown, 1e-9)

		ledger.MarkPrice(symbol, 10.5)
		snap = ledger.TakeSnapshot(startTime.Add(2 * time.Minute))
		assert.InDelta(t, 10050.0, snap.Equity, 1e-9)
		assert.InDelta(t, 10500.0, snap.Peak, 1e-9)
		assert.InDelta(t, (10500.0-10050.0)/10500.0, snap.Drawdown, 1e-9)
	})
}

func TestLedgerConcentration(t *testing.T) {
	startTime := time.Date(2021, time.January, 4, 9, 30, 0, 0, time.UTC)

	t.Run("Weights and concentration are computed over position value", func(t *testing.T) {
		ledger, err := NewLedger(20000, FIFO)
		require.NoError(t, err)

		require.NoError(t, ledger.ApplyFill(testFill("AAPL", startTime, 100, 100.0, 0)))
		require.NoError(t, ledger.ApplyFill(testFill("GOOG", startTime, 100, 50.0, 0)))
		require.NoError(t, ledger.ApplyFill(testFill("MSFT", startTime, 100, 50.0, 0)))

		ledger.MarkPrice("AAPL", 100.0)
		ledger.MarkPrice("GOOG", 50.0)
		ledger.MarkPrice("MSFT", 50.0)

		summaries := ledger.PositionsSummary(startTime)
		require.Len(t, summaries, 3)

		// sorted by market value, largest first
		assert.Equal(t, eventmodels.StockSymbol("AAPL"), summaries[0].Symbol)

		conc := ledger.Concentration(startTime)
		assert.InDelta(t, 0.5, conc.Top1, 1e-9)
		assert.InDelta(t, 1.0, conc.Top3, 1e-9)
		assert.InDelta(t, 1.0, conc.Top5, 1e-9)
		assert.InDelta(t, 0.25+0.0625+0.0625, conc.Herfindahl, 1e-9)
	})
}
