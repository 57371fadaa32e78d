package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFixedStop(t *testing.T) {
	stop := FixedStop{Threshold: 0.10}

	t.Run("Fires once the loss exceeds the threshold", func(t *testing.T) {
		assert.False(t, stop.ShouldStop(100, 91))
		assert.False(t, stop.ShouldStop(100, 90))
		assert.True(t, stop.ShouldStop(100, 89.99))
	})

	t.Run("Gains never fire", func(t *testing.T) {
		assert.False(t, stop.ShouldStop(100, 150))
	})

	t.Run("Unknown entry price never fires", func(t *testing.T) {
		assert.False(t, stop.ShouldStop(0, 50))
	})
}

func TestTrailingStop(t *testing.T) {
	t.Run("Fires on the configured drop from the running peak", func(t *testing.T) {
		stop := NewTrailingStop(0.05)

		stop.Observe("AAPL", 100)
		assert.False(t, stop.ShouldStop("AAPL", 100))

		stop.Observe("AAPL", 110)
		assert.False(t, stop.ShouldStop("AAPL", 110))

		// 5% off the 110 peak is 104.5
		stop.Observe("AAPL", 104.4)
		assert.True(t, stop.ShouldStop("AAPL", 104.4))
	})

	t.Run("Exactly at the stop level fires", func(t *testing.T) {
		stop := NewTrailingStop(0.05)

		stop.Observe("AAPL", 110)
		assert.True(t, stop.ShouldStop("AAPL", 104.5))
		assert.False(t, stop.ShouldStop("AAPL", 104.51))
	})

	t.Run("Peak never loosens", func(t *testing.T) {
		stop := NewTrailingStop(0.05)

		stop.Observe("AAPL", 110)
		stop.Observe("AAPL", 105)
		assert.True(t, stop.ShouldStop("AAPL", 104.4))
	})

	t.Run("Symbols are tracked independently", func(t *testing.T) {
		stop := NewTrailingStop(0.05)

		stop.Observe("AAPL", 110)
		stop.Observe("GOOG", 50)

		assert.True(t, stop.ShouldStop("AAPL", 104.4))
		assert.False(t, stop.ShouldStop("GOOG", 49))
	})

	t.Run("Reset forgets the peak", func(t *testing.T) {
		stop := NewTrailingStop(0.05)

		stop.Observe("AAPL", 110)
		stop.Reset("AAPL")

		assert.False(t, stop.ShouldStop("AAPL", 50))
	})
}

func TestTimedStop(t *testing.T) {
	t.Run("Fires after the position has been held max bars", func(t *testing.T) {
		stop := NewTimedStop(3)

		stop.RecordEntry("AAPL")
		assert.False(t, stop.ShouldStop("AAPL"))

		stop.ObserveBar("AAPL")
		stop.ObserveBar("AAPL")
		assert.False(t, stop.ShouldStop("AAPL"))

		stop.ObserveBar("AAPL")
		assert.True(t, stop.ShouldStop("AAPL"))
	})

	t.Run("Bars for symbols without an entry are ignored", func(t *testing.T) {
		stop := NewTimedStop(1)

		stop.ObserveBar("AAPL")
		assert.False(t, stop.ShouldStop("AAPL"))
	})

	t.Run("Reset restarts the count", func(t *testing.T) {
		stop := NewTimedStop(1)

		stop.RecordEntry("AAPL")
		stop.ObserveBar("AAPL")
		assert.True(t, stop.ShouldStop("AAPL"))

		stop.Reset("AAPL")
		assert.False(t, stop.ShouldStop("AAPL"))
	})
}

func TestStopTracker(t *testing.T) {
	startTime := time.Date(2021, time.January, 4, 9, 30, 0, 0, time.UTC)

	t.Run("Records carry the realized slippage against the ideal exit", func(t *testing.T) {
		tracker := NewStopTracker()

		tracker.Record("AAPL", StopTypeTrailing, 104.4, 104.5, startTime)
		tracker.Record("GOOG", StopTypeFixed, 89.0, 90.0, startTime.Add(time.Minute))
		tracker.Record("AAPL", StopTypeTrailing, 99.0, 100.0, startTime.Add(2*time.Minute))

		records := tracker.Records()
		require.Len(t, records, 3)
		assert.InDelta(t, 0.1, records[0].Slippage, 1e-9)

		assert.Equal(t, 2, tracker.Count(StopTypeTrailing))
		assert.Equal(t, 1, tracker.Count(StopTypeFixed))
		assert.Equal(t, 0, tracker.Count(StopTypeTimed))
	})
}
