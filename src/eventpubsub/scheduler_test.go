package eventpubsub

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/quantsim/quantsim/src/eventmodels"
)

func newTestBar(symbol string, ts time.Time) *eventmodels.Bar {
	return eventmodels.NewBar(eventmodels.StockSymbol(symbol), ts, 10, 11, 9, 10.5, 1000)
}

func TestSchedulerOrdering(t *testing.T) {
	startTime := time.Date(2021, time.January, 4, 9, 30, 0, 0, time.UTC)

	t.Run("Dispatches by timestamp regardless of publish order", func(t *testing.T) {
		scheduler := NewScheduler()

		var seen []time.Time
		scheduler.Subscribe(eventmodels.MarketBarEventType, func(event eventmodels.TimedEvent) error {
			seen = append(seen, event.EventTime())
			return nil
		})

		scheduler.Publish(newTestBar("AAPL", startTime.Add(2*time.Minute)))
		scheduler.Publish(newTestBar("AAPL", startTime))
		scheduler.Publish(newTestBar("AAPL", startTime.Add(time.Minute)))

		assert.NoError(t, scheduler.Drain())
		assert.Equal(t, []time.Time{startTime, startTime.Add(time.Minute), startTime.Add(2 * time.Minute)}, seen)
	})

	t.Run("Breaks timestamp ties by category precedence", func(t *testing.T) {
		scheduler := NewScheduler()

		var seen []eventmodels.EventType
		record := func(event eventmodels.TimedEvent) error {
			seen = append(seen, event.EventType())
			return nil
		}

		scheduler.Subscribe(eventmodels.MarketBarEventType, record)
		scheduler.Subscribe(eventmodels.SignalEventType, record)

		scheduler.Publish(eventmodels.NewSignal(startTime, "AAPL", eventmodels.SignalDirectionBuy, 1.0, "test"))
		scheduler.Publish(newTestBar("AAPL", startTime))

		assert.NoError(t, scheduler.Drain())
		assert.Equal(t, []eventmodels.EventType{eventmodels.MarketBarEventType, eventmodels.SignalEventType}, seen)
	})

	t.Run("Preserves publish order within a category", func(t *testing.T) {
		scheduler := NewScheduler()

		var seen []eventmodels.StockSymbol
		scheduler.Subscribe(eventmodels.MarketBarEventType, func(event eventmodels.TimedEvent) error {
			seen = append(seen, event.(*eventmodels.Bar).Symbol)
			return nil
		})

		scheduler.Publish(newTestBar("AAPL", startTime))
		scheduler.Publish(newTestBar("GOOG", startTime))
		scheduler.Publish(newTestBar("MSFT", startTime))

		assert.NoError(t, scheduler.Drain())
		assert.Equal(t, []eventmodels.StockSymbol{"AAPL", "GOOG", "MSFT"}, seen)
	})
}

func TestSchedulerReentrantPublish(t *testing.T) {
	startTime := time.Date(2021, time.January, 4, 9, 30, 0, 0, time.UTC)

	t.Run("Events published by a handler are queued, not dispatched inline", func(t *testing.T) {
		scheduler := NewScheduler()

		var seen []eventmodels.EventType

		scheduler.Subscribe(eventmodels.MarketBarEventType, func(event eventmodels.TimedEvent) error {
			seen = append(seen, event.EventType())
			scheduler.Publish(eventmodels.NewSignal(event.EventTime(), "AAPL", eventmodels.SignalDirectionBuy, 1.0, "test"))

			// the signal must not have been dispatched on our stack
			assert.Equal(t, 1, scheduler.QueueLen())
			return nil
		})

		scheduler.Subscribe(eventmodels.SignalEventType, func(event eventmodels.TimedEvent) error {
			seen = append(seen, event.EventType())
			return nil
		})

		scheduler.Publish(newTestBar("AAPL", startTime))

		assert.NoError(t, scheduler.Drain())
		assert.Equal(t, []eventmodels.EventType{eventmodels.MarketBarEventType, eventmodels.SignalEventType}, seen)
		assert.Equal(t, 0, scheduler.QueueLen())
	})

	t.Run("Signal published during a tick sorts before a later bar", func(t *testing.T) {
		scheduler := NewScheduler()

		var seen []eventmodels.EventType

		scheduler.Subscribe(eventmodels.MarketBarEventType, func(event eventmodels.TimedEvent) error {
			seen = append(seen, event.EventType())
			if event.EventTime().Equal(startTime) {
				scheduler.Publish(eventmodels.NewSignal(startTime, "AAPL", eventmodels.SignalDirectionBuy, 1.0, "test"))
			}
			return nil
		})

		scheduler.Subscribe(eventmodels.SignalEventType, func(event eventmodels.TimedEvent) error {
			seen = append(seen, event.EventType())
			return nil
		})

		scheduler.Publish(newTestBar("AAPL", startTime))
		scheduler.Publish(newTestBar("AAPL", startTime.Add(time.Minute)))

		assert.NoError(t, scheduler.Drain())
		assert.Equal(t, []eventmodels.EventType{
			eventmodels.MarketBarEventType,
			eventmodels.SignalEventType,
			eventmodels.MarketBarEventType,
		}, seen)
	})
}

func TestSchedulerHandlerFailure(t *testing.T) {
	startTime := time.Date(2021, time.January, 4, 9, 30, 0, 0, time.UTC)

	t.Run("First handler error aborts the drain", func(t *testing.T) {
		scheduler := NewScheduler()

		handlerErr := errors.New("boom")
		var dispatched int

		scheduler.Subscribe(eventmodels.MarketBarEventType, func(event eventmodels.TimedEvent) error {
			dispatched++
			if event.EventTime().Equal(startTime) {
				return handlerErr
			}
			return nil
		})

		scheduler.Publish(newTestBar("AAPL", startTime))
		scheduler.Publish(newTestBar("AAPL", startTime.Add(time.Minute)))

		err := scheduler.Drain()
		assert.Error(t, err)
		assert.ErrorIs(t, err, handlerErr)

		var dispatchErr *DispatchError
		assert.ErrorAs(t, err, &dispatchErr)
		assert.Equal(t, eventmodels.MarketBarEventType, dispatchErr.Event.EventType())

		assert.Equal(t, 1, dispatched)
		assert.Equal(t, 0, scheduler.QueueLen())
	})
}
