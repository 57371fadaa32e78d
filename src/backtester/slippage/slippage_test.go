package slippage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantsim/quantsim/src/backtester/models"
	"github.com/quantsim/quantsim/src/eventmodels"
)

func testOrder(quantity float64) *models.Order {
	createDate := time.Date(2021, time.January, 4, 9, 30, 0, 0, time.UTC)
	return models.NewOrder(createDate, "AAPL", models.OrderSideBuy, quantity, models.Market, nil, nil, "test")
}

func testBar(close, volume float64) *eventmodels.Bar {
	ts := time.Date(2021, time.January, 4, 9, 30, 0, 0, time.UTC)
	return eventmodels.NewBar("AAPL", ts, close, close+1, close-1, close, volume)
}

func TestSlippageModels(t *testing.T) {
	t.Run("Fixed returns the constant offset", func(t *testing.T) {
		model := Fixed{Offset: 0.05}
		assert.Equal(t, 0.05, model.Estimate(testOrder(100), testBar(10, 1000)))
		assert.Equal(t, 0.05, model.Estimate(testOrder(100), testBar(500, 1000)))
	})

	t.Run("Ratio scales with the reference price", func(t *testing.T) {
		model := Ratio{Fraction: 0.001}
		assert.InDelta(t, 0.01, model.Estimate(testOrder(100), testBar(10, 1000)), 1e-9)
		assert.InDelta(t, 0.50, model.Estimate(testOrder(100), testBar(500, 1000)), 1e-9)
	})

	t.Run("Tick multiplies size by count", func(t *testing.T) {
		model := Tick{Size: 0.01, Count: 3}
		assert.InDelta(t, 0.03, model.Estimate(testOrder(100), testBar(10, 1000)), 1e-9)
	})

	t.Run("Dynamic grows with order share of volume", func(t *testing.T) {
		model := Dynamic{ImpactFactor: 0.1, MaxFraction: 0.02}

		small := model.Estimate(testOrder(10), testBar(10, 10000))
		large := model.Estimate(testOrder(1000), testBar(10, 10000))

		assert.Less(t, small, large)
		assert.InDelta(t, 10*(10.0/10000)*0.1, small, 1e-9)
	})

	t.Run("Dynamic saturates at the max fraction", func(t *testing.T) {
		model := Dynamic{ImpactFactor: 1.0, MaxFraction: 0.02}

		// the order dwarfs the bar volume
		estimate := model.Estimate(testOrder(1000000), testBar(10, 100))
		assert.InDelta(t, 10*0.02, estimate, 1e-9)
	})

	t.Run("Dynamic falls back on zero volume bars", func(t *testing.T) {
		model := Dynamic{ImpactFactor: 0.1, MaxFraction: 0.02, FallbackFraction: 0.001}

		estimate := model.Estimate(testOrder(100), testBar(10, 0))
		assert.InDelta(t, 10*0.001, estimate, 1e-9)
	})
}

func TestFromConfig(t *testing.T) {
	t.Run("Resolves each known model", func(t *testing.T) {
		for _, cfg := range []Config{
			{Model: TypeFixed, Offset: 0.01},
			{Model: TypeRatio, Fraction: 0.001},
			{Model: TypeTick, TickSize: 0.01, TickCount: 2},
			{Model: TypeDynamic, ImpactFactor: 0.1},
		} {
			model, err := FromConfig(cfg)
			require.NoError(t, err)
			assert.NotNil(t, model)
		}
	})

	t.Run("Empty model means no slippage", func(t *testing.T) {
		model, err := FromConfig(Config{})
		require.NoError(t, err)
		assert.Equal(t, 0.0, model.Estimate(testOrder(100), testBar(10, 1000)))
	})

	t.Run("Unknown model is an error", func(t *testing.T) {
		_, err := FromConfig(Config{Model: "gaussian"})
		assert.Error(t, err)
	})

	t.Run("Dynamic defaults cap the impact at two percent", func(t *testing.T) {
		model, err := FromConfig(Config{Model: TypeDynamic, ImpactFactor: 100})
		require.NoError(t, err)

		estimate := model.Estimate(testOrder(1000000), testBar(10, 100))
		assert.InDelta(t, 10*0.02, estimate, 1e-9)
	})
}
