package strategy

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	log "github.com/sirupsen/logrus"

	"github.com/quantsim/quantsim/src/eventmodels"
)

// MovingAverageCross goes long when the fast moving average crosses
// above the slow one and exits when it crosses back below. One
// instance tracks any number of symbols independently.
type MovingAverageCross struct {
	ID   string
	Fast int
	Slow int

	closes   map[eventmodels.StockSymbol][]float64
	prevDiff map[eventmodels.StockSymbol]float64
}

func NewMovingAverageCross(fast, slow int) (*MovingAverageCross, error) {
	if fast <= 0 || slow <= 0 {
		return nil, fmt.Errorf("NewMovingAverageCross: window sizes must be positive")
	}

	if fast >= slow {
		return nil, fmt.Errorf("NewMovingAverageCross: fast window %d must be shorter than slow window %d", fast, slow)
	}

	return &MovingAverageCross{
		ID:       fmt.Sprintf("ma_cross_%d_%d", fast, slow),
		Fast:     fast,
		Slow:     slow,
		closes:   make(map[eventmodels.StockSymbol][]float64),
		prevDiff: make(map[eventmodels.StockSymbol]float64),
	}, nil
}

func (s *MovingAverageCross) OnBar(bar *eventmodels.Bar) []*eventmodels.Signal {
	closes := append(s.closes[bar.Symbol], bar.Close)
	if len(closes) > s.Slow {
		closes = closes[len(closes)-s.Slow:]
	}
	s.closes[bar.Symbol] = closes

	if len(closes) < s.Slow {
		return nil
	}

	fastMA, err := stats.Mean(closes[len(closes)-s.Fast:])
	if err != nil {
		log.Warnf("%s: fast mean for %s: %v", s.ID, bar.Symbol, err)
		return nil
	}

	slowMA, err := stats.Mean(closes)
	if err != nil {
		log.Warnf("%s: slow mean for %s: %v", s.ID, bar.Symbol, err)
		return nil
	}

	diff := fastMA - slowMA
	prev, seen := s.prevDiff[bar.Symbol]
	s.prevDiff[bar.Symbol] = diff

	if !seen {
		return nil
	}

	var direction eventmodels.SignalDirection
	switch {
	case prev <= 0 && diff > 0:
		direction = eventmodels.SignalDirectionBuy
	case prev >= 0 && diff < 0:
		direction = eventmodels.SignalDirectionSell
	default:
		return nil
	}

	// wider separation between the averages reads as a stronger cross
	strength := math.Max(0.25, math.Min(1, math.Abs(diff)/slowMA*10))
	if direction == eventmodels.SignalDirectionSell {
		strength = 1
	}

	return []*eventmodels.Signal{
		eventmodels.NewSignal(bar.Timestamp, bar.Symbol, direction, strength, s.ID),
	}
}
