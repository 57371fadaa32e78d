package rebalance

import (
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/quantsim/quantsim/src/eventmodels"
)

// Firing records one rebalance execution with pre and post weights for
// audit.
type Firing struct {
	Timestamp   time.Time                           `json:"timestamp"`
	PreWeights  map[eventmodels.StockSymbol]float64 `json:"pre_weights"`
	PostWeights map[eventmodels.StockSymbol]float64 `json:"post_weights"`
	Plan        *Plan                               `json:"plan"`
}

// PeriodicRebalancer fires on a fixed calendar cadence or when any
// position's weight drifts beyond the tolerance from its target,
// whichever comes first.
type PeriodicRebalancer struct {
	Targets        map[eventmodels.StockSymbol]float64
	Cadence        time.Duration
	DriftTolerance float64

	lastFired *time.Time
	history   []Firing
}

func NewPeriodicRebalancer(targets map[eventmodels.StockSymbol]float64, cadence time.Duration, driftTolerance float64) *PeriodicRebalancer {
	return &PeriodicRebalancer{
		Targets:        targets,
		Cadence:        cadence,
		DriftTolerance: driftTolerance,
	}
}

func (r *PeriodicRebalancer) ShouldFire(now time.Time, weights map[eventmodels.StockSymbol]float64) bool {
	if r.lastFired == nil {
		return true
	}

	if now.Sub(*r.lastFired) >= r.Cadence {
		log.Debugf("rebalance cadence due at %s", now)
		return true
	}

	for symbol, target := range r.Targets {
		drift := math.Abs(weights[symbol] - target)
		if drift > r.DriftTolerance {
			log.Debugf("rebalance drift trigger: %s target %.4f current %.4f", symbol, target, weights[symbol])
			return true
		}
	}

	return false
}

func (r *PeriodicRebalancer) RecordFiring(now time.Time, pre, post map[eventmodels.StockSymbol]float64, plan *Plan) {
	fired := now
	r.lastFired = &fired

	r.history = append(r.history, Firing{
		Timestamp:   now,
		PreWeights:  pre,
		PostWeights: post,
		Plan:        plan,
	})
}

func (r *PeriodicRebalancer) History() []Firing {
	return r.history
}
