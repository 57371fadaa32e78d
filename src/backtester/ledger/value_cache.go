package ledger

import "time"

// valueCache memoizes TotalValue for a single evaluation timestamp.
// Recomputing equity over many symbols dominates large simulations, so
// repeated queries at the same simulated instant are served from here.
// The cache belongs to one ledger instance and is never shared across
// simulation runs; a hit must be indistinguishable from a fresh
// computation at the same timestamp, so any fill or price mark
// invalidates it.
type valueCache struct {
	asOf  time.Time
	value float64
	valid bool
}

func (c *valueCache) get(asOf time.Time) (float64, bool) {
	if !c.valid || !c.asOf.Equal(asOf) {
		return 0, false
	}

	return c.value, true
}

func (c *valueCache) set(asOf time.Time, value float64) {
	c.asOf = asOf
	c.value = value
	c.valid = true
}

func (c *valueCache) invalidate() {
	c.valid = false
}
