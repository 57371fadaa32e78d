package engine

import "github.com/quantsim/quantsim/src/eventmodels"

// Strategy produces signals in response to market bars. OnBar is
// invoked once per bar, in bar order; returned signals are queued for
// dispatch after all bars at the same timestamp have been delivered.
type Strategy interface {
	OnBar(bar *eventmodels.Bar) []*eventmodels.Signal
}
