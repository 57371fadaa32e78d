package models

import "time"

// Clock tracks simulated time over a backtest run.
type Clock struct {
	CurrentTime time.Time
	EndTime     time.Time
}

func (c *Clock) Advance(to time.Time) {
	if to.After(c.CurrentTime) {
		c.CurrentTime = to
	}
}

func (c *Clock) IsExpired() bool {
	return c.CurrentTime.Equal(c.EndTime) || c.CurrentTime.After(c.EndTime)
}

func NewClock(startTime time.Time, endTime time.Time) *Clock {
	return &Clock{
		CurrentTime: startTime,
		EndTime:     endTime,
	}
}
