// Package clock implements the daemon's fixed-cadence poll loop.
package clock

import (
	"context"
	"time"
)

// Timer runs fn repeatedly, sleeping whatever remains of the configured
// interval after fn returns. It never bursts to catch up on lost time: if
// fn overruns the interval, the next tick starts immediately instead of
// firing back-to-back ticks.
type Timer struct {
	Interval time.Duration
}

// New returns a Timer with the given tick interval.
func New(interval time.Duration) *Timer {
	return &Timer{Interval: interval}
}

// Run calls fn on every tick until ctx is canceled.
func (t *Timer) Run(ctx context.Context, fn func(ctx context.Context)) {
	for {
		start := time.Now()
		fn(ctx)

		remaining := t.Interval - time.Since(start)
		if remaining < 0 {
			remaining = 0
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(remaining):
		}
	}
}
