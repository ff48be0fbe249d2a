// Package shutdown implements the Shutdown Coordinator: it intercepts
// termination signals and escalates to a hard kill if the operator
// signals again within a short grace window, rather than waiting forever
// for every app to stop cleanly.
package shutdown

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"time"
)

// EscalationWindow is how soon a repeated signal must arrive to trigger
// immediate, hard termination instead of a graceful shutdown attempt.
const EscalationWindow = 5 * time.Second

// Coordinator tracks the time of the last shutdown attempt so a second
// signal arriving within EscalationWindow escalates instead of retrying
// the same graceful path.
type Coordinator struct {
	lastTry atomic.Int64 // unix seconds, 0 means "never"
}

// New returns a Coordinator with no prior shutdown attempt recorded.
func New() *Coordinator {
	return &Coordinator{}
}

// Attempt records a shutdown attempt at now and reports whether it should
// escalate to a hard kill (true) or proceed with a graceful stop (false).
// It escalates when a previous attempt was recorded less than
// EscalationWindow ago.
func (c *Coordinator) Attempt(now time.Time) (escalate bool) {
	nowSec := now.Unix()
	last := c.lastTry.Swap(nowSec)
	if last == 0 {
		return false
	}
	return nowSec-last < int64(EscalationWindow.Seconds())
}

// Requested reports whether any shutdown signal has been received yet.
// The poll loop checks this every tick and exits the process once it is
// set and no supervisor remains Running.
func (c *Coordinator) Requested() bool {
	return c.lastTry.Load() != 0
}

// Watch installs signal handlers for SIGINT/SIGTERM/SIGHUP and invokes
// graceful on the first signal, hard on any signal arriving within
// EscalationWindow of the previous one. It blocks until ctx is canceled.
func (c *Coordinator) Watch(ctx context.Context, graceful func(), hard func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, signalsToWatch()...)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-sigCh:
			if c.Attempt(time.Now()) {
				hard()
			} else {
				go graceful()
			}
		}
	}
}
