package process

import (
	"encoding/json"
	"time"
)

// State is the Process Supervisor's run state, per the app lifecycle.
type State int

const (
	// Stopped means no child is running and none has crashed since the
	// last explicit stop (or none has ever run).
	Stopped State = iota
	// Running means the supervisor has an active child process.
	Running
	// Crashed means the child exited on its own, with or without a
	// nonzero code, without having been asked to stop.
	Crashed
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Crashed:
		return "crashed"
	default:
		return "stopped"
	}
}

// Status is an immutable snapshot of a Supervisor's state, safe to read
// and serialize without holding any lock.
type Status struct {
	State     State
	PID       int
	StartedAt time.Time
	StoppedAt time.Time
	ExitCode  *int
}

// Uptime returns how long the current run has been alive, or zero if not
// Running.
func (s Status) Uptime(now time.Time) time.Duration {
	if s.State != Running || s.StartedAt.IsZero() {
		return 0
	}
	return now.Sub(s.StartedAt)
}

// IsOK reports whether a Crashed state represents a clean (exit code 0)
// exit. Kept for clients that only understand a boolean success flag.
func (s Status) IsOK() bool {
	if s.State != Crashed {
		return true
	}
	return s.ExitCode != nil && *s.ExitCode == 0
}

// MarshalJSON renders Status as an externally-tagged union: the payload-free
// running and stopped states serialize to bare strings, while crashed
// carries [is_ok, exit_code] for compatibility with clients built against
// the older Crashed(is_ok, code?) shape.
func (s Status) MarshalJSON() ([]byte, error) {
	switch s.State {
	case Running:
		return json.Marshal("running")
	case Crashed:
		return json.Marshal(map[string]any{"crashed": []any{s.IsOK(), s.ExitCode}})
	default:
		return json.Marshal("stopped")
	}
}
