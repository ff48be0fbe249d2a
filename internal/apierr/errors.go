// Package apierr declares the sentinel errors the control API maps to
// HTTP status codes and JSON error bodies.
package apierr

import "errors"

var (
	// ErrNotFound means the named app does not exist in the registry.
	ErrNotFound = errors.New("Invalid App")
	// ErrInvalidToken means the request's token failed validation.
	ErrInvalidToken = errors.New("Invalid Token")
	// ErrBadRequest means the request body or parameters were malformed.
	ErrBadRequest = errors.New("bad request")
	// ErrInvalidSignal means a stop action named a signal the supervisor
	// doesn't recognize.
	ErrInvalidSignal = errors.New("invalid signal")
	// ErrAlreadyRunning means Start/Update/Reload was asked to act on an
	// app that is currently Running.
	ErrAlreadyRunning = errors.New("App Already Running")
	// ErrAlreadyStopped means Stop was asked to act on an app that is
	// not Running.
	ErrAlreadyStopped = errors.New("App Already Stopped")
	// ErrStillRunning means Reload was asked to replace a Running app's
	// Supervisor.
	ErrStillRunning = errors.New("app is still running")
	// ErrMergeConflict means an update's git merge could not complete
	// without manual resolution.
	ErrMergeConflict = errors.New("Merge conflicts o.o")
	// ErrMissingBranch means a repo-mode Update action omitted the
	// required branch field.
	ErrMissingBranch = errors.New("branch is required")
	// ErrIOFailure wraps unexpected I/O errors (disk, network, spawn)
	// that surface as 500s and get recorded in the Log Store, instead of
	// the 400s every other client-caused error produces.
	ErrIOFailure = errors.New("io failure")
)
