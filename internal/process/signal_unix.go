//go:build !windows

package process

import (
	"syscall"

	"github.com/loykin/sentryd/internal/apierr"
)

var signalTable = map[string]syscall.Signal{
	"SIGHUP":  syscall.SIGHUP,
	"SIGINT":  syscall.SIGINT,
	"SIGQUIT": syscall.SIGQUIT,
	"SIGKILL": syscall.SIGKILL,
	"SIGTERM": syscall.SIGTERM,
	"SIGUSR1": syscall.SIGUSR1,
	"SIGUSR2": syscall.SIGUSR2,
	"SIGCONT": syscall.SIGCONT,
	"SIGSTOP": syscall.SIGSTOP,
}

func parseSignal(name string) (syscall.Signal, error) {
	if name == "" {
		return syscall.SIGINT, nil
	}
	sig, ok := signalTable[name]
	if !ok {
		return 0, apierr.ErrInvalidSignal
	}
	return sig, nil
}

// killPID signals exactly the given pid. The original daemon this
// supervisor is modeled on never creates a new process group for its
// children, so no -pid (process-group) signaling is needed or performed.
func killPID(pid int, sig syscall.Signal) error {
	return syscall.Kill(pid, sig)
}
