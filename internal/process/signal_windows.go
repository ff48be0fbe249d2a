//go:build windows

package process

import (
	"syscall"

	"github.com/loykin/sentryd/internal/apierr"
)

// Windows has no POSIX signal table; only termination is meaningfully
// portable, so every named signal maps to process termination.
func parseSignal(name string) (syscall.Signal, error) {
	switch name {
	case "":
		return syscall.SIGINT, nil
	case "SIGTERM", "SIGKILL", "SIGINT", "SIGQUIT", "SIGHUP":
		return syscall.SIGTERM, nil
	default:
		return 0, apierr.ErrInvalidSignal
	}
}

func killPID(pid int, _ syscall.Signal) error {
	h, err := syscall.OpenProcess(syscall.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		return err
	}
	defer func() { _ = syscall.CloseHandle(h) }()
	return syscall.TerminateProcess(h, 1)
}
