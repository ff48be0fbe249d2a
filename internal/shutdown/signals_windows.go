//go:build windows

package shutdown

import "os"

func signalsToWatch() []os.Signal {
	return []os.Signal{os.Interrupt}
}
