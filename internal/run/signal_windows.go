//go:build windows

package run

import "os"

// Windows reports Ctrl-C through the exit status, not a signal.
func signaledByInterrupt(_ *os.ProcessState) bool {
	return false
}
