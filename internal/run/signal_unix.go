//go:build !windows

package run

import (
	"os"
	"syscall"
)

func signaledByInterrupt(state *os.ProcessState) bool {
	status, ok := state.Sys().(syscall.WaitStatus)
	if !ok {
		return false
	}
	return status.Signaled() && status.Signal() == syscall.SIGINT
}
