// Package run locates tool binaries and hands the terminal over to them.
package run

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"toolbelt/internal/platform"
)

// ErrBinaryNotFound means the path handed to RunInteractive does not point
// at an executable file.
var ErrBinaryNotFound = errors.New("binary not found")

// Interrupt-style exit statuses. 130 is the shell convention for SIGINT;
// the second value is Windows' STATUS_CONTROL_C_EXIT.
const (
	sigintExitCode   = 130
	windowsCtrlCExit = 3221225786
)

// Result describes how a tool process ended.
type Result struct {
	Code        int  `json:"code"`
	Interrupted bool `json:"interrupted"`
}

// Ok reports whether the exit should be treated as normal. Interrupts count
// as normal: the user chose to stop the tool.
func (r Result) Ok() bool {
	return r.Code == 0 || r.Interrupted
}

// LookPath searches PATH for the named binary without involving a shell.
func LookPath(binaryName string) (string, bool) {
	path, err := exec.LookPath(binaryName)
	if err != nil {
		return "", false
	}
	return path, true
}

// CachedBinary returns the deterministic cache location for a tool and
// whether a regular file is present there.
func CachedBinary(cacheRoot, toolName string, plat platform.Descriptor) (string, bool) {
	path := filepath.Join(cacheRoot, plat.BinaryName(toolName))
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return path, false
	}
	return path, true
}

// RunInteractive spawns the binary with the caller's stdin, stdout, and
// stderr and waits for it to finish. It runs the same way on every
// platform; the launcher process stays alive and regains control when the
// tool exits. Only spawn failures are errors; non-zero exits land in the
// Result for the caller to report.
func RunInteractive(path string, args []string) (Result, error) {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return Result{}, fmt.Errorf("%w: %s", ErrBinaryNotFound, path)
	}

	cmd := exec.Command(path, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	err = cmd.Run()
	if err == nil {
		return Result{Code: 0}, nil
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code := exitErr.ExitCode()
		return Result{Code: code, Interrupted: isInterrupt(exitErr, code)}, nil
	}
	return Result{}, fmt.Errorf("start %s: %w", path, err)
}

// isInterrupt recognizes exits caused by the user's Ctrl-C rather than a
// tool failure. Death by SIGINT surfaces as ExitCode -1 with a signaled
// process state on POSIX, as 130 from shells that reap the signal, and as
// STATUS_CONTROL_C_EXIT on Windows.
func isInterrupt(exitErr *exec.ExitError, code int) bool {
	switch code {
	case sigintExitCode, windowsCtrlCExit:
		return true
	}
	if code == -1 && exitErr.ProcessState != nil {
		return signaledByInterrupt(exitErr.ProcessState)
	}
	return false
}
