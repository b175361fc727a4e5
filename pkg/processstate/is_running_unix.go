//go:build !windows

package processstate

import (
	"errors"
	"os"
	"syscall"

	gserrors "github.com/core-tools/hsu-gamesrv/pkg/errors"
)

// IsProcessRunning probes pid with signal 0. A zombie that has not been
// reaped yet still reports as running.
func IsProcessRunning(pid int) (bool, error) {
	if pid <= 0 {
		return false, gserrors.NewValidationError("invalid PID", nil).WithContext("pid", pid)
	}

	// FindProcess always succeeds on Unix
	process, err := os.FindProcess(pid)
	if err != nil {
		return false, err
	}

	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrProcessDone) {
		return false, nil
	}
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return false, err
	}
	switch errno {
	case syscall.ESRCH:
		return false, nil
	case syscall.EPERM:
		return true, nil
	}
	return false, err
}
