//go:build windows

package processstate

import (
	"syscall"

	gserrors "github.com/core-tools/hsu-gamesrv/pkg/errors"
)

const (
	stillActive                    = 259
	processQueryLimitedInformation = 0x1000
)

// IsProcessRunning checks the exit code of pid; STILL_ACTIVE means running.
func IsProcessRunning(pid int) (bool, error) {
	if pid <= 0 {
		return false, gserrors.NewValidationError("invalid PID", nil).WithContext("pid", pid)
	}

	handle, err := syscall.OpenProcess(processQueryLimitedInformation, false, uint32(pid))
	if err != nil {
		return false, err
	}
	defer syscall.CloseHandle(handle)

	var exitCode uint32
	if err := syscall.GetExitCodeProcess(handle, &exitCode); err != nil {
		return false, err
	}

	return exitCode == stillActive, nil
}
