//go:build !windows

package process

import (
	"os"
	"syscall"
)

// Kill sends SIGKILL to the whole process group of proc, falling back to the
// process itself when the group is already gone.
func Kill(proc *os.Process) error {
	if err := syscall.Kill(-proc.Pid, syscall.SIGKILL); err == nil {
		return nil
	}
	return proc.Kill()
}
