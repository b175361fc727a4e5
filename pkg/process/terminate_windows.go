//go:build windows

package process

import (
	"os"
)

// Kill terminates proc with TerminateProcess
func Kill(proc *os.Process) error {
	return proc.Kill()
}
