package process

import (
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/core-tools/hsu-gamesrv/pkg/errors"
	"github.com/core-tools/hsu-gamesrv/pkg/logging"
)

type ExecutionConfig struct {
	ExecutablePath   string        `yaml:"executable_path"`
	Args             []string      `yaml:"args,omitempty"`
	Environment      []string      `yaml:"environment,omitempty"`
	WorkingDirectory string        `yaml:"working_directory,omitempty"`
	WaitDelay        time.Duration `yaml:"wait_delay,omitempty"`
}

// Spawned is a started child process with its stdin still open.
type Spawned struct {
	Cmd   *exec.Cmd
	Stdin io.WriteCloser
}

// Pid returns the OS process identifier
func (s *Spawned) Pid() int {
	return s.Cmd.Process.Pid
}

// ValidateExecutionConfig validates execution configuration
func ValidateExecutionConfig(execution ExecutionConfig) error {
	if execution.ExecutablePath == "" {
		return errors.NewValidationError("executable path cannot be empty", nil)
	}
	if execution.WorkingDirectory != "" {
		info, err := os.Stat(execution.WorkingDirectory)
		if err != nil {
			return errors.NewIOError("working directory not accessible: "+execution.WorkingDirectory, err)
		}
		if !info.IsDir() {
			return errors.NewValidationError("working directory is not a directory: "+execution.WorkingDirectory, nil)
		}
	}
	if execution.WaitDelay < 0 {
		return errors.NewValidationError("wait delay cannot be negative", nil)
	}
	return nil
}

// Start spawns the process in its own process group. Output is copied into
// stdout and stderr by goroutines owned by exec.Cmd; the caller must call
// Cmd.Wait to reap the process and finish the copies.
//
// The process is deliberately not bound to a context: a running server
// only ends through an explicit stop or its own exit.
func Start(execution ExecutionConfig, stdout, stderr io.Writer, id string, logger logging.Logger) (*Spawned, error) {
	if err := ValidateExecutionConfig(execution); err != nil {
		logger.Errorf("Execution configuration validation failed, id: %s, error: %v", id, err)
		return nil, errors.NewValidationError("invalid execution configuration", err).WithContext("id", id)
	}

	logger.Debugf("Executing process: id: %s, executable path: '%s', args: %v, working directory: '%s'",
		id, execution.ExecutablePath, execution.Args, execution.WorkingDirectory)

	cmd := exec.Command(execution.ExecutablePath, execution.Args...)
	cmd.Dir = execution.WorkingDirectory
	cmd.Env = append(os.Environ(), execution.Environment...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	setupProcessAttributes(cmd)

	// bounds how long Wait keeps copying output after the process is gone
	cmd.WaitDelay = execution.WaitDelay

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.NewIOError("failed to create stdin pipe", err).WithContext("id", id)
	}

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		return nil, errors.NewProcessStartupError("failed to start the process", err).
			WithContext("id", id).
			WithContext("executable_path", execution.ExecutablePath)
	}

	logger.Infof("Successfully executed process, id: %s, PID: %d", id, cmd.Process.Pid)

	return &Spawned{Cmd: cmd, Stdin: stdin}, nil
}
