// Package processfile keeps a PID file next to each running server so
// operators and a restarted daemon can see which process belongs to it.
package processfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/core-tools/hsu-gamesrv/pkg/errors"
	"github.com/core-tools/hsu-gamesrv/pkg/processstate"
)

// FileName is the PID file name inside a server directory
const FileName = "gamesrv.pid"

// Path returns the PID file of the server living in serverDir
func Path(serverDir string) string {
	return filepath.Join(serverDir, FileName)
}

// Write records pid, replacing the file atomically
func Write(path string, pid int) error {
	if pid <= 0 {
		return errors.NewValidationError(fmt.Sprintf("invalid PID: %d", pid), nil)
	}

	if err := ValidateDirectory(path); err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(fmt.Sprintf("%d\n", pid)), 0o644); err != nil {
		return errors.NewIOError("failed to write PID file", err).WithContext("pid_file", path).WithContext("pid", pid)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.NewIOError("failed to write PID file", err).WithContext("pid_file", path).WithContext("pid", pid)
	}
	return nil
}

// Read returns the recorded PID. A missing file is NotFound.
func Read(path string) (int, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, errors.NewNotFoundError("PID file not found", err).WithContext("pid_file", path)
		}
		return 0, errors.NewIOError("failed to read PID file", err).WithContext("pid_file", path)
	}

	pidStr := strings.TrimSpace(string(content))
	if pidStr == "" {
		return 0, errors.NewValidationError("PID file is empty", nil).WithContext("pid_file", path)
	}

	pid, err := strconv.Atoi(pidStr)
	if err != nil || pid <= 0 {
		return 0, errors.NewValidationError("invalid PID in PID file", err).
			WithContext("pid_file", path).
			WithContext("content", pidStr)
	}
	return pid, nil
}

// Remove deletes the PID file; a missing file is not an error
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.NewIOError("failed to remove PID file", err).WithContext("pid_file", path)
	}
	return nil
}

// Stale reads a PID file left by an earlier daemon. It returns the PID and
// whether that process still runs. No file yields (0, false, nil).
func Stale(path string) (int, bool, error) {
	pid, err := Read(path)
	if err != nil {
		if errors.IsNotFoundError(err) {
			return 0, false, nil
		}
		return 0, false, err
	}

	running, err := processstate.IsProcessRunning(pid)
	if err != nil {
		return pid, false, err
	}
	return pid, running, nil
}

// ValidateDirectory checks that the directory holding path exists and is a
// directory
func ValidateDirectory(path string) error {
	dir := filepath.Dir(path)
	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NewIOError("PID file directory does not exist", err).WithContext("directory", dir)
		}
		return errors.NewIOError("failed to access PID file directory", err).WithContext("directory", dir)
	}
	if !info.IsDir() {
		return errors.NewValidationError("PID file parent is not a directory", nil).WithContext("directory", dir)
	}
	return nil
}
