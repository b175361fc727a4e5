// Package logsink appends server output to one append-only log file per
// server and serves tails of it.
package logsink

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/core-tools/hsu-gamesrv/pkg/errors"
	"github.com/core-tools/hsu-gamesrv/pkg/logging"
)

const (
	// MarkerPrefix tags lines written by the supervisor itself
	MarkerPrefix = "[gamesrv] "

	MaxTailLines = 1000
)

var lineBreak = regexp.MustCompile(`\r?\n`)

// PathFunc resolves the log file of a server ID
type PathFunc func(serverID string) string

// Sink serializes appends per server ID. Appends for different IDs never
// contend on the same lock.
type Sink struct {
	path   PathFunc
	logger logging.Logger
	mutex  sync.Mutex
	locks  map[string]*sync.Mutex
}

func NewSink(path PathFunc, logger logging.Logger) *Sink {
	return &Sink{
		path:   path,
		logger: logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

// Path returns the log file of serverID
func (s *Sink) Path(serverID string) string {
	return s.path(serverID)
}

func (s *Sink) lockFor(serverID string) *sync.Mutex {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	lock, ok := s.locks[serverID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[serverID] = lock
	}
	return lock
}

// Append writes text verbatim to the end of the server's log, creating the
// logs directory on demand.
func (s *Sink) Append(serverID string, text string) error {
	if text == "" {
		return nil
	}

	lock := s.lockFor(serverID)
	lock.Lock()
	defer lock.Unlock()

	return s.appendLocked(serverID, text)
}

func (s *Sink) appendLocked(serverID string, text string) error {
	path := s.path(serverID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewIOError("failed to create log directory", err).WithContext("path", path)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.NewIOError("failed to open log file", err).WithContext("path", path)
	}
	defer file.Close()

	if _, err := io.WriteString(file, text); err != nil {
		return errors.NewIOError("failed to append to log file", err).WithContext("path", path)
	}
	return nil
}

// Marker appends one supervisor line such as "[gamesrv] > stop"
func (s *Sink) Marker(serverID string, format string, args ...interface{}) error {
	return s.Append(serverID, MarkerPrefix+fmt.Sprintf(format, args...)+"\n")
}

// Touch creates the log file empty when missing; an existing file is left
// untouched.
func (s *Sink) Touch(serverID string) error {
	lock := s.lockFor(serverID)
	lock.Lock()
	defer lock.Unlock()

	path := s.path(serverID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.NewIOError("failed to create log directory", err).WithContext("path", path)
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.NewIOError("failed to create log file", err).WithContext("path", path)
	}
	return file.Close()
}

// Writer returns an io.Writer that appends every chunk to the server log.
// onChunk, when set, sees each chunk after it has been written.
func (s *Sink) Writer(serverID string, onChunk func(chunk string)) io.Writer {
	return &streamWriter{sink: s, serverID: serverID, onChunk: onChunk}
}

type streamWriter struct {
	sink       *Sink
	serverID   string
	onChunk    func(chunk string)
	reportOnce sync.Once
}

// Write always reports success; a failed append never breaks the child's
// output pipe. The first failure of a writer is logged, later ones are not.
func (w *streamWriter) Write(p []byte) (int, error) {
	chunk := string(p)
	if err := w.sink.Append(w.serverID, chunk); err != nil {
		w.reportOnce.Do(func() {
			w.sink.logger.Errorf("Server output is being dropped, server: %s, error: %v", w.serverID, err)
		})
	}
	if w.onChunk != nil {
		w.onChunk(chunk)
	}
	return len(p), nil
}

// Tail returns at most clamp(maxLines, 1, MaxTailLines) non-blank lines from
// the end of the log, oldest first. A missing log yields an empty slice.
func (s *Sink) Tail(serverID string, maxLines int) ([]string, error) {
	if maxLines < 1 {
		maxLines = 1
	}
	if maxLines > MaxTailLines {
		maxLines = MaxTailLines
	}

	path := s.path(serverID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, errors.NewIOError("failed to read log file", err).WithContext("path", path)
	}

	lines := make([]string, 0)
	for _, line := range lineBreak.Split(string(data), -1) {
		if strings.TrimSpace(line) == "" {
			continue
		}
		lines = append(lines, line)
	}

	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return lines, nil
}

// LastNonBlankLine returns the trimmed last non-blank line of chunk
func LastNonBlankLine(chunk string) (string, bool) {
	parts := lineBreak.Split(chunk, -1)
	for i := len(parts) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(parts[i]); line != "" {
			return line, true
		}
	}
	return "", false
}
