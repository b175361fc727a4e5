// Package properties reads and rewrites server.properties style files.
package properties

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/core-tools/hsu-gamesrv/pkg/errors"
)

// Map is a parsed properties file. Keys keep the order in which they were
// first seen so a rewrite does not shuffle the operator's file.
type Map struct {
	keys   []string
	values map[string]string
}

func NewMap() *Map {
	return &Map{values: make(map[string]string)}
}

func (m *Map) Get(key string) (string, bool) {
	value, ok := m.values[key]
	return value, ok
}

// Set stores value, appending key at the end when it is new
func (m *Map) Set(key, value string) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

func (m *Map) Keys() []string {
	return append([]string(nil), m.keys...)
}

func (m *Map) Len() int {
	return len(m.keys)
}

// ToMap returns a copy as a plain map
func (m *Map) ToMap() map[string]string {
	out := make(map[string]string, len(m.values))
	for key, value := range m.values {
		out[key] = value
	}
	return out
}

// Parse reads key=value lines. Blank lines and lines starting with # are
// skipped, as are lines without a non-empty key before the first '='.
// Keys and values are trimmed; a repeated key keeps its first position and
// its last value.
func Parse(raw string) *Map {
	m := NewMap()
	for _, line := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		separator := strings.Index(line, "=")
		if separator <= 0 {
			continue
		}

		key := strings.TrimSpace(line[:separator])
		if key == "" {
			continue
		}
		m.Set(key, strings.TrimSpace(line[separator+1:]))
	}
	return m
}

// ValidateEntry rejects pairs that would not survive a Serialize then Parse
// round trip
func ValidateEntry(key, value string) error {
	if strings.TrimSpace(key) == "" {
		return errors.NewValidationError("property key cannot be empty", nil)
	}
	if key != strings.TrimSpace(key) || strings.HasPrefix(key, "#") || strings.Contains(key, "=") {
		return errors.NewValidationError("invalid property key: "+key, nil).WithContext("key", key)
	}
	if strings.ContainsAny(key+value, "\r\n") {
		return errors.NewValidationError("property key and value cannot contain line breaks", nil).WithContext("key", key)
	}
	if value != strings.TrimSpace(value) {
		return errors.NewValidationError("property value cannot have surrounding whitespace", nil).WithContext("key", key)
	}
	return nil
}

// Serialize writes one key=value per line with a single trailing newline
func Serialize(m *Map) string {
	var b strings.Builder
	for _, key := range m.keys {
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(m.values[key])
		b.WriteByte('\n')
	}
	if b.Len() == 0 {
		return "\n"
	}
	return b.String()
}

// PathFunc resolves the properties file of a server ID
type PathFunc func(serverID string) string

// Store reads and updates per-server properties files. Writers for one ID
// are serialized; a read-modify-write never loses a concurrent update.
type Store struct {
	path  PathFunc
	mutex sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStore(path PathFunc) *Store {
	return &Store{
		path:  path,
		locks: make(map[string]*sync.Mutex),
	}
}

// Path returns the properties file of serverID
func (s *Store) Path(serverID string) string {
	return s.path(serverID)
}

func (s *Store) lockFor(serverID string) *sync.Mutex {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	lock, ok := s.locks[serverID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[serverID] = lock
	}
	return lock
}

// Read fails with a not found error when the file does not exist
func (s *Store) Read(serverID string) (*Map, error) {
	path := s.path(serverID)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError("server.properties file not found", nil).
				WithContext("server_id", serverID).
				WithContext("path", path)
		}
		return nil, errors.NewIOError("failed to read server.properties", err).WithContext("path", path)
	}
	return Parse(string(data)), nil
}

// Update merges updates over the current file. Only keys whose value
// differs are reported and only then is the file rewritten. changedKeys is
// sorted.
func (s *Store) Update(serverID string, updates map[string]string) (*Map, []string, error) {
	return s.Modify(serverID, false, func(m *Map) []string {
		return Merge(m, updates)
	})
}

// Modify runs a read-modify-write of the file under the ID's lock. fn
// returns the keys it changed; the file is rewritten only when there are
// any. A missing file is NotFound unless create is set, in which case fn
// starts from an empty map.
func (s *Store) Modify(serverID string, create bool, fn func(m *Map) []string) (*Map, []string, error) {
	lock := s.lockFor(serverID)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.Read(serverID)
	if err != nil {
		if !create || !errors.IsNotFoundError(err) {
			return nil, nil, err
		}
		current = NewMap()
	}

	changedKeys := fn(current)
	if len(changedKeys) == 0 {
		return current, changedKeys, nil
	}

	if err := s.writeLocked(serverID, current); err != nil {
		return nil, nil, err
	}
	return current, changedKeys, nil
}

// Merge applies updates to m in sorted key order and returns the keys whose
// value changed.
func Merge(m *Map, updates map[string]string) []string {
	keys := make([]string, 0, len(updates))
	for key := range updates {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	changedKeys := make([]string, 0)
	for _, key := range keys {
		value := updates[key]
		if old, ok := m.Get(key); ok && old == value {
			continue
		}
		m.Set(key, value)
		changedKeys = append(changedKeys, key)
	}
	return changedKeys
}

// Write replaces the file with m
func (s *Store) Write(serverID string, m *Map) error {
	lock := s.lockFor(serverID)
	lock.Lock()
	defer lock.Unlock()

	return s.writeLocked(serverID, m)
}

// writeLocked goes through a uniquely named temporary sibling and a rename,
// so readers see either the old or the new file
func (s *Store) writeLocked(serverID string, m *Map) error {
	path := s.path(serverID)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewIOError("failed to create server directory", err).WithContext("path", path)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.NewIOError("failed to create temporary properties file", err).WithContext("path", dir)
	}
	tmpPath := tmp.Name()

	_, writeErr := tmp.WriteString(Serialize(m))
	closeErr := tmp.Close()
	if writeErr == nil {
		writeErr = closeErr
	}
	if writeErr == nil {
		writeErr = os.Chmod(tmpPath, 0o644)
	}
	if writeErr != nil {
		_ = os.Remove(tmpPath)
		return errors.NewIOError("failed to write server.properties", writeErr).WithContext("path", tmpPath)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return errors.NewIOError("failed to replace server.properties", err).WithContext("path", path)
	}
	return nil
}
