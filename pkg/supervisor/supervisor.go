// Package supervisor owns the OS-level lifecycle of one game server process
// per server ID: provisioning its working directory, starting it behind
// runtime and artifact checks, relaying console commands and stopping it.
package supervisor

import (
	"context"
	"sync"

	"github.com/core-tools/hsu-gamesrv/pkg/artifact"
	"github.com/core-tools/hsu-gamesrv/pkg/compat"
	"github.com/core-tools/hsu-gamesrv/pkg/domain"
	"github.com/core-tools/hsu-gamesrv/pkg/errors"
	"github.com/core-tools/hsu-gamesrv/pkg/logging"
	"github.com/core-tools/hsu-gamesrv/pkg/logsink"
	"github.com/core-tools/hsu-gamesrv/pkg/metrics"
	"github.com/core-tools/hsu-gamesrv/pkg/properties"
	"github.com/core-tools/hsu-gamesrv/pkg/registry"
)

type Supervisor struct {
	options    Options
	layout     Layout
	registry   *registry.Registry
	sink       *logsink.Sink
	properties *properties.Store
	checker    RuntimeChecker
	fetcher    ArtifactEnsurer
	metrics    metrics.Collector
	logger     logging.Logger

	// opLocks serialize start and stop per server ID; states is the
	// lifecycle state per ID. Both are guarded by mutex.
	opLocks map[string]*sync.Mutex
	states  map[string]domain.State
	mutex   sync.Mutex
}

var _ domain.Contract = (*Supervisor)(nil)

func NewSupervisor(options Options, logger logging.Logger) (*Supervisor, error) {
	if err := validateOptions(options); err != nil {
		return nil, err
	}
	options.applyDefaults()

	layout := NewLayout(options.RootDir, options.ServerJar)

	checker := options.Checker
	if checker == nil {
		javaChecker := compat.NewChecker(options.JavaPath, logging.WithPrefix(logger, "compat: "))
		logger.Debugf("Using Java runtime: %s", javaChecker.JavaPath())
		checker = javaChecker
	}

	fetcher := options.Fetcher
	if fetcher == nil {
		fetcher = artifact.NewFetcher(artifact.Options{Metrics: options.Metrics}, logging.WithPrefix(logger, "artifact: "))
	}

	logger.Infof("Supervisor created, root: %s, java: %s, server jar override: '%s', grace window: %v, stop timeout: %v",
		options.RootDir, options.JavaPath, options.ServerJar, options.GraceWindow, options.StopTimeout)

	return &Supervisor{
		options:    options,
		layout:     layout,
		registry:   registry.NewRegistry(),
		sink:       logsink.NewSink(layout.LogFile, logging.WithPrefix(logger, "logsink: ")),
		properties: properties.NewStore(layout.PropertiesFile),
		checker:    checker,
		fetcher:    fetcher,
		metrics:    options.Metrics,
		logger:     logger,
		opLocks:    make(map[string]*sync.Mutex),
		states:     make(map[string]domain.State),
	}, nil
}

// Layout exposes the on-disk layout used for every server
func (s *Supervisor) Layout() Layout {
	return s.layout
}

// State returns the lifecycle state of serverID
func (s *Supervisor) State(serverID string) domain.State {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.stateLocked(serverID)
}

func (s *Supervisor) stateLocked(serverID string) domain.State {
	if state, ok := s.states[serverID]; ok {
		return state
	}
	return domain.StateAbsent
}

func (s *Supervisor) setState(serverID string, to domain.State) {
	s.mutex.Lock()
	from := s.stateLocked(serverID)
	if from == to {
		s.mutex.Unlock()
		return
	}
	if to == domain.StateAbsent {
		delete(s.states, serverID)
	} else {
		s.states[serverID] = to
	}
	s.mutex.Unlock()

	s.logger.Debugf("State transition: %s -> %s, server: %s", from, to, serverID)
	s.metrics.StateTransition(serverID, from, to)
}

// transitionIf moves serverID to `to` only while it is in `from`
func (s *Supervisor) transitionIf(serverID string, from, to domain.State) bool {
	s.mutex.Lock()
	if s.stateLocked(serverID) != from {
		s.mutex.Unlock()
		return false
	}
	s.mutex.Unlock()

	s.setState(serverID, to)
	return true
}

func (s *Supervisor) opLock(serverID string) *sync.Mutex {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	lock, ok := s.opLocks[serverID]
	if !ok {
		lock = &sync.Mutex{}
		s.opLocks[serverID] = lock
	}
	return lock
}

func (s *Supervisor) serverLogger(serverID string) logging.Logger {
	return logging.ServerLogger(s.logger, serverID)
}

// marker writes a supervisor line into the server log; failures are only
// logged since the log is best-effort from the caller's point of view
func (s *Supervisor) marker(serverID string, format string, args ...interface{}) {
	if err := s.sink.Marker(serverID, format, args...); err != nil {
		s.serverLogger(serverID).Warnf("Failed to write log marker: %v", err)
	}
}

// RuntimeInfo combines the jar existence check with the registry. It never
// changes state.
func (s *Supervisor) RuntimeInfo(ctx context.Context, serverID string) (domain.RuntimeInfo, error) {
	if err := domain.ValidateServerID(serverID); err != nil {
		return domain.RuntimeInfo{}, err
	}
	return s.runtimeInfo(serverID)
}

func (s *Supervisor) runtimeInfo(serverID string) (domain.RuntimeInfo, error) {
	target := s.layout.JarTarget(serverID)
	jarExists, err := fileExists(target.Path)
	if err != nil {
		return domain.RuntimeInfo{}, errors.NewIOError("failed to check server jar", err).WithContext("path", target.Path)
	}

	info := domain.RuntimeInfo{
		ServerDir: s.layout.ServerDir(serverID),
		LogFile:   s.layout.LogFile(serverID),
		JarPath:   target.Path,
		JarExists: jarExists,
		State:     s.State(serverID),
		LastError: s.registry.LastError(serverID),
	}

	if handle, ok := s.registry.Lookup(serverID); ok && !handle.Exited() {
		pid := handle.PID()
		info.Running = true
		info.PID = &pid
	}
	return info, nil
}

// TailLog returns the last clamp(maxLines, 1, 1000) non-blank log lines
func (s *Supervisor) TailLog(ctx context.Context, serverID string, maxLines int) ([]string, error) {
	if err := domain.ValidateServerID(serverID); err != nil {
		return nil, err
	}
	return s.sink.Tail(serverID, maxLines)
}

func (s *Supervisor) ReadProperties(ctx context.Context, serverID string) (map[string]string, error) {
	if err := domain.ValidateServerID(serverID); err != nil {
		return nil, err
	}
	m, err := s.properties.Read(serverID)
	if err != nil {
		return nil, err
	}
	return m.ToMap(), nil
}

// UpdateProperties rewrites server.properties only when a value changes.
// A running server picks the change up on its next start.
func (s *Supervisor) UpdateProperties(ctx context.Context, serverID string, updates map[string]string) (domain.PropertiesUpdate, error) {
	if err := domain.ValidateServerID(serverID); err != nil {
		return domain.PropertiesUpdate{}, err
	}
	for key, value := range updates {
		if err := properties.ValidateEntry(key, value); err != nil {
			return domain.PropertiesUpdate{}, err
		}
	}

	m, changedKeys, err := s.properties.Update(serverID, updates)
	if err != nil {
		return domain.PropertiesUpdate{}, err
	}
	if len(changedKeys) > 0 {
		s.serverLogger(serverID).Infof("Properties updated, keys: %v", changedKeys)
	}
	return domain.PropertiesUpdate{Properties: m.ToMap(), ChangedKeys: changedKeys}, nil
}
