package supervisor

import (
	"context"
	"fmt"
	"os/exec"
	"time"

	"github.com/core-tools/hsu-gamesrv/pkg/domain"
	"github.com/core-tools/hsu-gamesrv/pkg/errors"
	"github.com/core-tools/hsu-gamesrv/pkg/logsink"
	"github.com/core-tools/hsu-gamesrv/pkg/process"
	"github.com/core-tools/hsu-gamesrv/pkg/processstate"
	"github.com/core-tools/hsu-gamesrv/pkg/registry"
)

// Start provisions def and launches its server process. A second call while
// the process is alive returns nil without spawning again.
//
// Success means the process survived the grace window. That probe is best
// effort: a process that dies right after it still reports as started.
func (s *Supervisor) Start(ctx context.Context, def domain.ServerDefinition) error {
	if err := domain.ValidateDefinition(def); err != nil {
		return err
	}

	lock := s.opLock(def.ID)
	lock.Lock()
	defer lock.Unlock()

	startTime := time.Now()
	err := s.startLocked(ctx, def)
	s.metrics.StartDuration(def.ID, time.Since(startTime), err)
	return err
}

func (s *Supervisor) startLocked(ctx context.Context, def domain.ServerDefinition) error {
	logger := s.serverLogger(def.ID)

	if err := s.provisionLocked(def, domain.StateStarting); err != nil {
		return err
	}

	if handle, ok := s.registry.Lookup(def.ID); ok && !handle.Exited() {
		s.setState(def.ID, domain.StateRunning)
		logger.Infof("Already running, PID: %d", handle.PID())
		return nil
	}

	s.setState(def.ID, domain.StateStarting)
	s.registry.ClearLastError(def.ID)

	if err := s.checker.AssertCompatible(ctx, def.Version); err != nil {
		return s.failStart(def.ID, err)
	}

	target := s.layout.JarTarget(def.ID)
	if err := s.fetcher.EnsureArtifact(ctx, def, target, s.marker); err != nil {
		return s.failStart(def.ID, err)
	}

	jarExists, err := fileExists(target.Path)
	if err != nil {
		return s.failStart(def.ID, errors.NewIOError("failed to check server jar", err).WithContext("path", target.Path))
	}
	if !jarExists {
		return s.failStart(def.ID, errors.NewArtifactMissingError(
			fmt.Sprintf("no server.jar found at %s. Add a jar there or set %s", target.Path, ServerJarEnv), nil).
			WithContext("path", target.Path))
	}

	s.clearStalePIDFile(def.ID)

	handle, err := s.spawn(def, target.Path)
	if err != nil {
		return s.failStart(def.ID, err)
	}

	return s.awaitGraceWindow(def.ID, handle)
}

// failStart records err as the diagnostic unless the failing step already
// left a more specific one, and moves the ID to errored.
func (s *Supervisor) failStart(serverID string, err error) error {
	var domainErr *errors.DomainError
	message := err.Error()
	if errors.As(err, &domainErr) {
		message = domainErr.Message
	}
	s.registry.SetLastErrorIfEmpty(serverID, message)
	s.setState(serverID, domain.StateErrored)
	s.serverLogger(serverID).Errorf("Start failed: %v", err)
	return err
}

func (s *Supervisor) javaArgs(def domain.ServerDefinition, jarPath string) []string {
	return []string{
		fmt.Sprintf("-Xms%dM", def.MemoryMinMB),
		fmt.Sprintf("-Xmx%dM", def.MemoryMaxMB),
		"-jar",
		jarPath,
		"nogui",
	}
}

func (s *Supervisor) spawn(def domain.ServerDefinition, jarPath string) (*registry.Handle, error) {
	serverID := def.ID
	logger := s.serverLogger(serverID)

	execution := process.ExecutionConfig{
		ExecutablePath:   s.options.JavaPath,
		Args:             s.javaArgs(def, jarPath),
		Environment:      s.options.Environment,
		WorkingDirectory: s.layout.ServerDir(serverID),
		WaitDelay:        s.options.KillWait,
	}

	stdout := s.sink.Writer(serverID, nil)
	stderr := s.sink.Writer(serverID, func(chunk string) {
		if line, ok := logsink.LastNonBlankLine(chunk); ok {
			s.registry.SetLastError(serverID, line)
		}
	})

	spawned, err := process.Start(execution, stdout, stderr, serverID, logger)
	if err != nil {
		message := err.Error()
		var domainErr *errors.DomainError
		if errors.As(err, &domainErr) && domainErr.Cause != nil {
			message = domainErr.Cause.Error()
		}
		s.registry.SetLastError(serverID, message)
		s.marker(serverID, "process error: %s", message)
		return nil, errors.NewProcessStartupError("server process failed to start: "+message, err).
			WithContext("server_id", serverID)
	}

	handle := registry.NewHandle(serverID, spawned.Cmd.Process, spawned.Stdin)
	if !s.registry.Register(serverID, handle) {
		// Start holds the op lock, so only a handle whose exit is still
		// being observed can be in the way
		logger.Errorf("Handle already registered, killing new PID %d", handle.PID())
		_ = process.Kill(spawned.Cmd.Process)
		_ = spawned.Cmd.Wait()
		return nil, errors.NewInternalError("a process is already registered for this server", nil).
			WithContext("server_id", serverID)
	}
	s.metrics.RunningServers(s.registry.Count())
	s.writePIDFile(serverID, handle.PID())

	s.marker(serverID, "starting server pid=%d", handle.PID())
	logger.Infof("Server process started, PID: %d", handle.PID())

	go s.observeExit(serverID, handle, spawned.Cmd)
	return handle, nil
}

// observeExit reaps the process, deregisters its handle and records why it
// ended. cmd.Wait returns only after the output copies have finished, so a
// final stderr line is already recorded when the exit is handled.
func (s *Supervisor) observeExit(serverID string, handle *registry.Handle, cmd *exec.Cmd) {
	logger := s.serverLogger(serverID)

	waitErr := cmd.Wait()
	exitCode := -1
	description := "unknown status"
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
		description = cmd.ProcessState.String()
	} else if waitErr != nil {
		description = waitErr.Error()
	}

	removed := s.registry.RemoveIf(serverID, handle)
	s.removePIDFile(serverID, handle.PID())
	s.metrics.RunningServers(s.registry.Count())
	s.metrics.ProcessExit(serverID, exitCode)

	if exitCode >= 0 {
		if exitCode != 0 {
			s.registry.SetLastErrorIfEmpty(serverID, fmt.Sprintf("process exited with code %d", exitCode))
		}
		s.marker(serverID, "process exited with code %d", exitCode)
	} else {
		s.registry.SetLastErrorIfEmpty(serverID, "process ended: "+description)
		s.marker(serverID, "process ended: %s", description)
	}

	logger.Infof("Server process exited, PID: %d, status: %s, deregistered: %t", handle.PID(), description, removed)

	if removed {
		if exitCode == 0 {
			s.transitionIf(serverID, domain.StateRunning, domain.StateAbsent)
		} else {
			s.transitionIf(serverID, domain.StateRunning, domain.StateErrored)
		}
	}

	handle.MarkExited(exitCode)
}

// awaitGraceWindow fails the start when the process is gone once the grace
// window has elapsed. The exit observer has already deregistered it by then;
// the failure carries the diagnostic it left.
func (s *Supervisor) awaitGraceWindow(serverID string, handle *registry.Handle) error {
	logger := s.serverLogger(serverID)

	timer := time.NewTimer(s.options.GraceWindow)
	select {
	case <-handle.Done():
		timer.Stop()
	case <-timer.C:
	}

	if s.probeAlive(serverID, handle) {
		s.setState(serverID, domain.StateRunning)
		logger.Infof("Server running, PID: %d", handle.PID())
		return nil
	}

	// the PID is gone but the reaper may still be draining output
	select {
	case <-handle.Done():
	case <-time.After(s.options.KillWait):
	}

	reason := s.registry.LastError(serverID)
	message := "server process exited during startup"
	if reason != "" {
		message += ": " + reason
	}
	s.setState(serverID, domain.StateErrored)
	logger.Errorf("Start failed: %s", message)

	return errors.NewProcessStartupError(message, nil).
		WithContext("server_id", serverID).
		WithContext("pid", handle.PID()).
		WithContext("exit_code", handle.ExitCode())
}

func (s *Supervisor) probeAlive(serverID string, handle *registry.Handle) bool {
	current, ok := s.registry.Lookup(serverID)
	if !ok || current != handle || handle.Exited() {
		return false
	}
	running, err := processstate.IsProcessRunning(handle.PID())
	if err != nil {
		s.serverLogger(serverID).Warnf("Liveness probe failed, PID: %d, error: %v", handle.PID(), err)
		return false
	}
	return running
}
