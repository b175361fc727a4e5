package supervisor

import (
	"context"
	"sync"
	"time"

	"github.com/core-tools/hsu-gamesrv/pkg/domain"
	"github.com/core-tools/hsu-gamesrv/pkg/errors"
	"github.com/core-tools/hsu-gamesrv/pkg/process"
	"github.com/core-tools/hsu-gamesrv/pkg/registry"
)

const shutdownCommand = "stop"

// Stop asks the server to shut down through its console and kills the
// process group when it has not exited within the stop timeout. It is a
// no-op when nothing is registered. Once it returns the ID is no longer
// reported as running.
//
// Stop always runs to completion; ctx is not consulted.
func (s *Supervisor) Stop(ctx context.Context, serverID string) error {
	if err := domain.ValidateServerID(serverID); err != nil {
		return err
	}

	lock := s.opLock(serverID)
	lock.Lock()
	defer lock.Unlock()

	handle, ok := s.registry.Lookup(serverID)
	if !ok {
		s.serverLogger(serverID).Debugf("Stop requested but nothing is running")
		return nil
	}

	return s.stopLocked(serverID, handle)
}

func (s *Supervisor) stopLocked(serverID string, handle *registry.Handle) error {
	logger := s.serverLogger(serverID)
	pid := handle.PID()
	stopTime := time.Now()

	s.setState(serverID, domain.StateStopping)
	logger.Infof("Stopping server, PID: %d, timeout: %v", pid, s.options.StopTimeout)

	s.marker(serverID, "> %s", shutdownCommand)
	if err := handle.WriteLine(shutdownCommand); err != nil {
		logger.Warnf("Failed to send stop command, PID: %d, error: %v", pid, err)
		s.marker(serverID, "failed to send stop command: %v", err)
	}

	forced := false
	var stopErr error

	timer := time.NewTimer(s.options.StopTimeout)
	select {
	case <-handle.Done():
		timer.Stop()
		logger.Infof("Server stopped gracefully, PID: %d", pid)
	case <-timer.C:
		forced = true
		logger.Warnf("Server did not stop within %v, killing PID %d", s.options.StopTimeout, pid)
		s.marker(serverID, "stop timed out after %v, killing process", s.options.StopTimeout)
		stopErr = s.kill(serverID, handle)
	}

	// the handle is dropped even when the reaper has not caught up, so a
	// completed stop never reports running
	if s.registry.RemoveIf(serverID, handle) {
		s.metrics.RunningServers(s.registry.Count())
	}
	s.removePIDFile(serverID, pid)
	s.registry.ClearLastError(serverID)
	s.setState(serverID, domain.StateAbsent)
	s.metrics.StopDuration(serverID, time.Since(stopTime), forced)

	return stopErr
}

func (s *Supervisor) kill(serverID string, handle *registry.Handle) error {
	pid := handle.PID()
	if err := process.Kill(handle.Process); err != nil && !handle.Exited() {
		s.serverLogger(serverID).Errorf("Failed to kill PID %d: %v", pid, err)
		return errors.NewInternalError("failed to kill server process", err).
			WithContext("server_id", serverID).
			WithContext("pid", pid)
	}

	select {
	case <-handle.Done():
		return nil
	case <-time.After(s.options.KillWait):
		s.serverLogger(serverID).Errorf("PID %d not reaped within %v after kill", pid, s.options.KillWait)
		return errors.NewInternalError("server process did not exit after being killed", nil).
			WithContext("server_id", serverID).
			WithContext("pid", pid)
	}
}

// StopAll stops every registered server concurrently
func (s *Supervisor) StopAll(ctx context.Context) error {
	ids := s.registry.IDs()
	if len(ids) == 0 {
		return nil
	}
	s.logger.Infof("Stopping all servers, count: %d", len(ids))

	collection := errors.NewErrorCollection()
	var collectionMutex sync.Mutex
	var wg sync.WaitGroup

	for _, id := range ids {
		wg.Add(1)
		go func(serverID string) {
			defer wg.Done()
			if err := s.Stop(ctx, serverID); err != nil {
				collectionMutex.Lock()
				collection.Add(err)
				collectionMutex.Unlock()
			}
		}(id)
	}
	wg.Wait()

	return collection.ToError()
}
