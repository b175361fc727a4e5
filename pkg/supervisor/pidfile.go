package supervisor

import (
	"github.com/core-tools/hsu-gamesrv/pkg/processfile"
)

func (s *Supervisor) writePIDFile(serverID string, pid int) {
	if err := processfile.Write(s.layout.PIDFile(serverID), pid); err != nil {
		s.serverLogger(serverID).Warnf("Failed to write PID file, PID: %d, error: %v", pid, err)
	}
}

// removePIDFile removes the PID file only while it still records pid, so a
// late exit observer leaves a newer process's file alone
func (s *Supervisor) removePIDFile(serverID string, pid int) {
	path := s.layout.PIDFile(serverID)
	recorded, err := processfile.Read(path)
	if err != nil || recorded != pid {
		return
	}
	if err := processfile.Remove(path); err != nil {
		s.serverLogger(serverID).Warnf("Failed to remove PID file, error: %v", err)
	}
}

// clearStalePIDFile drops a PID file this daemon did not write. A process
// that still runs under the recorded PID is reported, not touched: the PID
// may have been reused.
func (s *Supervisor) clearStalePIDFile(serverID string) {
	logger := s.serverLogger(serverID)
	path := s.layout.PIDFile(serverID)

	pid, running, err := processfile.Stale(path)
	if err != nil {
		logger.Warnf("Failed to inspect PID file, error: %v", err)
	}
	if pid == 0 && err == nil {
		return
	}
	if running {
		logger.Warnf("PID file from an earlier run names a live process, PID: %d", pid)
		s.marker(serverID, "stale pid file names a live process pid=%d; it may still hold the server port", pid)
	}
	if err := processfile.Remove(path); err != nil {
		logger.Warnf("Failed to remove stale PID file, error: %v", err)
	}
}
