package metrics

import (
	"time"

	"github.com/core-tools/hsu-gamesrv/pkg/domain"
)

// Collector receives supervisor lifecycle events
type Collector interface {
	// StateTransition records a state change of one server ID
	StateTransition(serverID string, from, to domain.State)

	// StartDuration records how long a start call took and whether it failed
	StartDuration(serverID string, duration time.Duration, err error)

	// StopDuration records how long a stop took; forced is true when the
	// process had to be killed
	StopDuration(serverID string, duration time.Duration, forced bool)

	// ProcessExit records an observed process exit
	ProcessExit(serverID string, exitCode int)

	// CommandSent records a command written to a server's stdin
	CommandSent(serverID string)

	// ArtifactDownload records an automatic artifact download attempt
	ArtifactDownload(kind domain.Kind, err error)

	// RunningServers records the number of registered processes
	RunningServers(count int)
}

type noopCollector struct{}

func (n *noopCollector) StateTransition(serverID string, from, to domain.State)            {}
func (n *noopCollector) StartDuration(serverID string, duration time.Duration, err error)  {}
func (n *noopCollector) StopDuration(serverID string, duration time.Duration, forced bool) {}
func (n *noopCollector) ProcessExit(serverID string, exitCode int)                         {}
func (n *noopCollector) CommandSent(serverID string)                                       {}
func (n *noopCollector) ArtifactDownload(kind domain.Kind, err error)                      {}
func (n *noopCollector) RunningServers(count int)                                          {}

// NewNoopCollector creates a collector that drops everything
func NewNoopCollector() Collector {
	return &noopCollector{}
}
