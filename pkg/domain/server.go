package domain

// Kind is the server software distribution being run
type Kind string

const (
	KindVanilla Kind = "vanilla"
	KindPaper   Kind = "paper"
)

// ServerDefinition is supplied by the caller for every provision or start.
type ServerDefinition struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Kind         Kind   `yaml:"kind"`
	Version      string `yaml:"version"`
	MemoryMinMB  int    `yaml:"memory_min_mb"`
	MemoryMaxMB  int    `yaml:"memory_max_mb"`
	Port         int    `yaml:"port"`
	EULAAccepted bool   `yaml:"eula_accepted"`
}

// State is the supervisor lifecycle state of one server ID
type State string

const (
	StateAbsent       State = "absent"       // No process
	StateProvisioning State = "provisioning" // Working directory being prepared
	StateStarting     State = "starting"     // Checks, download, spawn, grace window
	StateRunning      State = "running"      // Process registered and alive
	StateStopping     State = "stopping"     // Shutdown command sent, waiting for exit
	StateErrored      State = "errored"      // Last start attempt failed
)

// RuntimeInfo is a point-in-time snapshot; it is recomputed on every query.
type RuntimeInfo struct {
	ServerDir string
	LogFile   string
	JarPath   string
	JarExists bool
	Running   bool
	PID       *int
	State     State
	LastError string
}
