package supervisor

import (
	"context"
	"path/filepath"
	"time"

	"github.com/core-tools/hsu-gamesrv/pkg/artifact"
	"github.com/core-tools/hsu-gamesrv/pkg/domain"
	"github.com/core-tools/hsu-gamesrv/pkg/errors"
	"github.com/core-tools/hsu-gamesrv/pkg/metrics"
	"github.com/core-tools/hsu-gamesrv/pkg/processfile"
)

const (
	DefaultGraceWindow = 1500 * time.Millisecond
	DefaultStopTimeout = 10 * time.Second
	DefaultKillWait    = 5 * time.Second
	DefaultJavaPath    = "java"

	// ServerJarEnv redirects every server to one fixed jar and disables
	// automatic downloads
	ServerJarEnv = "GAMESRV_SERVER_JAR"
)

// RuntimeChecker gates a start on the installed runtime
type RuntimeChecker interface {
	AssertCompatible(ctx context.Context, gameVersion string) error
}

// ArtifactEnsurer guarantees the server jar exists before a spawn
type ArtifactEnsurer interface {
	EnsureArtifact(ctx context.Context, def domain.ServerDefinition, target artifact.Target, progress artifact.ProgressFunc) error
}

type Options struct {
	// RootDir holds one working directory per server under servers/<id>
	RootDir string

	// JavaPath is the runtime binary; the default is "java" from PATH
	JavaPath string

	// ServerJar, when set, is used for every server instead of
	// servers/<id>/server.jar and is never downloaded
	ServerJar string

	// Environment is appended to the supervisor's own environment
	Environment []string

	GraceWindow time.Duration
	StopTimeout time.Duration

	// KillWait bounds the wait for the reaper after a forced kill and the
	// time output pipes are drained after exit
	KillWait time.Duration

	Checker RuntimeChecker
	Fetcher ArtifactEnsurer
	Metrics metrics.Collector
}

func (o *Options) applyDefaults() {
	if o.JavaPath == "" {
		o.JavaPath = DefaultJavaPath
	}
	if o.GraceWindow <= 0 {
		o.GraceWindow = DefaultGraceWindow
	}
	if o.StopTimeout <= 0 {
		o.StopTimeout = DefaultStopTimeout
	}
	if o.KillWait <= 0 {
		o.KillWait = DefaultKillWait
	}
	if o.Metrics == nil {
		o.Metrics = metrics.NewNoopCollector()
	}
}

func validateOptions(o Options) error {
	if o.RootDir == "" {
		return errors.NewValidationError("runtime root directory cannot be empty", nil)
	}
	return nil
}

// Layout maps a server ID to its on-disk files
type Layout struct {
	root      string
	serverJar string
}

func NewLayout(root string, serverJar string) Layout {
	if serverJar != "" {
		if abs, err := filepath.Abs(serverJar); err == nil {
			serverJar = abs
		}
	}
	return Layout{root: root, serverJar: serverJar}
}

func (l Layout) ServerDir(serverID string) string {
	return filepath.Join(l.root, "servers", serverID)
}

func (l Layout) PropertiesFile(serverID string) string {
	return filepath.Join(l.ServerDir(serverID), "server.properties")
}

func (l Layout) EULAFile(serverID string) string {
	return filepath.Join(l.ServerDir(serverID), "eula.txt")
}

func (l Layout) PIDFile(serverID string) string {
	return processfile.Path(l.ServerDir(serverID))
}

func (l Layout) LogFile(serverID string) string {
	return filepath.Join(l.ServerDir(serverID), "logs", "latest.log")
}

// JarTarget is the override jar when one is configured, otherwise the
// server's own server.jar
func (l Layout) JarTarget(serverID string) artifact.Target {
	if l.serverJar != "" {
		return artifact.Target{Path: l.serverJar, Pinned: true}
	}
	return artifact.Target{Path: filepath.Join(l.ServerDir(serverID), "server.jar")}
}
