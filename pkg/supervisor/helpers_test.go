package supervisor

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/core-tools/hsu-gamesrv/pkg/artifact"
	"github.com/core-tools/hsu-gamesrv/pkg/domain"
	"github.com/core-tools/hsu-gamesrv/pkg/logging"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const versionBanner = `if [ "$1" = "-version" ]; then
  echo 'openjdk version "21.0.2" 2024-01-16' 1>&2
  exit 0
fi
`

// Console stand-in: echoes every line and exits on "stop"
const consoleScript = `echo "args: $*"
echo "cwd: $(pwd -P)"
echo 'Done (0.5s)! For help, type "help"'
while read line; do
  echo "got: $line"
  if [ "$line" = "stop" ]; then
    echo "Stopping the server"
    exit 0
  fi
done
`

// Ignores its console and any signal short of SIGKILL
const stubbornScript = `trap '' TERM INT
while read line; do
  echo "ignored: $line"
done
sleep 60
`

// Closes its console right away, so the stop command cannot be delivered
const deafScript = `trap '' TERM INT
exec 0<&-
echo "console closed"
sleep 60
`

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script runtimes are unix only")
	}
}

// writeJava installs a shell script standing in for the java binary
func writeJava(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "java")
	script := "#!/bin/sh\n" + versionBanner + body
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

// jarFetcher creates an empty jar instead of downloading one
type jarFetcher struct {
	mutex sync.Mutex
	calls int
}

func (f *jarFetcher) EnsureArtifact(ctx context.Context, def domain.ServerDefinition, target artifact.Target, progress artifact.ProgressFunc) error {
	f.mutex.Lock()
	f.calls++
	f.mutex.Unlock()

	if _, err := os.Stat(target.Path); err == nil {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(target.Path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(target.Path, []byte("jar"), 0o644)
}

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) EnsureArtifact(ctx context.Context, def domain.ServerDefinition, target artifact.Target, progress artifact.ProgressFunc) error {
	args := m.Called(ctx, def, target)
	return args.Error(0)
}

type MockChecker struct {
	mock.Mock
}

func (m *MockChecker) AssertCompatible(ctx context.Context, gameVersion string) error {
	args := m.Called(ctx, gameVersion)
	return args.Error(0)
}

type transition struct {
	from domain.State
	to   domain.State
}

// recordingCollector keeps state transitions and counts the rest
type recordingCollector struct {
	mutex       sync.Mutex
	transitions map[string][]transition
	exits       map[string][]int
	commands    int
	forcedStops int
}

func newRecordingCollector() *recordingCollector {
	return &recordingCollector{
		transitions: make(map[string][]transition),
		exits:       make(map[string][]int),
	}
}

func (c *recordingCollector) StateTransition(serverID string, from, to domain.State) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.transitions[serverID] = append(c.transitions[serverID], transition{from, to})
}

func (c *recordingCollector) StartDuration(serverID string, duration time.Duration, err error) {}

func (c *recordingCollector) StopDuration(serverID string, duration time.Duration, forced bool) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if forced {
		c.forcedStops++
	}
}

func (c *recordingCollector) ProcessExit(serverID string, exitCode int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.exits[serverID] = append(c.exits[serverID], exitCode)
}

func (c *recordingCollector) CommandSent(serverID string) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.commands++
}

func (c *recordingCollector) ArtifactDownload(kind domain.Kind, err error) {}

func (c *recordingCollector) RunningServers(count int) {}

func (c *recordingCollector) counts() (commands, forcedStops int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.commands, c.forcedStops
}

func (c *recordingCollector) transitionsOf(serverID string) []transition {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return append([]transition(nil), c.transitions[serverID]...)
}

type testEnv struct {
	supervisor *Supervisor
	fetcher    *jarFetcher
	metrics    *recordingCollector
	root       string
}

func newTestEnv(t *testing.T, javaPath string, modify ...func(*Options)) *testEnv {
	t.Helper()

	env := &testEnv{
		fetcher: &jarFetcher{},
		metrics: newRecordingCollector(),
		root:    t.TempDir(),
	}
	options := Options{
		RootDir:     env.root,
		JavaPath:    javaPath,
		GraceWindow: 300 * time.Millisecond,
		StopTimeout: 3 * time.Second,
		KillWait:    2 * time.Second,
		Fetcher:     env.fetcher,
		Metrics:     env.metrics,
	}
	for _, m := range modify {
		m(&options)
	}

	s, err := NewSupervisor(options, logging.Nop())
	require.NoError(t, err)
	env.supervisor = s

	t.Cleanup(func() {
		_ = s.StopAll(context.Background())
	})
	return env
}

func definition(id string) domain.ServerDefinition {
	return domain.ServerDefinition{
		ID:           id,
		Name:         "Survival World",
		Kind:         domain.KindVanilla,
		Version:      "1.21.0",
		MemoryMinMB:  512,
		MemoryMaxMB:  1024,
		Port:         25565,
		EULAAccepted: true,
	}
}

func (e *testEnv) readLog(t *testing.T, serverID string) string {
	t.Helper()
	data, err := os.ReadFile(e.supervisor.Layout().LogFile(serverID))
	if os.IsNotExist(err) {
		return ""
	}
	require.NoError(t, err)
	return string(data)
}

func (e *testEnv) logContains(t *testing.T, serverID, text string) func() bool {
	return func() bool {
		return strings.Contains(e.readLog(t, serverID), text)
	}
}
