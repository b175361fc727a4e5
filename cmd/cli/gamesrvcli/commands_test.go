package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/core-tools/hsu-gamesrv/pkg/domain"
	"github.com/core-tools/hsu-gamesrv/pkg/errors"

	flags "github.com/jessevdk/go-flags"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockContract struct {
	mock.Mock
}

func (m *MockContract) Provision(ctx context.Context, def domain.ServerDefinition) (domain.RuntimeInfo, error) {
	args := m.Called(ctx, def)
	return args.Get(0).(domain.RuntimeInfo), args.Error(1)
}

func (m *MockContract) Start(ctx context.Context, def domain.ServerDefinition) error {
	return m.Called(ctx, def).Error(0)
}

func (m *MockContract) Stop(ctx context.Context, serverID string) error {
	return m.Called(ctx, serverID).Error(0)
}

func (m *MockContract) SendCommand(ctx context.Context, serverID string, command string) error {
	return m.Called(ctx, serverID, command).Error(0)
}

func (m *MockContract) RuntimeInfo(ctx context.Context, serverID string) (domain.RuntimeInfo, error) {
	args := m.Called(ctx, serverID)
	return args.Get(0).(domain.RuntimeInfo), args.Error(1)
}

func (m *MockContract) TailLog(ctx context.Context, serverID string, maxLines int) ([]string, error) {
	args := m.Called(ctx, serverID, maxLines)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockContract) ReadProperties(ctx context.Context, serverID string) (map[string]string, error) {
	args := m.Called(ctx, serverID)
	return args.Get(0).(map[string]string), args.Error(1)
}

func (m *MockContract) UpdateProperties(ctx context.Context, serverID string, updates map[string]string) (domain.PropertiesUpdate, error) {
	args := m.Called(ctx, serverID, updates)
	return args.Get(0).(domain.PropertiesUpdate), args.Error(1)
}

// run parses argv against a fresh parser whose commands talk to gw
func run(t *testing.T, gw domain.Contract, argv ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := &application{
		connect: func(ctx context.Context) (domain.Contract, error) { return gw, nil },
		timeout: func() time.Duration { return 5 * time.Second },
		out:     &out,
	}
	var opts globalOptions
	parser := flags.NewParser(&opts, flags.HelpFlag)
	require.NoError(t, app.register(parser))
	_, err := parser.ParseArgs(argv)
	return out.String(), err
}

func TestConsoleCommand_StopRoutesToStop(t *testing.T) {
	gw := new(MockContract)
	gw.On("Stop", mock.Anything, "survival").Return(nil)

	out, err := run(t, gw, "command", "--id", "survival", " stop ")
	require.NoError(t, err)
	assert.Contains(t, out, "stopped survival")

	gw.AssertExpectations(t)
	gw.AssertNotCalled(t, "SendCommand", mock.Anything, mock.Anything, mock.Anything)
}

func TestConsoleCommand_RelaysText(t *testing.T) {
	gw := new(MockContract)
	gw.On("SendCommand", mock.Anything, "survival", "say hello world").Return(nil)

	out, err := run(t, gw, "command", "--id", "survival", "say", "hello", "world")
	require.NoError(t, err)
	assert.Contains(t, out, "sent to survival")
	gw.AssertExpectations(t)
}

func TestConsoleCommand_ErrorSurfaces(t *testing.T) {
	gw := new(MockContract)
	gw.On("SendCommand", mock.Anything, "survival", "list").
		Return(errors.NewNotRunningError("server is not running", nil))

	_, err := run(t, gw, "command", "--id", "survival", "list")
	require.Error(t, err)
	assert.True(t, errors.IsNotRunningError(err))
}

func TestStartCommand_InlineDefinition(t *testing.T) {
	expected := domain.ServerDefinition{
		ID:           "survival",
		Name:         "Survival World",
		Kind:         domain.KindVanilla,
		Version:      "1.21.0",
		MemoryMinMB:  512,
		MemoryMaxMB:  1024,
		Port:         25570,
		EULAAccepted: true,
	}
	pid := 4242
	gw := new(MockContract)
	gw.On("Start", mock.Anything, expected).Return(nil)
	gw.On("RuntimeInfo", mock.Anything, "survival").Return(domain.RuntimeInfo{
		Running: true,
		PID:     &pid,
		State:   "running",
	}, nil)

	out, err := run(t, gw, "start", "--id", "survival", "--name", "Survival World", "--version", "1.21.0",
		"--min-memory", "512", "--max-memory", "1024", "--game-port", "25570", "--eula")
	require.NoError(t, err)
	assert.Contains(t, out, "running:    true")
	assert.Contains(t, out, "pid:        4242")
	gw.AssertExpectations(t)
}

func TestStartCommand_InvalidDefinitionNeverConnects(t *testing.T) {
	connected := false
	app := &application{
		connect: func(ctx context.Context) (domain.Contract, error) {
			connected = true
			return new(MockContract), nil
		},
		timeout: func() time.Duration { return 0 },
		out:     &bytes.Buffer{},
	}
	var opts globalOptions
	parser := flags.NewParser(&opts, flags.HelpFlag)
	require.NoError(t, app.register(parser))

	_, err := parser.ParseArgs([]string{"start", "--id", "survival"})
	require.Error(t, err)
	assert.True(t, errors.IsValidationError(err))
	assert.False(t, connected)
}

func TestStartCommand_DefinitionFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gamesrvd.yaml")
	content := `
servers:
  - id: creative
    name: Creative
    kind: vanilla
    version: 1.20.4
    memory_min_mb: 1024
    memory_max_mb: 2048
    port: 25566
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	gw := new(MockContract)
	gw.On("Start", mock.Anything, mock.MatchedBy(func(def domain.ServerDefinition) bool {
		return def.ID == "creative" && def.Version == "1.20.4" && def.Port == 25566
	})).Return(nil)
	gw.On("RuntimeInfo", mock.Anything, "creative").Return(domain.RuntimeInfo{State: "running", Running: true}, nil)

	_, err := run(t, gw, "start", "--id", "creative", "--config", path)
	require.NoError(t, err)
	gw.AssertExpectations(t)

	_, err = run(t, gw, "start", "--id", "missing", "--config", path)
	require.Error(t, err)
	assert.True(t, errors.IsNotFoundError(err))
}

func TestStatusCommand_PrintsDiagnostic(t *testing.T) {
	gw := new(MockContract)
	gw.On("RuntimeInfo", mock.Anything, "survival").Return(domain.RuntimeInfo{
		State:     "errored",
		ServerDir: "/srv/servers/survival",
		LastError: "process exited with code 1",
	}, nil)

	out, err := run(t, gw, "status", "--id", "survival")
	require.NoError(t, err)
	assert.Contains(t, out, "pid:        -")
	assert.Contains(t, out, "last error: process exited with code 1")
}

func TestLogsCommand(t *testing.T) {
	gw := new(MockContract)
	gw.On("TailLog", mock.Anything, "survival", 2).Return([]string{"a", "b"}, nil)

	out, err := run(t, gw, "logs", "--id", "survival", "-n", "2")
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", out)
}

func TestPropsCommand(t *testing.T) {
	gw := new(MockContract)
	gw.On("ReadProperties", mock.Anything, "survival").Return(map[string]string{"motd": "hi", "difficulty": "easy"}, nil)

	out, err := run(t, gw, "props", "--id", "survival")
	require.NoError(t, err)
	assert.Equal(t, "difficulty=easy\nmotd=hi\n", out)

	gw.On("UpdateProperties", mock.Anything, "survival", map[string]string{"difficulty": "hard"}).
		Return(domain.PropertiesUpdate{
			Properties:  map[string]string{"difficulty": "hard"},
			ChangedKeys: []string{"difficulty"},
		}, nil)

	out, err = run(t, gw, "props", "--id", "survival", "--set", "difficulty = hard")
	require.NoError(t, err)
	assert.Contains(t, out, "# changed: difficulty")
}

func TestParseAssignments(t *testing.T) {
	updates, err := parseAssignments([]string{"motd=Hello = World", "pvp=false"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"motd": "Hello = World", "pvp": "false"}, updates)

	for _, bad := range []string{"novalue", "=value"} {
		_, err := parseAssignments([]string{bad})
		require.Error(t, err, bad)
		assert.True(t, errors.IsValidationError(err))
	}
}
