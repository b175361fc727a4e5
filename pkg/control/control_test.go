package control

import (
	"context"
	"net"
	"testing"

	"github.com/core-tools/hsu-gamesrv/pkg/domain"
	"github.com/core-tools/hsu-gamesrv/pkg/errors"
	"github.com/core-tools/hsu-gamesrv/pkg/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
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

func newTestGateway(t *testing.T, contract domain.Contract) domain.Contract {
	t.Helper()

	listener := bufconn.Listen(1 << 20)
	server := grpc.NewServer()
	RegisterGRPCServerHandler(server, contract, logging.Nop())
	go func() { _ = server.Serve(listener) }()
	t.Cleanup(server.Stop)

	conn, err := grpc.DialContext(context.Background(), "bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return NewGRPCClientGateway(conn, logging.Nop())
}

func testDefinition() domain.ServerDefinition {
	return domain.ServerDefinition{
		ID: "alpha", Name: "Alpha World", Kind: domain.KindVanilla, Version: "1.21.0",
		MemoryMinMB: 512, MemoryMaxMB: 2048, Port: 25565, EULAAccepted: true,
	}
}

func TestGateway_RoundTrips(t *testing.T) {
	contract := &MockContract{}
	gw := newTestGateway(t, contract)
	ctx := context.Background()
	def := testDefinition()
	pid := 4321

	info := domain.RuntimeInfo{
		ServerDir: "/srv/servers/alpha", LogFile: "/srv/servers/alpha/logs/latest.log",
		JarPath: "/srv/servers/alpha/server.jar", JarExists: true, Running: true, PID: &pid,
		State: domain.StateRunning,
	}

	contract.On("Provision", mock.Anything, def).Return(domain.RuntimeInfo{ServerDir: "/srv/servers/alpha", State: domain.StateAbsent}, nil)
	contract.On("Start", mock.Anything, def).Return(nil)
	contract.On("RuntimeInfo", mock.Anything, "alpha").Return(info, nil)
	contract.On("RuntimeInfo", mock.Anything, "idle").Return(domain.RuntimeInfo{LastError: "process exited with code 1"}, nil)
	contract.On("SendCommand", mock.Anything, "alpha", "say hi").Return(nil)
	contract.On("TailLog", mock.Anything, "alpha", 50).Return([]string{"one", "two"}, nil)
	contract.On("ReadProperties", mock.Anything, "alpha").Return(map[string]string{"motd": "hi", "server-port": "25565"}, nil)
	contract.On("UpdateProperties", mock.Anything, "alpha", map[string]string{"motd": "new"}).
		Return(domain.PropertiesUpdate{Properties: map[string]string{"motd": "new"}, ChangedKeys: []string{"motd"}}, nil)
	contract.On("Stop", mock.Anything, "alpha").Return(nil)

	provisioned, err := gw.Provision(ctx, def)
	require.NoError(t, err)
	assert.Equal(t, "/srv/servers/alpha", provisioned.ServerDir)
	assert.Nil(t, provisioned.PID)

	require.NoError(t, gw.Start(ctx, def))

	got, err := gw.RuntimeInfo(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, info, got)

	idle, err := gw.RuntimeInfo(ctx, "idle")
	require.NoError(t, err)
	assert.False(t, idle.Running)
	assert.Nil(t, idle.PID)
	assert.Equal(t, "process exited with code 1", idle.LastError)

	require.NoError(t, gw.SendCommand(ctx, "alpha", "say hi"))

	lines, err := gw.TailLog(ctx, "alpha", 50)
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, lines)

	props, err := gw.ReadProperties(ctx, "alpha")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"motd": "hi", "server-port": "25565"}, props)

	update, err := gw.UpdateProperties(ctx, "alpha", map[string]string{"motd": "new"})
	require.NoError(t, err)
	assert.Equal(t, []string{"motd"}, update.ChangedKeys)
	assert.Equal(t, "new", update.Properties["motd"])

	require.NoError(t, gw.Stop(ctx, "alpha"))

	contract.AssertExpectations(t)
}

func TestGateway_ErrorTypesSurvive(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"not running", errors.NewNotRunningError("server is not running", nil), errors.IsNotRunningError},
		{"validation", errors.NewValidationError("command is required", nil), errors.IsValidationError},
		{"startup", errors.NewProcessStartupError("server process exited during startup: process exited with code 137", nil), errors.IsProcessStartupError},
		{"upstream", errors.NewUpstreamUnavailableError("could not fetch version manifest (HTTP 503)", nil), errors.IsUpstreamUnavailableError},
		{"incompatible", errors.NewIncompatibleRuntimeError("Java 21+ is required for Minecraft 1.21.0. Detected Java 17", nil), errors.IsIncompatibleRuntimeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contract := &MockContract{}
			contract.On("SendCommand", mock.Anything, "alpha", "x").Return(tt.err)
			gw := newTestGateway(t, contract)

			err := gw.SendCommand(context.Background(), "alpha", "x")
			require.Error(t, err)
			assert.True(t, tt.check(err), "got %v", err)

			var domainErr *errors.DomainError
			require.True(t, errors.As(err, &domainErr))
			assert.Equal(t, tt.err.(*errors.DomainError).Message, domainErr.Message)
		})
	}
}

func TestToStatus(t *testing.T) {
	err := ToStatus(errors.NewNotFoundError("server.properties file not found", nil))
	st, ok := status.FromError(err)
	require.True(t, ok)
	assert.Equal(t, codes.NotFound, st.Code())
	assert.Equal(t, "server.properties file not found", st.Message())

	assert.Nil(t, ToStatus(nil))
	assert.Equal(t, codes.Canceled, status.Code(ToStatus(context.Canceled)))
	assert.Equal(t, codes.Internal, CodeOf(errors.ErrorTypeIO))
}

func TestFromStatus_WithoutDetails(t *testing.T) {
	err := FromStatus(status.Error(codes.FailedPrecondition, "server is not running"))
	assert.True(t, errors.IsNotRunningError(err))

	err = FromStatus(status.Error(codes.Unknown, "boom"))
	assert.True(t, errors.IsInternalError(err))

	assert.Equal(t, context.DeadlineExceeded, FromStatus(status.Error(codes.DeadlineExceeded, "late")))
}

func TestHandler_RejectsMissingDefinition(t *testing.T) {
	contract := &MockContract{}
	handler := &grpcServerHandler{handler: contract, logger: logging.Nop()}

	_, err := handler.Start(context.Background(), nil)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	contract.AssertNotCalled(t, "Start", mock.Anything, mock.Anything)
}
