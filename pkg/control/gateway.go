package control

import (
	"context"

	"github.com/core-tools/hsu-gamesrv/pkg/domain"
	"github.com/core-tools/hsu-gamesrv/pkg/logging"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

func NewGRPCClientGateway(grpcClientConnection grpc.ClientConnInterface, logger logging.Logger) domain.Contract {
	return &grpcClientGateway{
		conn:   grpcClientConnection,
		logger: logger,
	}
}

type grpcClientGateway struct {
	conn   grpc.ClientConnInterface
	logger logging.Logger
}

func (gw *grpcClientGateway) invoke(ctx context.Context, method string, fields map[string]interface{}) (*structpb.Struct, error) {
	request, err := newStruct(fields)
	if err != nil {
		return nil, err
	}
	response := new(structpb.Struct)
	if err := gw.conn.Invoke(ctx, FullMethod(method), request, response); err != nil {
		gw.logger.Errorf("%s client gateway: %v", method, err)
		return nil, FromStatus(err)
	}
	gw.logger.Debugf("%s client gateway done", method)
	return response, nil
}

func (gw *grpcClientGateway) Provision(ctx context.Context, def domain.ServerDefinition) (domain.RuntimeInfo, error) {
	response, err := gw.invoke(ctx, MethodProvision, map[string]interface{}{fieldDefinition: definitionFields(def)})
	if err != nil {
		return domain.RuntimeInfo{}, err
	}
	return decodeRuntimeInfo(response), nil
}

func (gw *grpcClientGateway) Start(ctx context.Context, def domain.ServerDefinition) error {
	_, err := gw.invoke(ctx, MethodStart, map[string]interface{}{fieldDefinition: definitionFields(def)})
	return err
}

func (gw *grpcClientGateway) Stop(ctx context.Context, serverID string) error {
	_, err := gw.invoke(ctx, MethodStop, map[string]interface{}{fieldServerID: serverID})
	return err
}

func (gw *grpcClientGateway) SendCommand(ctx context.Context, serverID string, command string) error {
	_, err := gw.invoke(ctx, MethodSendCommand, map[string]interface{}{
		fieldServerID: serverID,
		fieldCommand:  command,
	})
	return err
}

func (gw *grpcClientGateway) RuntimeInfo(ctx context.Context, serverID string) (domain.RuntimeInfo, error) {
	response, err := gw.invoke(ctx, MethodRuntimeInfo, map[string]interface{}{fieldServerID: serverID})
	if err != nil {
		return domain.RuntimeInfo{}, err
	}
	return decodeRuntimeInfo(response), nil
}

func (gw *grpcClientGateway) TailLog(ctx context.Context, serverID string, maxLines int) ([]string, error) {
	response, err := gw.invoke(ctx, MethodTailLog, map[string]interface{}{
		fieldServerID: serverID,
		fieldMaxLines: maxLines,
	})
	if err != nil {
		return nil, err
	}
	return decodeStrings(response, fieldLines), nil
}

func (gw *grpcClientGateway) ReadProperties(ctx context.Context, serverID string) (map[string]string, error) {
	response, err := gw.invoke(ctx, MethodReadProperties, map[string]interface{}{fieldServerID: serverID})
	if err != nil {
		return nil, err
	}
	return decodeStringMap(response, fieldProperties)
}

func (gw *grpcClientGateway) UpdateProperties(ctx context.Context, serverID string, updates map[string]string) (domain.PropertiesUpdate, error) {
	response, err := gw.invoke(ctx, MethodUpdateProperties, map[string]interface{}{
		fieldServerID: serverID,
		fieldUpdates:  stringMapFields(updates),
	})
	if err != nil {
		return domain.PropertiesUpdate{}, err
	}
	props, err := decodeStringMap(response, fieldProperties)
	if err != nil {
		return domain.PropertiesUpdate{}, err
	}
	return domain.PropertiesUpdate{
		Properties:  props,
		ChangedKeys: decodeStrings(response, fieldChangedKeys),
	}, nil
}
