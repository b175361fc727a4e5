package control

import (
	"context"

	"github.com/core-tools/hsu-gamesrv/pkg/domain"
	"github.com/core-tools/hsu-gamesrv/pkg/logging"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

func RegisterGRPCServerHandler(grpcServerRegistrar grpc.ServiceRegistrar, handler domain.Contract, logger logging.Logger) {
	grpcServerRegistrar.RegisterService(&ServiceDesc, &grpcServerHandler{
		handler: handler,
		logger:  logger,
	})
}

type grpcServerHandler struct {
	handler domain.Contract
	logger  logging.Logger
}

func (h *grpcServerHandler) fail(method string, err error) (*structpb.Struct, error) {
	h.logger.Errorf("%s server handler: %v", method, err)
	return nil, ToStatus(err)
}

func (h *grpcServerHandler) done(method string, fields map[string]interface{}) (*structpb.Struct, error) {
	response, err := newStruct(fields)
	if err != nil {
		return h.fail(method, err)
	}
	h.logger.Debugf("%s server handler done", method)
	return response, nil
}

func (h *grpcServerHandler) Provision(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	def, err := decodeDefinition(request)
	if err != nil {
		return h.fail(MethodProvision, err)
	}
	info, err := h.handler.Provision(ctx, def)
	if err != nil {
		return h.fail(MethodProvision, err)
	}
	return h.done(MethodProvision, map[string]interface{}{fieldRuntimeInfo: runtimeInfoFields(info)})
}

func (h *grpcServerHandler) Start(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	def, err := decodeDefinition(request)
	if err != nil {
		return h.fail(MethodStart, err)
	}
	if err := h.handler.Start(ctx, def); err != nil {
		return h.fail(MethodStart, err)
	}
	return h.done(MethodStart, nil)
}

func (h *grpcServerHandler) Stop(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	serverID := request.GetFields()[fieldServerID].GetStringValue()
	if err := h.handler.Stop(ctx, serverID); err != nil {
		return h.fail(MethodStop, err)
	}
	return h.done(MethodStop, nil)
}

func (h *grpcServerHandler) SendCommand(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	fields := request.GetFields()
	serverID := fields[fieldServerID].GetStringValue()
	if err := h.handler.SendCommand(ctx, serverID, fields[fieldCommand].GetStringValue()); err != nil {
		return h.fail(MethodSendCommand, err)
	}
	return h.done(MethodSendCommand, nil)
}

func (h *grpcServerHandler) RuntimeInfo(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	serverID := request.GetFields()[fieldServerID].GetStringValue()
	info, err := h.handler.RuntimeInfo(ctx, serverID)
	if err != nil {
		return h.fail(MethodRuntimeInfo, err)
	}
	return h.done(MethodRuntimeInfo, map[string]interface{}{fieldRuntimeInfo: runtimeInfoFields(info)})
}

func (h *grpcServerHandler) TailLog(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	fields := request.GetFields()
	serverID := fields[fieldServerID].GetStringValue()
	lines, err := h.handler.TailLog(ctx, serverID, int(fields[fieldMaxLines].GetNumberValue()))
	if err != nil {
		return h.fail(MethodTailLog, err)
	}
	return h.done(MethodTailLog, map[string]interface{}{fieldLines: stringsList(lines)})
}

func (h *grpcServerHandler) ReadProperties(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	serverID := request.GetFields()[fieldServerID].GetStringValue()
	props, err := h.handler.ReadProperties(ctx, serverID)
	if err != nil {
		return h.fail(MethodReadProperties, err)
	}
	return h.done(MethodReadProperties, map[string]interface{}{fieldProperties: stringMapFields(props)})
}

func (h *grpcServerHandler) UpdateProperties(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error) {
	serverID := request.GetFields()[fieldServerID].GetStringValue()
	updates, err := decodeStringMap(request, fieldUpdates)
	if err != nil {
		return h.fail(MethodUpdateProperties, err)
	}
	update, err := h.handler.UpdateProperties(ctx, serverID, updates)
	if err != nil {
		return h.fail(MethodUpdateProperties, err)
	}
	return h.done(MethodUpdateProperties, map[string]interface{}{
		fieldProperties:  stringMapFields(update.Properties),
		fieldChangedKeys: stringsList(update.ChangedKeys),
	})
}
