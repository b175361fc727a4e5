// Package control exposes a domain.Contract over gRPC. Messages are
// google.protobuf.Struct values so the service needs no generated code.
package control

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "gamesrv.v1.Supervisor"

const (
	MethodProvision        = "Provision"
	MethodStart            = "Start"
	MethodStop             = "Stop"
	MethodSendCommand      = "SendCommand"
	MethodRuntimeInfo      = "RuntimeInfo"
	MethodTailLog          = "TailLog"
	MethodReadProperties   = "ReadProperties"
	MethodUpdateProperties = "UpdateProperties"
)

// FullMethod returns the gRPC path of method, e.g. "/gamesrv.v1.Supervisor/Start"
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// SupervisorServer is implemented by the server side handler
type SupervisorServer interface {
	Provision(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error)
	Start(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error)
	Stop(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error)
	SendCommand(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error)
	RuntimeInfo(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error)
	TailLog(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error)
	ReadProperties(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error)
	UpdateProperties(ctx context.Context, request *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(srv SupervisorServer, ctx context.Context, request *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			request := new(structpb.Struct)
			if err := dec(request); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(SupervisorServer), ctx, request)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: FullMethod(method),
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(SupervisorServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, request, info, handler)
		},
	}
}

// ServiceDesc describes the supervisor service for grpc.ServiceRegistrar
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SupervisorServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler(MethodProvision, SupervisorServer.Provision),
		unaryHandler(MethodStart, SupervisorServer.Start),
		unaryHandler(MethodStop, SupervisorServer.Stop),
		unaryHandler(MethodSendCommand, SupervisorServer.SendCommand),
		unaryHandler(MethodRuntimeInfo, SupervisorServer.RuntimeInfo),
		unaryHandler(MethodTailLog, SupervisorServer.TailLog),
		unaryHandler(MethodReadProperties, SupervisorServer.ReadProperties),
		unaryHandler(MethodUpdateProperties, SupervisorServer.UpdateProperties),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gamesrv/v1/supervisor.proto",
}
