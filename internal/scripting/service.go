package scripting

import (
	"context"

	"google.golang.org/grpc"

	"github.com/CARTAvis/carta-backend-sub003/internal/wire"
)

func executeHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	req := new(wire.ScriptingRequestWire)
	if err := dec(req); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ScriptingServer).Execute(ctx, req)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/carta.Scripting/Execute"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ScriptingServer).Execute(ctx, req.(*wire.ScriptingRequestWire))
	}
	return interceptor(ctx, req, info, handler)
}

// serviceDesc describes the carta.Scripting gRPC service by hand since
// this package carries no protoc-generated stubs; Execute is its only
// method, a unary call matching SCRIPTING_REQUEST/SCRIPTING_RESPONSE.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: "carta.Scripting",
	HandlerType: (*ScriptingServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Execute", Handler: executeHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/scripting/service.go",
}

// RegisterService registers bridge as the carta.Scripting service on
// grpcServer.
func RegisterService(grpcServer *grpc.Server, bridge *Bridge) {
	grpcServer.RegisterService(&serviceDesc, bridge)
}

// NewGRPCServer builds a *grpc.Server with the carta.Scripting service
// registered against bridge; cmd/carta-backend mounts it on whatever
// net.Listener it chooses for the external-control plane.
func NewGRPCServer(bridge *Bridge) *grpc.Server {
	srv := grpc.NewServer()
	RegisterService(srv, bridge)
	return srv
}
