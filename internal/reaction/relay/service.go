package relay

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ReactorServer is implemented by programs that want to receive breakwatch
// transitions.
type ReactorServer interface {
	Notify(ctx context.Context, event *structpb.Struct) (*emptypb.Empty, error)
}

// RegisterReactorServer registers srv on s.
func RegisterReactorServer(s grpc.ServiceRegistrar, srv ReactorServer) {
	s.RegisterService(&reactorServiceDesc, srv)
}

var reactorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ReactorServer)(nil),
	Methods: []grpc.MethodDesc{{
		MethodName: "Notify",
		Handler:    notifyHandler,
	}},
	Streams:  []grpc.StreamDesc{},
	Metadata: "breakwatch/v1/reactor.proto",
}

func notifyHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ReactorServer).Notify(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: NotifyMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ReactorServer).Notify(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}
