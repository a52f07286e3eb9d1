package pb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ListenerServiceName  = "emotion.v1.Listener"
	ListenerLatestMethod = "/emotion.v1.Listener/Latest"
	ListenerWatchMethod  = "/emotion.v1.Listener/Watch"
)

type ListenerServer interface {
	Latest(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Watch(*emptypb.Empty, ListenerWatchServer) error
}

type ListenerWatchServer interface {
	Send(*structpb.Struct) error
	grpc.ServerStream
}

type listenerWatchServer struct {
	grpc.ServerStream
}

func (x *listenerWatchServer) Send(m *structpb.Struct) error {
	return x.ServerStream.SendMsg(m)
}

func RegisterListenerServer(s grpc.ServiceRegistrar, srv ListenerServer) {
	s.RegisterService(&ListenerServiceDesc, srv)
}

func listenerLatestHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ListenerServer).Latest(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ListenerLatestMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ListenerServer).Latest(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func listenerWatchHandler(srv interface{}, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(ListenerServer).Watch(in, &listenerWatchServer{stream})
}

var ListenerServiceDesc = grpc.ServiceDesc{
	ServiceName: ListenerServiceName,
	HandlerType: (*ListenerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Latest", Handler: listenerLatestHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: listenerWatchHandler, ServerStreams: true},
	},
	Metadata: "emotion/v1/listener.proto",
}

type ListenerClient interface {
	Latest(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	Watch(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (ListenerWatchClient, error)
}

type ListenerWatchClient interface {
	Recv() (*structpb.Struct, error)
	grpc.ClientStream
}

type listenerClient struct {
	cc grpc.ClientConnInterface
}

func NewListenerClient(cc grpc.ClientConnInterface) ListenerClient {
	return &listenerClient{cc}
}

func (c *listenerClient) Latest(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ListenerLatestMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *listenerClient) Watch(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (ListenerWatchClient, error) {
	stream, err := c.cc.NewStream(ctx, &ListenerServiceDesc.Streams[0], ListenerWatchMethod, opts...)
	if err != nil {
		return nil, err
	}
	x := &listenerWatchClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

type listenerWatchClient struct {
	grpc.ClientStream
}

func (x *listenerWatchClient) Recv() (*structpb.Struct, error) {
	m := new(structpb.Struct)
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}
