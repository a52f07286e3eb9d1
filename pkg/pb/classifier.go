// Package pb declares the gRPC services spoken with the model sidecar and
// exposed to avatar clients. Messages are protobuf well-known types so no
// generated message code is needed:
//
//	service Classifier {
//	  rpc Classify(google.protobuf.BytesValue) returns (google.protobuf.Struct);
//	  rpc Health(google.protobuf.Empty) returns (google.protobuf.Empty);
//	}
//
//	service Listener {
//	  rpc Latest(google.protobuf.Empty) returns (google.protobuf.Struct);
//	  rpc Watch(google.protobuf.Empty) returns (stream google.protobuf.Struct);
//	}
package pb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ClassifierServiceName    = "emotion.v1.Classifier"
	ClassifierClassifyMethod = "/emotion.v1.Classifier/Classify"
	ClassifierHealthMethod   = "/emotion.v1.Classifier/Health"
)

// ClassifierClient talks to an external emotion network. Classify takes an
// encoded face crop (JPEG) and answers {"emotions": {label: score, ...}}.
type ClassifierClient interface {
	Classify(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	Health(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error)
}

type classifierClient struct {
	cc grpc.ClientConnInterface
}

func NewClassifierClient(cc grpc.ClientConnInterface) ClassifierClient {
	return &classifierClient{cc}
}

func (c *classifierClient) Classify(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ClassifierClassifyMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *classifierClient) Health(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, ClassifierHealthMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type ClassifierServer interface {
	Classify(context.Context, *wrapperspb.BytesValue) (*structpb.Struct, error)
	Health(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
}

func RegisterClassifierServer(s grpc.ServiceRegistrar, srv ClassifierServer) {
	s.RegisterService(&ClassifierServiceDesc, srv)
}

func classifierClassifyHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(wrapperspb.BytesValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClassifierServer).Classify(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ClassifierClassifyMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ClassifierServer).Classify(ctx, req.(*wrapperspb.BytesValue))
	}
	return interceptor(ctx, in, info, handler)
}

func classifierHealthHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ClassifierServer).Health(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ClassifierHealthMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ClassifierServer).Health(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

var ClassifierServiceDesc = grpc.ServiceDesc{
	ServiceName: ClassifierServiceName,
	HandlerType: (*ClassifierServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Classify", Handler: classifierClassifyHandler},
		{MethodName: "Health", Handler: classifierHealthHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "emotion/v1/classifier.proto",
}
