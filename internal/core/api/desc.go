package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

/*
 * Service descriptor for texpolicy.v1.Resolver.
 *
 * Requests and responses are google.protobuf.Struct, so the service needs no
 * generated code: the descriptor, handlers and client below are what protoc-gen-go-grpc
 * would emit for
 *
 *   service Resolver {
 *     rpc Resolve(google.protobuf.Struct) returns (google.protobuf.Struct);
 *     rpc ResolveBatch(google.protobuf.Struct) returns (google.protobuf.Struct);
 *   }
 *
 * Field layout of the structs is documented on Service.Resolve and
 * Service.ResolveBatch.
 */

// Full method names.
const (
	ServiceName            = "texpolicy.v1.Resolver"
	ResolveFullMethod      = "/texpolicy.v1.Resolver/Resolve"
	ResolveBatchFullMethod = "/texpolicy.v1.Resolver/ResolveBatch"
)

// ResolverServer is the server API for the Resolver service.
type ResolverServer interface {
	Resolve(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResolveBatch(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterResolverServer registers srv with s.
func RegisterResolverServer(s grpc.ServiceRegistrar, srv ResolverServer) {
	s.RegisterService(&ResolverServiceDesc, srv)
}

// ResolverServiceDesc is the grpc.ServiceDesc for the Resolver service.
var ResolverServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ResolverServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Resolve", Handler: resolveHandler},
		{MethodName: "ResolveBatch", Handler: resolveBatchHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "texpolicy/v1/resolver.proto",
}

func resolveHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ResolverServer).Resolve(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ResolveFullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ResolverServer).Resolve(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func resolveBatchHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ResolverServer).ResolveBatch(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ResolveBatchFullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ResolverServer).ResolveBatch(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// ResolverClient is the client API for the Resolver service.
type ResolverClient struct {
	cc grpc.ClientConnInterface
}

// NewResolverClient creates a client over cc.
func NewResolverClient(cc grpc.ClientConnInterface) *ResolverClient {
	return &ResolverClient{cc: cc}
}

// Resolve calls texpolicy.v1.Resolver/Resolve.
func (c *ResolverClient) Resolve(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ResolveFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// ResolveBatch calls texpolicy.v1.Resolver/ResolveBatch.
func (c *ResolverClient) ResolveBatch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ResolveBatchFullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
