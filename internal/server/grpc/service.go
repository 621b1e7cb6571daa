package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified name of the token service.
const ServiceName = "kiwes.auth.v1.TokenService"

const (
	introspectMethod = "/" + ServiceName + "/Introspect"
	whoAmIMethod     = "/" + ServiceName + "/WhoAmI"
)

// TokenServiceServer lets other services check Kiwes access tokens.
// Messages are protobuf well-known types, so no generated code is needed.
type TokenServiceServer interface {
	// Introspect reports whether an access token is active and what it
	// claims. It needs no credentials.
	Introspect(ctx context.Context, token *wrapperspb.StringValue) (*structpb.Struct, error)

	// WhoAmI describes the member whose access token is in the
	// authorization metadata.
	WhoAmI(ctx context.Context, in *emptypb.Empty) (*structpb.Struct, error)
}

var tokenServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TokenServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Introspect", Handler: introspectHandler},
		{MethodName: "WhoAmI", Handler: whoAmIHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "kiwes/auth/v1/token.proto",
}

// RegisterTokenServiceServer registers srv on s.
func RegisterTokenServiceServer(s grpc.ServiceRegistrar, srv TokenServiceServer) {
	s.RegisterService(&tokenServiceDesc, srv)
}

func introspectHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TokenServiceServer).Introspect(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: introspectMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TokenServiceServer).Introspect(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func whoAmIHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(TokenServiceServer).WhoAmI(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: whoAmIMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(TokenServiceServer).WhoAmI(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// TokenServiceClient calls a remote TokenService.
type TokenServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewTokenServiceClient(cc grpc.ClientConnInterface) *TokenServiceClient {
	return &TokenServiceClient{cc: cc}
}

func (c *TokenServiceClient) Introspect(ctx context.Context, in *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, introspectMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *TokenServiceClient) WhoAmI(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, whoAmIMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
