package grpc

import (
	"context"
	"errors"
	"strings"

	"github.com/dmitrijs2005/kiwes/internal/common"
	"github.com/dmitrijs2005/kiwes/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const principalKey ctxKey = "principal"

// authenticatedMethods need a member access token in the authorization
// metadata.
var authenticatedMethods = map[string]bool{
	whoAmIMethod: true,
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !authenticatedMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	token := tokenFromMetadata(ctx)
	if token == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}
	if err := s.tokens.ValidateAccess(token); err != nil {
		return nil, toStatus(err)
	}
	p, err := s.tokens.Authenticate(ctx, token)
	if err != nil {
		return nil, toStatus(err)
	}

	return handler(context.WithValue(ctx, principalKey, p), req)
}

func tokenFromMetadata(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get(common.AuthorizationHeaderName)
	if len(values) == 0 {
		return ""
	}
	v := strings.TrimSpace(values[0])
	if len(v) >= len(common.BearerPrefix) && strings.EqualFold(v[:len(common.BearerPrefix)], common.BearerPrefix) {
		v = v[len(common.BearerPrefix):]
	}
	return strings.TrimSpace(v)
}

func principalFromContext(ctx context.Context) (*auth.Principal, bool) {
	p, ok := ctx.Value(principalKey).(*auth.Principal)
	return p, ok && p != nil
}

// toStatus maps the error taxonomy onto gRPC codes. Details of unexpected
// errors stay on the server.
func toStatus(err error) error {
	switch {
	case common.IsTokenError(err), errors.Is(err, common.ErrUnknownSubject):
		return status.Error(codes.Unauthenticated, err.Error())
	case errors.Is(err, common.ErrInvalidParameter):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
