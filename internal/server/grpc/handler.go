package grpc

import (
	"context"
	"strings"

	"github.com/dmitrijs2005/kiwes/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// Introspect answers with "active" and, when the token can be read at all,
// its claims. An expired token is inactive but still shows its claims; a
// token with a bad signature shows only the error.
func (s *GRPCServer) Introspect(ctx context.Context, in *wrapperspb.StringValue) (*structpb.Struct, error) {
	token := strings.TrimSpace(in.GetValue())
	if token == "" {
		return nil, status.Error(codes.InvalidArgument, "token is required")
	}

	fields := map[string]any{"active": false}
	if err := s.tokens.ValidateAccess(token); err != nil {
		if !common.IsTokenError(err) {
			s.logger.Error(ctx, "introspect", "error", err)
			return nil, toStatus(err)
		}
		fields["error"] = err.Error()
	} else {
		fields["active"] = true
	}

	if claims, err := s.tokens.ParseClaims(token); err == nil {
		fields["subject"] = claims.Subject
		fields["authorities"] = listValue(claims.AuthorityList())
		fields["additionalInfoProvided"] = claims.AdditionalInfoProvided
		if claims.ExpiresAt != nil {
			fields["expiresAt"] = claims.ExpiresAt.Unix()
		}
	}

	out, err := structpb.NewStruct(fields)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

// WhoAmI runs behind accessTokenInterceptor, so the principal is set.
func (s *GRPCServer) WhoAmI(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	p, ok := principalFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	out, err := structpb.NewStruct(map[string]any{
		"userId":                 p.UserID,
		"subject":                p.Subject,
		"authorities":            listValue(p.Authorities),
		"additionalInfoProvided": p.AdditionalInfoProvided,
	})
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return out, nil
}

// listValue converts to the []any structpb accepts.
func listValue(in []string) []any {
	out := make([]any, len(in))
	for i, v := range in {
		out[i] = v
	}
	return out
}
