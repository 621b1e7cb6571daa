// Package grpc serves token introspection to other Kiwes services.
package grpc

import (
	"context"
	"errors"
	"net"

	"github.com/dmitrijs2005/kiwes/internal/logging"
	"github.com/dmitrijs2005/kiwes/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// Tokens is the part of the token engine the service exposes.
type Tokens interface {
	ValidateAccess(token string) error
	ParseClaims(token string) (*auth.AccessClaims, error)
	Authenticate(ctx context.Context, token string) (*auth.Principal, error)
}

type GRPCServer struct {
	address string
	tokens  Tokens
	logger  logging.Logger
}

var _ TokenServiceServer = (*GRPCServer)(nil)

func NewGRPCServer(address string, tokens Tokens, l logging.Logger) *GRPCServer {
	return &GRPCServer{
		address: address,
		tokens:  tokens,
		logger:  l.With("module", "grpc_server"),
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve serves on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.accessTokenInterceptor))

	RegisterTokenServiceServer(srv, s)

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "stopping gRPC server")
		hs.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	return nil
}
