// Package grpc serves the admin API of the club: manual reconciliation
// triggers, the registration gate and reset codes, plus the standard health
// service.
package grpc

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dmitrijs2005/sporthack/internal/logging"
	"github.com/dmitrijs2005/sporthack/internal/server/models"
)

type Reconciler interface {
	Run(ctx context.Context, kind models.OccurrenceKind, now time.Time) ([]string, error)
	RunAll(ctx context.Context, now time.Time) (map[models.OccurrenceKind][]string, error)
}

type Gate interface {
	Register(ctx context.Context, occurrenceID, userID string, now time.Time) (string, error)
	Unregister(ctx context.Context, occurrenceID, userID string, now time.Time) error
}

type ResetCodes interface {
	Issue(ctx context.Context, userID string, now time.Time) (int, error)
	Validate(ctx context.Context, userID string, code int, now time.Time) error
}

type GRPCServer struct {
	address    string
	logger     logging.Logger
	reconciler Reconciler
	gate       Gate
	codes      ResetCodes
	clock      func() time.Time
	secret     []byte
}

type Option func(*GRPCServer)

// WithTokenSecret requires a valid admin token on every ClubAdmin call.
// An empty secret leaves the endpoint open.
func WithTokenSecret(secret []byte) Option {
	return func(s *GRPCServer) { s.secret = secret }
}

var _ ClubAdminServer = (*GRPCServer)(nil)

func NewGRPCServer(a string, l logging.Logger, r Reconciler, g Gate, c ResetCodes, opts ...Option) *GRPCServer {
	s := &GRPCServer{
		address:    a,
		logger:     l.With("module", "grpc_server"),
		reconciler: r,
		gate:       g,
		codes:      c,
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *GRPCServer) Run(ctx context.Context) error {
	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.recoveryInterceptor, s.loggingInterceptor, s.authInterceptor))

	srv.RegisterService(&ClubAdminServiceDesc, s)

	hs := health.NewServer()
	hs.SetServingStatus(serviceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		hs.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections
	if err := srv.Serve(lis); err != nil {
		return err
	}

	return nil
}
