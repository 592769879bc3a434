package health

import (
	"context"
	"errors"
	"fmt"
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/VeeLume/streamdeck-counter/internal/logger"
)

// ServiceName is the health service name reported besides the overall status.
const ServiceName = "streamdeck.counter.Plugin"

// Server serves the gRPC health service.
type Server struct {
	// grpc is the underlying transport.
	grpc *grpc.Server
	// health tracks the serving status.
	health *health.Server
}

// NewServer creates a server reporting NOT_SERVING until SetServing(true).
func NewServer() *Server {
	s := &Server{
		grpc:   grpc.NewServer(),
		health: health.NewServer(),
	}

	healthpb.RegisterHealthServer(s.grpc, s.health)
	s.SetServing(false)

	return s
}

// SetServing reports the plugin as serving or not.
func (s *Server) SetServing(serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}

	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
}

// Listen opens address and serves until ctx is cancelled.
func (s *Server) Listen(ctx context.Context, address string) error {
	lc := net.ListenConfig{}

	lis, err := lc.Listen(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", address, err)
	}

	return s.Serve(ctx, lis)
}

// Serve serves on lis and blocks until ctx is cancelled and the server stopped.
func (s *Server) Serve(ctx context.Context, lis net.Listener) error {
	logger.InfoKV(ctx, "Health server listening", "listen_address", lis.Addr().String())

	// Closed after GracefulStop returns so Serve only returns once stopped.
	done := make(chan struct{})

	go func() {
		<-ctx.Done()
		s.health.Shutdown()
		s.grpc.GracefulStop()
		close(done)
	}()

	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC: %w", err)
	}

	<-done
	logger.Info(ctx, "Health server stopped")

	return nil
}
