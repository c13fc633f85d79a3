package httpapi

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"pokeswap.org/internal/obs"
)

// HealthServer exposes readiness over grpc.health.v1.Health. The status of
// both the overall server ("") and obs.ServiceName follows the probe.
type HealthServer struct {
	health    *health.Server
	readiness readinessChecker
	timeout   time.Duration
}

// NewHealthServer creates the health service; it reports NOT_SERVING until
// the first Refresh.
func NewHealthServer(r readinessChecker) *HealthServer {
	if r == nil {
		r = ReadyProbe{}
	}
	hs := &HealthServer{health: health.NewServer(), readiness: r, timeout: 2 * time.Second}
	hs.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return hs
}

// Refresh runs the readiness probe once and publishes the result.
func (s *HealthServer) Refresh(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.readiness.Check(ctx); err != nil {
		obs.Logger().Warn().Err(err).Msg("readiness probe failed")
		s.set(healthpb.HealthCheckResponse_NOT_SERVING)
		obs.SetReady(false)
		return false
	}
	s.set(healthpb.HealthCheckResponse_SERVING)
	obs.SetReady(true)
	return true
}

// Run refreshes the status every interval until ctx ends.
func (s *HealthServer) Run(ctx context.Context, interval time.Duration) {
	s.Refresh(ctx)
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.Refresh(ctx)
		}
	}
}

// Shutdown marks every service NOT_SERVING; later updates are ignored.
func (s *HealthServer) Shutdown() {
	s.health.Shutdown()
}

func (s *HealthServer) set(st healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(obs.ServiceName, st)
}

// NewGRPCServer creates a gRPC server with the health service registered.
func NewGRPCServer(hs *HealthServer, opts ...grpc.ServerOption) *grpc.Server {
	srv := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(srv, hs.health)
	return srv
}
