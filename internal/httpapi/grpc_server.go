package httpapi

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"memoria.org/internal/obs"
)

type readinessChecker interface {
	Check(ctx context.Context) error
}

// GRPCHealth exposes the standard gRPC health service backed by the same
// readiness probe the HTTP /readyz endpoint uses.
type GRPCHealth struct {
	server    *health.Server
	readiness readinessChecker
}

// NewGRPCHealth creates the health service wrapper.
func NewGRPCHealth(r readinessChecker) *GRPCHealth {
	return &GRPCHealth{
		server:    health.NewServer(),
		readiness: r,
	}
}

// Register attaches the health service to a gRPC server.
func (h *GRPCHealth) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.server)
}

// Watch polls the readiness probe and keeps the health status current until
// the context is canceled.
func (h *GRPCHealth) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	h.refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.server.Shutdown()
			return
		case <-ticker.C:
			h.refresh(ctx)
		}
	}
}

func (h *GRPCHealth) refresh(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.readiness.Check(checkCtx); err != nil {
		obs.SetReady(false)
		h.server.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
		return
	}
	obs.SetReady(true)
	h.server.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
}
