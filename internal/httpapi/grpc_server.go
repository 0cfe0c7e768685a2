package httpapi

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"propertyhub.org/internal/obs"
)

// HealthServer exposes the standard gRPC health service. Its status
// follows the same readiness check as /readyz.
type HealthServer struct {
	srv       *health.Server
	readiness readinessChecker
}

func NewHealthServer(r readinessChecker) *HealthServer {
	if r == nil {
		r = ReadyProbe{}
	}
	return &HealthServer{srv: health.NewServer(), readiness: r}
}

// Register attaches the health service to s.
func (h *HealthServer) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.srv)
}

// Refresh runs the readiness check once and publishes the result for both
// the overall ("") and the named service.
func (h *HealthServer) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	status := healthpb.HealthCheckResponse_SERVING
	if err := h.readiness.Check(ctx); err != nil {
		obs.Logger().Warn("grpc_health_not_serving", slog.String("error", err.Error()))
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	h.srv.SetServingStatus("", status)
	h.srv.SetServingStatus(serviceName, status)
	return status
}

// Run refreshes the status every interval until ctx is done.
func (h *HealthServer) Run(ctx context.Context, interval time.Duration) {
	h.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.srv.Shutdown()
			return
		case <-ticker.C:
			checkCtx, cancel := context.WithTimeout(ctx, interval)
			h.Refresh(checkCtx)
			cancel()
		}
	}
}
