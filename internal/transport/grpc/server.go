// Package grpc exposes the product service health over gRPC.
package grpc

import (
	"log/slog"

	applog "github.com/abgdnv/productroom/pkg/logger"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name health checks ask about.
const ServiceName = "productroom.ProductService"

type HealthServer struct {
	health *health.Server
	logger *slog.Logger
}

// NewHealthServer creates a health server reporting SERVING for the product
// service and for the server as a whole.
func NewHealthServer(logger *slog.Logger) *HealthServer {
	h := health.NewServer()
	h.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	return &HealthServer{
		health: h,
		logger: applog.Component(logger, "grpc_health"),
	}
}

// Register adds the health service to s.
func (h *HealthServer) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.health)
}

// Shutdown switches every service to NOT_SERVING and ignores later updates.
func (h *HealthServer) Shutdown() {
	h.logger.Info("Reporting NOT_SERVING")
	h.health.Shutdown()
}
