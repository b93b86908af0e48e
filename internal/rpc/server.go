// Package rpc exposes the monitor's gRPC health service.
package rpc

import (
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// MonitoringService is the health service name whose status follows the
// monitoring session. The empty service name reports the process itself.
const MonitoringService = "proctor.Monitoring"

// #region server-struct
// Server wraps a gRPC server carrying the standard health service.
type Server struct {
	grpc   *grpc.Server
	health *health.Server
	logger *zap.Logger
}
// #endregion server-struct

// #region constructor
// NewServer registers health and reflection. Monitoring starts as
// NOT_SERVING until SetMonitoring(true).
func NewServer(logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	gs := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	reflection.Register(gs)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(MonitoringService, healthpb.HealthCheckResponse_NOT_SERVING)

	return &Server{grpc: gs, health: hs, logger: logger.Named("rpc")}
}
// #endregion constructor

// #region lifecycle
// SetMonitoring publishes whether a session is currently running.
func (s *Server) SetMonitoring(running bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if running {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(MonitoringService, status)
	s.logger.Debug("monitoring status", zap.Stringer("status", status))
}

// Serve blocks accepting connections on lis until GracefulStop.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("grpc listening", zap.String("addr", lis.Addr().String()))
	if err := s.grpc.Serve(lis); err != nil {
		return fmt.Errorf("grpc serve: %w", err)
	}
	return nil
}

// GracefulStop marks every service NOT_SERVING and drains connections.
func (s *Server) GracefulStop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
// #endregion lifecycle
