package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// #region client-struct
// HealthClient wraps a gRPC connection to a running monitor.
type HealthClient struct {
	conn   *grpc.ClientConn
	client healthpb.HealthClient
}
// #endregion client-struct

// #region constructor
// NewHealthClient connects to the monitor's gRPC server.
func NewHealthClient(addr string, opts ...grpc.DialOption) (*HealthClient, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &HealthClient{
		conn:   conn,
		client: healthpb.NewHealthClient(conn),
	}, nil
}

// NewHealthClientWithService creates a HealthClient with an injected service implementation.
func NewHealthClientWithService(svc healthpb.HealthClient) *HealthClient {
	return &HealthClient{client: svc}
}
// #endregion constructor

// #region close
// Close shuts down the gRPC connection.
func (c *HealthClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
// #endregion close

// #region check
// Monitoring reports whether the remote monitor has a running session.
func (c *HealthClient) Monitoring(ctx context.Context) (bool, error) {
	resp, err := c.client.Check(ctx, &healthpb.HealthCheckRequest{Service: MonitoringService})
	if err != nil {
		return false, fmt.Errorf("health check: %w", err)
	}
	return resp.GetStatus() == healthpb.HealthCheckResponse_SERVING, nil
}
// #endregion check
