package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/rpc"
)

func newStatusCmd(a *app) *cobra.Command {
	var addr string
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Ask a running monitor whether a session is active",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.Server.GRPCAddr
			}
			if addr == "" {
				return errors.New("no grpc address: set server.grpc_addr or --addr")
			}
			client, err := rpc.NewHealthClient(addr)
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			running, err := client.Monitoring(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"addr": addr, "monitoring": running})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "gRPC address (default: server.grpc_addr)")
	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "Health check timeout")
	return cmd
}
