package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/api"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/audio"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/replay"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/rpc"
	"github.com/danielpatrickdp/exam-proctor/go-monitor/internal/session"
)

const shutdownTimeout = 5 * time.Second

type serveOptions struct {
	fixture   string
	loop      bool
	autostart bool

	// ready, when set, receives the bound addresses once both listeners
	// are open. grpcAddr is empty when the health server is disabled.
	ready func(httpAddr, grpcAddr string)
}

func newServeCmd(a *app) *cobra.Command {
	var opts serveOptions
	var httpAddr, grpcAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard API and gRPC health server",
		Long: `serve opens the violation store, wires the detection sources into a
monitoring session and serves the dashboard API. With --fixture the
camera, detectors and audio feed are played back from a replay fixture.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("http") {
				a.cfg.Server.HTTPAddr = httpAddr
			}
			if cmd.Flags().Changed("grpc") {
				a.cfg.Server.GRPCAddr = grpcAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, opts)
		},
	}
	cmd.Flags().StringVar(&opts.fixture, "fixture", "", "Drive the session from a replay fixture instead of hardware")
	cmd.Flags().BoolVar(&opts.loop, "loop", true, "Loop the fixture when it runs out of cycles")
	cmd.Flags().BoolVar(&opts.autostart, "autostart", false, "Start monitoring without waiting for the API")
	cmd.Flags().StringVar(&httpAddr, "http", "", "HTTP listen address (default: server.http_addr)")
	cmd.Flags().StringVar(&grpcAddr, "grpc", "", "gRPC listen address, empty to disable (default: server.grpc_addr)")
	return cmd
}

// #region serve
func (a *app) serve(ctx context.Context, opts serveOptions) error {
	logger := a.logger
	s, dir, err := a.openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	if a.cfg.Retention.PruneOnStart {
		n, err := s.Prune(ctx, a.cfg.Retention.Days)
		if err != nil {
			return fmt.Errorf("prune on start: %w", err)
		}
		logger.Info("pruned old violations", zap.Int("deleted", n), zap.Int("days", a.cfg.Retention.Days))
	}

	deps := session.Deps{Store: s, Evidence: dir, Logger: logger}
	if err := a.wireSources(&deps, opts); err != nil {
		return err
	}

	var rpcSrv *rpc.Server
	if a.cfg.Server.GRPCAddr != "" {
		rpcSrv = rpc.NewServer(logger)
		deps.OnLifecycle = rpcSrv.SetMonitoring
	}

	sess, err := session.New(deps, a.cfg.ToSession())
	if err != nil {
		return err
	}

	httpLis, err := net.Listen("tcp", a.cfg.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listen http: %w", err)
	}
	var grpcLis net.Listener
	grpcAddr := ""
	if rpcSrv != nil {
		grpcLis, err = net.Listen("tcp", a.cfg.Server.GRPCAddr)
		if err != nil {
			httpLis.Close()
			return fmt.Errorf("listen grpc: %w", err)
		}
		grpcAddr = grpcLis.Addr().String()
	}

	httpSrv := &http.Server{
		Handler: api.NewRouter(&api.Handler{
			Monitor:  sess,
			Store:    s,
			Evidence: dir,
			Logger:   logger.Named("api"),
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if opts.ready != nil {
		opts.ready(httpLis.Addr().String(), grpcAddr)
	}
	logger.Info("dashboard listening",
		zap.String("http", httpLis.Addr().String()), zap.String("grpc", grpcAddr),
		zap.String("session_id", sess.ID()))

	if opts.autostart {
		if _, err := sess.Start(ctx); err != nil {
			logger.Error("autostart failed", zap.Error(err))
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpSrv.Serve(httpLis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http serve: %w", err)
		}
		return nil
	})
	if rpcSrv != nil {
		g.Go(func() error { return rpcSrv.Serve(grpcLis) })
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		sess.Stop()

		shCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		err := httpSrv.Shutdown(shCtx)
		if rpcSrv != nil {
			rpcSrv.GracefulStop()
		}
		return err
	})
	return g.Wait()
}

// wireSources fills the detection sources: a replay script when a fixture
// is given, otherwise the audio monitor. Camera and vision detectors have
// no bundled driver and run on defaults.
func (a *app) wireSources(deps *session.Deps, opts serveOptions) error {
	if opts.fixture != "" {
		f, err := replay.LoadFixture(opts.fixture)
		if err != nil {
			return err
		}
		script, err := replay.NewScript(f, opts.loop)
		if err != nil {
			return err
		}
		deps.Camera, deps.Face, deps.Objects, deps.Audio = script, script, script, script
		a.logger.Info("sources scripted from fixture",
			zap.String("fixture", opts.fixture), zap.Int("cycles", script.Len()), zap.Bool("loop", opts.loop))
		return nil
	}

	acfg := a.cfg.ToAudio()
	mon := audio.NewMonitor(nil, nil, acfg, a.logger.Named("audio"))
	if acfg.QuestionPaper != "" {
		q, err := audio.LoadQuestionPaper(acfg.QuestionPaper)
		if err != nil {
			return err
		}
		mon.SetQuestionPaper(q)
	}
	deps.Audio = mon
	return nil
}
// #endregion serve
