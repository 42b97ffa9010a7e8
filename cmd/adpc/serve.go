package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	"github.com/danielpatrickdp/adpc/internal/adpc"
	"github.com/danielpatrickdp/adpc/internal/config"
	"github.com/danielpatrickdp/adpc/internal/metrics"
	"github.com/danielpatrickdp/adpc/internal/rpc"
	"github.com/danielpatrickdp/adpc/internal/store"
)

const shutdownTimeout = 5 * time.Second

func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the core over gRPC",
		Long: `Serve adpc.v1.Core and grpc.health.v1 on --addr. With a database the
active snapshot is restored first, every Observe is logged, and the final
state is saved as a new snapshot on shutdown. Prometheus metrics are served
on --metrics-addr when set.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().String("addr", envOr("ADPC_ADDR", ""), "gRPC listen address (default server.addr)")
	cmd.Flags().String("metrics-addr", "", "HTTP address for /metrics (default server.metrics_addr)")
	cmd.Flags().Bool("verbose", false, "Log at debug level")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}
	if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
		cfg.Server.MetricsAddr = addr
	}

	level := slog.LevelInfo
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

	var st *store.Store
	if path, _ := cmd.Flags().GetString("db"); path != "" || cfg.Store.Path != "" {
		if st, err = openStore(cmd, cfg); err != nil {
			return err
		}
		defer st.Close()
	}

	lis, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return serve(ctx, cfg, st, lis, logger)
}

// serve runs until ctx is done or a listener fails. It owns lis.
func serve(ctx context.Context, cfg *config.Config, st *store.Store, lis net.Listener, logger *slog.Logger) error {
	recorder := metrics.NewRecorder()

	var (
		core     *adpc.Core
		parentID string
		err      error
	)
	if st != nil {
		core, parentID, err = restoreCore(st, cfg.Core(), adpc.WithMetrics(recorder))
	} else {
		core, err = adpc.New(cfg.Core(), adpc.WithMetrics(recorder))
	}
	if err != nil {
		lis.Close()
		return err
	}

	opts := []rpc.ServerOption{rpc.WithLogger(logger)}
	if st != nil {
		opts = append(opts, rpc.WithAllocationLog(st.DB(), parentID))
	}
	srv := rpc.NewServer(core, opts...)
	gs := grpc.NewServer()
	srv.Register(gs)

	var metricsServer *http.Server
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", recorder.Handler())
		metricsServer = &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("serving", "addr", lis.Addr().String(), "snapshot", parentID)
		return gs.Serve(lis)
	})
	if metricsServer != nil {
		g.Go(func() error {
			logger.Info("serving metrics", "addr", metricsServer.Addr)
			if err := metricsServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		srv.Shutdown()
		gs.GracefulStop()
		if metricsServer != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return metricsServer.Shutdown(shutdownCtx)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("serve: %w", err)
	}

	if st == nil {
		return nil
	}
	rec, err := st.SaveSnapshot(core.Snapshot(), core.Config(), "serve shutdown")
	if err != nil {
		return err
	}
	logger.Info("saved snapshot", "version", rec.VersionID)
	return nil
}
