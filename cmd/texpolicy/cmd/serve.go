package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/solatis/texpolicy/internal/core/api"
	"github.com/solatis/texpolicy/internal/core/auth"
	"github.com/solatis/texpolicy/internal/core/config"
	"github.com/solatis/texpolicy/internal/core/metrics"
	"github.com/solatis/texpolicy/internal/core/server"
	"github.com/solatis/texpolicy/internal/rules"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the gRPC resolver service",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "0.0.0.0", "gRPC server host")
	serveCmd.Flags().Int("port", 50061, "gRPC server port")
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9161", "metrics and health listen address (empty disables)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	e, err := setup(cmd, map[string]string{
		"server.host":         "host",
		"server.port":         "port",
		"server.metrics_addr": "metrics-addr",
	})
	if err != nil {
		return err
	}
	defer e.logger.Sync() //nolint:errcheck
	logger := e.logger

	secrets, err := config.HMACSecrets()
	if err != nil {
		return fmt.Errorf("failed to load HMAC secrets: %w", err)
	}
	if len(secrets) == 0 {
		return fmt.Errorf("no HMAC secrets configured (set %s_HMAC_SECRET environment variable)", config.EnvPrefix)
	}

	rs, database, err := e.openStore(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	registry := metrics.NewRegistry()
	m := metrics.NewMetrics(registry)

	service, err := api.NewService(rs, rules.NewResolver(rules.WithLogger(logger), rules.WithFilter(rules.GlobFilter)), api.Options{
		MaxBatchSize:   e.cfg.Server.MaxBatchSize,
		RequestTimeout: e.cfg.Server.RequestTimeout,
		Metrics:        m,
		Logger:         logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	authenticator := auth.NewAuthenticator(secrets, rs.Queries(), logger)
	grpcServer, err := server.NewGRPCServer(e.cfg.Server, service, authenticator, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	var (
		metricsServer *server.MetricsServer
		metricsErr    <-chan error
	)
	if e.cfg.Server.MetricsAddr != "" {
		metricsServer = server.NewMetricsServer(e.cfg.Server.MetricsAddr, registry, database.PingContext, logger)
		metricsErr, err = metricsServer.Start()
		if err != nil {
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
	}

	logger.Info("starting texpolicy resolver",
		zap.String("version", Version),
		zap.String("addr", e.cfg.Server.Addr()),
		zap.Int("max_batch_size", e.cfg.Server.MaxBatchSize),
	)
	errChan := make(chan error, 1)
	go func() {
		errChan <- grpcServer.Start(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	shutdown := func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if metricsServer != nil {
			if err := metricsServer.Stop(shutdownCtx); err != nil {
				logger.Warn("metrics server shutdown failed", zap.Error(err))
			}
		}
		return grpcServer.Shutdown(shutdownCtx)
	}

	select {
	case err := <-errChan:
		_ = shutdown()
		return err
	case err, ok := <-metricsErr:
		if !ok {
			err = fmt.Errorf("metrics server stopped")
		}
		_ = shutdown()
		return err
	case <-sigChan:
		logger.Info("shutting down gracefully")
		return shutdown()
	}
}
