package commands

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sealbox/sealbox/internal/app"
	"github.com/sealbox/sealbox/internal/config"
)

// RunSweeper runs the lease expiration sweeper as a long-lived agent. When
// metrics are enabled it also serves the Prometheus endpoint. Blocks until
// SIGINT/SIGTERM, then stops the sweeper cleanly: no lease is left half-updated
// because expiry batches are single conditional statements.
func RunSweeper(ctx context.Context, version string) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()
	logger.Info("starting lease sweeper agent", slog.String("version", version))

	defer closeContainer(container, logger)

	sweeper, err := container.LeaseSweeper()
	if err != nil {
		return fmt.Errorf("failed to initialize lease sweeper: %w", err)
	}

	var metricsServer *http.Server
	if cfg.MetricsEnabled {
		provider, err := container.MetricsProvider()
		if err != nil {
			return fmt.Errorf("failed to initialize metrics provider: %w", err)
		}

		mux := http.NewServeMux()
		mux.Handle("/metrics", provider.Handler())
		metricsServer = &http.Server{
			Addr:    fmt.Sprintf(":%d", cfg.MetricsPort),
			Handler: mux,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server error", slog.Any("error", err))
			}
		}()
	}

	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("failed to start lease sweeper: %w", err)
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	<-ctx.Done()

	logger.Info("shutdown signal received")
	sweeper.Stop()

	if metricsServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.DBConnMaxLifetime)
		defer shutdownCancel()
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown: %w", err)
		}
	}

	return nil
}
