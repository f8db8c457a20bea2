package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/instantmart/admin-console/config"
	"github.com/instantmart/admin-console/internal/bootstrap"
	"github.com/instantmart/admin-console/internal/domain/notification"
)

func main() {
	ctx := context.Background()
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		slog.ErrorContext(ctx, "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
	logger := bootstrap.InitLogger(cfg.LogLevel)
	if err := run(ctx, cfg, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, cfg config.AppConfig, logger *slog.Logger) error {
	logStartupInfo(ctx, logger, &cfg)

	console, err := bootstrap.NewConsole(ctx, bootstrap.ConsoleOptions{
		Config:        cfg,
		Logger:        logger,
		Navigator:     bootstrap.LogNavigator{Logger: logger},
		OnAlert:       logAlert(logger),
		FollowSession: true,
	})
	if err != nil {
		return fmt.Errorf("build console: %w", err)
	}
	defer func() {
		if cerr := console.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close console failed", "error", cerr)
		}
	}()

	server, err := bootstrap.StartHTTPServer(console)
	if err != nil {
		return fmt.Errorf("start http server: %w", err)
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()
	logger.InfoContext(ctx, "shutdown signal received")

	return bootstrap.ShutdownHTTPServer(ctx, server, cfg.HTTP.ShutdownTimeout, logger)
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting instantmart admin console",
		"addr", cfg.HTTP.Addr,
		"api_base_url", cfg.API.BaseURL,
		"storage_backend", string(cfg.Storage.Backend),
		"realtime_enabled", cfg.Realtime.Enabled(),
		"metrics_enabled", cfg.Observability.Metrics.IsEnabled(),
		"dev", cfg.IsDev,
	)
}

func logAlert(logger *slog.Logger) func(notification.Notification) {
	return func(n notification.Notification) {
		logger.Info("notification received", "notification_id", n.ID, "title", n.Title)
	}
}
