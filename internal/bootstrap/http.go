package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	httpx "github.com/instantmart/admin-console/internal/http"
)

// BuildHTTPHandler builds the console router over an assembled Console.
func BuildHTTPHandler(c *Console) http.Handler {
	services := httpx.RouterServices{
		Auth:   c.Session,
		API:    c.Gateway,
		Logger: c.Logger,
	}
	if c.Notifications != nil {
		services.Notifications = c.Notifications
	}
	if c.storage != nil {
		services.Storage = c.storage
	}
	return httpx.NewRouter(services)
}

// StartHTTPServer binds the console address and serves in the background.
// Binding happens synchronously so address errors surface to the caller.
func StartHTTPServer(c *Console) (*http.Server, error) {
	addr := c.Config.HTTP.Addr
	// Guard against empty addr to avoid listening on every interface
	if addr == "" {
		addr = "127.0.0.1:8080"
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	server := &http.Server{
		Addr:              ln.Addr().String(),
		Handler:           BuildHTTPHandler(c),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      c.Config.API.Timeout + 15*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger := c.Logger
	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
		}
	}()
	return server, nil
}

// ShutdownHTTPServer gracefully shuts down the HTTP server within timeout.
func ShutdownHTTPServer(ctx context.Context, server *http.Server, timeout time.Duration, logger *slog.Logger) error {
	if server == nil {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	logger.Info("shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("HTTP server stopped")
	return nil
}
