package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/instantmart/admin-console/config"
	"github.com/instantmart/admin-console/internal/adapters/jwtcodec"
	"github.com/instantmart/admin-console/internal/adapters/realtime"
	"github.com/instantmart/admin-console/internal/adapters/restapi"
	domainauth "github.com/instantmart/admin-console/internal/domain/auth"
	"github.com/instantmart/admin-console/internal/domain/notification"
	"github.com/instantmart/admin-console/internal/observability/statsd"
	"github.com/instantmart/admin-console/internal/ports"
	"github.com/instantmart/admin-console/internal/service"
)

// ConsoleOptions groups everything needed to assemble the console services.
type ConsoleOptions struct {
	Config    config.AppConfig
	Logger    *slog.Logger
	Navigator ports.Navigator
	// Storage overrides the configured backend. When nil, BuildTokenStorage picks one.
	Storage ports.TokenStorage
	// HTTPClient is shared by the auth client and the gateway when set.
	HTTPClient *http.Client
	// OnAlert receives every newly pushed notification.
	OnAlert func(notification.Notification)
	// FollowSession starts notifications when an operator signs in and stops them on sign out.
	FollowSession bool
}

// Console is the assembled set of services for one operator session.
type Console struct {
	Config        config.AppConfig
	Logger        *slog.Logger
	Codec         *jwtcodec.Codec
	Session       *service.SessionService
	Refresher     *service.RefreshCoordinator
	Gateway       *service.Gateway
	Notifications *service.NotificationService
	Metrics       statsd.Sink

	storage       *TokenStorageHandle
	metricsClient *statsd.Client
	unsubscribe   []func()
	lifecycle     *notificationLifecycle
	cancel        context.CancelFunc
}

// NewConsole wires the session, refresh, gateway and notification services and
// restores any persisted session. A partial stored session is discarded and logged.
func NewConsole(ctx context.Context, opts ConsoleOptions) (*Console, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := opts.Config
	c := &Console{Config: cfg, Logger: logger, Codec: jwtcodec.New()}

	c.buildMetrics()

	storage := opts.Storage
	if storage == nil {
		h, err := BuildTokenStorage(ctx, StorageDeps{Config: cfg, Logger: logger})
		if err != nil {
			return nil, fmt.Errorf("build token storage: %w", err)
		}
		c.storage = h
		storage = h.Storage
	}

	authAPI := restapi.NewAuthClient(restapi.AuthClientOptions{
		BaseURL:    cfg.API.BaseURL,
		HTTPClient: opts.HTTPClient,
		Timeout:    cfg.API.Timeout,
	})
	c.Session = service.NewSessionService(service.SessionServiceOptions{
		API:     authAPI,
		Storage: storage,
		Codec:   c.Codec,
		Logger:  logger,
	})
	c.unsubscribe = append(c.unsubscribe, c.Session.Subscribe(logSessionChange(logger)))

	navigator := opts.Navigator
	if navigator == nil {
		navigator = LogNavigator{Logger: logger}
	}
	c.Refresher = service.NewRefreshCoordinator(service.RefreshCoordinatorOptions{
		API:       authAPI,
		Session:   c.Session,
		Navigator: navigator,
		Timeout:   cfg.Auth.RefreshTimeout,
		Logger:    logger,
		Metrics:   c.Metrics,
	})

	gw, err := service.NewGateway(service.GatewayOptions{
		Config: service.GatewayConfig{
			BaseURL:  cfg.API.BaseURL,
			Timeout:  cfg.API.Timeout,
			Origin:   cfg.API.Origin,
			CORSMode: cfg.API.CORSMode,
		},
		Auth: service.GatewayAuth{
			Tokens:    c.Session,
			Refresher: c.Refresher,
			Codec:     c.Codec,
		},
		HTTPClient: opts.HTTPClient,
		Logger:     logger,
		Metrics:    c.Metrics,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("build gateway: %w", err), c.Close())
	}
	c.Gateway = gw

	c.Notifications = service.NewNotificationService(service.NotificationServiceOptions{
		API: restapi.NewNotificationClient(gw),
		Stream: realtime.NewStream(realtime.StreamOptions{
			URL:                  cfg.Realtime.URL,
			ReconnectInterval:    cfg.Realtime.ReconnectInterval,
			ReconnectBurst:       cfg.Realtime.ReconnectBurst,
			MaxReconnectAttempts: cfg.Realtime.MaxReconnectAttempts,
			Logger:               logger,
		}),
		Credentials: service.NewCredentialSource(c.Session, c.Refresher, c.Codec, nil),
		Config:      service.NotificationConfig{PageSize: cfg.Notifications.PageSize, OnAlert: opts.OnAlert},
		Logger:      logger,
		Metrics:     c.Metrics,
	})

	if opts.FollowSession {
		lifeCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		c.cancel = cancel
		c.lifecycle = newNotificationLifecycle(c.Notifications, cfg.Realtime.Enabled(), logger)
		c.unsubscribe = append(c.unsubscribe, c.Session.Subscribe(c.lifecycle.notify))
		go c.lifecycle.run(lifeCtx)
	}

	if _, restoreErr := c.Session.Restore(ctx); restoreErr != nil {
		if !errors.Is(restoreErr, domainauth.ErrPartialSession) {
			return nil, errors.Join(fmt.Errorf("restore session: %w", restoreErr), c.Close())
		}
		logger.WarnContext(ctx, "stored session was incomplete and has been cleared")
	}
	return c, nil
}

func (c *Console) buildMetrics() {
	m := c.Config.Observability.Metrics
	if !m.IsEnabled() {
		return
	}
	client, err := statsd.NewClient(statsd.Config{
		Enabled: true,
		Address: m.StatsdAddress,
		Prefix:  m.Prefix,
		Logger:  c.Logger,
	})
	if err != nil {
		c.Logger.Error("failed to initialise statsd client", "error", err)
		return
	}
	c.metricsClient = client
	c.Metrics = client
}

// Close stops notifications and releases storage and metrics connections.
func (c *Console) Close() error {
	for _, unsub := range c.unsubscribe {
		unsub()
	}
	c.unsubscribe = nil
	if c.lifecycle != nil {
		c.cancel()
		<-c.lifecycle.done
	}
	if c.Notifications != nil {
		c.Notifications.Stop()
	}

	var errs []error
	if c.storage != nil {
		if err := c.storage.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close token storage: %w", err))
		}
	}
	if err := c.metricsClient.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close statsd client: %w", err))
	}
	return errors.Join(errs...)
}

func logSessionChange(logger *slog.Logger) service.SessionListener {
	return func(s *domainauth.Session) {
		if s == nil {
			logger.Info("session changed", "state", "signed_out")
			return
		}
		logger.Debug("session changed", "state", "signed_in", "user_id", s.UserID, "role", s.Role)
	}
}
