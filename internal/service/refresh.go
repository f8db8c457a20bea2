package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/instantmart/admin-console/internal/domain/api"
	domainauth "github.com/instantmart/admin-console/internal/domain/auth"
	apperrors "github.com/instantmart/admin-console/internal/errors"
	"github.com/instantmart/admin-console/internal/observability/metrics"
	"github.com/instantmart/admin-console/internal/observability/statsd"
	"github.com/instantmart/admin-console/internal/ports"
	"golang.org/x/sync/singleflight"
)

// RefreshState reports whether a token refresh is in flight.
type RefreshState string

const (
	RefreshIdle       RefreshState = "idle"
	RefreshRefreshing RefreshState = "refreshing"
)

// DefaultRefreshTimeout bounds a refresh call when no timeout is configured.
const DefaultRefreshTimeout = 30 * time.Second

const refreshKey = "refresh"

// RefreshCoordinatorOptions groups dependencies for RefreshCoordinator.
type RefreshCoordinatorOptions struct {
	API       ports.AuthAPI   // Required
	Session   *SessionService // Required
	Navigator ports.Navigator // Optional: redirect target after a failed refresh
	Timeout   time.Duration   // Optional: defaults to DefaultRefreshTimeout
	Logger    *slog.Logger
	Metrics   statsd.Sink
}

// RefreshCoordinator runs at most one token refresh at a time. Concurrent callers
// share the in-flight result and are released in the order they joined.
type RefreshCoordinator struct {
	api       ports.AuthAPI
	session   *SessionService
	navigator ports.Navigator
	timeout   time.Duration
	logger    *slog.Logger
	metrics   statsd.Sink

	group      singleflight.Group
	refreshing atomic.Bool
	waiters    atomic.Int32
}

// NewRefreshCoordinator constructs a RefreshCoordinator.
func NewRefreshCoordinator(opts RefreshCoordinatorOptions) *RefreshCoordinator {
	if opts.API == nil || opts.Session == nil {
		panic("service: RefreshCoordinator requires API and Session")
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultRefreshTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RefreshCoordinator{
		api:       opts.API,
		session:   opts.Session,
		navigator: opts.Navigator,
		timeout:   timeout,
		logger:    logger.With("component", "refresh"),
		metrics:   opts.Metrics,
	}
}

// State returns the current coordinator state.
func (c *RefreshCoordinator) State() RefreshState {
	if c.refreshing.Load() {
		return RefreshRefreshing
	}
	return RefreshIdle
}

// Refresh returns a fresh access token, joining an in-flight refresh if one is running.
// On failure every caller gets the same session_expired error, the session is logged
// out and the navigator is sent to login once. A caller whose ctx ends stops waiting
// without cancelling the shared refresh.
func (c *RefreshCoordinator) Refresh(ctx context.Context) (string, error) {
	c.waiters.Add(1)
	ch := c.group.DoChan(refreshKey, func() (any, error) {
		return c.run()
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		token, _ := res.Val.(string)
		return token, nil
	case <-ctx.Done():
		return "", fmt.Errorf("wait for token refresh: %w", ctx.Err())
	}
}

func (c *RefreshCoordinator) run() (string, error) {
	c.refreshing.Store(true)
	defer c.refreshing.Store(false)

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	token, err := c.exchange(ctx)
	waiters := int(c.waiters.Swap(0))

	if err != nil {
		expired := c.fail(ctx, err)
		metrics.EmitRefresh(c.metrics, metrics.RefreshMetric{
			Result: metrics.ResultError, Waiters: waiters, Duration: time.Since(start), Err: expired,
		})
		return "", expired
	}

	c.logger.DebugContext(ctx, "access token refreshed", "waiters", waiters)
	metrics.EmitRefresh(c.metrics, metrics.RefreshMetric{
		Result: metrics.ResultSuccess, Waiters: waiters, Duration: time.Since(start),
	})
	return token, nil
}

func (c *RefreshCoordinator) exchange(ctx context.Context) (string, error) {
	refresh := c.session.RefreshToken()
	if refresh == "" {
		return "", errors.New("no refresh token")
	}
	pair, err := c.api.Refresh(ctx, refresh)
	if err != nil {
		return "", err
	}
	if pair.AccessToken == "" {
		return "", errors.New("refresh returned no access token")
	}
	if updErr := c.session.UpdateTokens(ctx, pair.AccessToken, pair.RefreshToken); updErr != nil {
		if errors.Is(updErr, domainauth.ErrNoSession) {
			return "", updErr
		}
		// Memory already holds the new pair; only durability was lost.
		c.logger.WarnContext(ctx, "persist refreshed tokens failed", "error", updErr)
	}
	return pair.AccessToken, nil
}

// fail tears the session down once for the whole flight.
func (c *RefreshCoordinator) fail(ctx context.Context, cause error) error {
	c.logger.WarnContext(ctx, "token refresh failed; ending session", "error", cause)
	if err := c.session.Logout(ctx); err != nil {
		c.logger.ErrorContext(ctx, "logout after failed refresh", "error", err)
	}
	if c.navigator != nil {
		c.navigator.ToLogin(ctx, api.MsgSessionExpired)
	}
	return &apperrors.AppError{
		Code:    apperrors.ErrCodeSessionExpired,
		Message: api.MsgSessionExpired,
		Cause:   errors.Join(domainauth.ErrSessionExpired, cause),
	}
}
