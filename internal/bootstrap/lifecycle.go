package bootstrap

import (
	"context"
	"log/slog"
	"sync"

	domainauth "github.com/instantmart/admin-console/internal/domain/auth"
)

// notificationControl is the subset of NotificationService the lifecycle drives.
type notificationControl interface {
	Start(ctx context.Context, userID int) error
	Reset()
	RefreshUnreadCount(ctx context.Context) error
}

// notificationLifecycle follows session changes and starts or stops the
// notification service off the publishing goroutine. Only the latest session
// matters; intermediate changes are coalesced.
type notificationLifecycle struct {
	svc      notificationControl
	realtime bool
	logger   *slog.Logger

	mu      sync.Mutex
	latest  *domainauth.Session
	pending bool
	wake    chan struct{}
	done    chan struct{}
}

func newNotificationLifecycle(svc notificationControl, realtime bool, logger *slog.Logger) *notificationLifecycle {
	return &notificationLifecycle{
		svc:      svc,
		realtime: realtime,
		logger:   logger.With("component", "notification_lifecycle"),
		wake:     make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
}

// notify records s and wakes the worker. It never blocks.
func (l *notificationLifecycle) notify(s *domainauth.Session) {
	l.mu.Lock()
	l.latest = s
	l.pending = true
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

func (l *notificationLifecycle) run(ctx context.Context) {
	defer close(l.done)
	lastUser := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}

		l.mu.Lock()
		s, pending := l.latest, l.pending
		l.pending = false
		l.mu.Unlock()
		if !pending {
			continue
		}

		if s == nil {
			l.svc.Reset()
			lastUser = 0
			continue
		}
		if l.realtime {
			if err := l.svc.Start(ctx, s.UserID); err != nil {
				l.logger.WarnContext(ctx, "start notifications", "user_id", s.UserID, "error", err)
			}
		} else if s.UserID != lastUser {
			if err := l.svc.RefreshUnreadCount(ctx); err != nil {
				l.logger.WarnContext(ctx, "load unread count", "user_id", s.UserID, "error", err)
			}
		}
		lastUser = s.UserID
	}
}
