package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/instantmart/admin-console/internal/domain/notification"
	"github.com/instantmart/admin-console/internal/observability/metrics"
	"github.com/instantmart/admin-console/internal/observability/statsd"
	"github.com/instantmart/admin-console/internal/ports"
	"golang.org/x/oauth2"
)

// DefaultPageSize is the notification page size when none is configured.
const DefaultPageSize = 20

const ackTimeout = 10 * time.Second

// ErrOwnerChanged is returned by Fetch when the cache was reset or handed to another
// operator while the page was loading. The page is discarded.
var ErrOwnerChanged = errors.New("notification cache changed owner during request")

// NotificationConfig tunes NotificationService.
type NotificationConfig struct {
	PageSize int
	// OnAlert is called for every newly merged pushed notification.
	OnAlert func(notification.Notification)
}

// NotificationServiceOptions groups dependencies for NotificationService.
type NotificationServiceOptions struct {
	API         ports.NotificationAPI    // Required
	Stream      ports.NotificationStream // Required
	Credentials oauth2.TokenSource       // Required: supplies the bearer token at every (re)connect
	Config      NotificationConfig
	Logger      *slog.Logger
	Metrics     statsd.Sink
}

// NotificationSnapshot is a point-in-time copy of the notification cache.
type NotificationSnapshot struct {
	UserID      int                         `json:"userId"`
	Items       []notification.Notification `json:"items"`
	UnreadCount int                         `json:"unreadCount"`
	Page        int                         `json:"page"`
	HasNextPage bool                        `json:"hasNextPage"`
	State       notification.State          `json:"state"`
}

// NotificationService keeps the operator's notification cache in sync with the
// backend and the realtime push stream. Mutations are confirmed remotely before
// the cache changes, except pushed notifications which merge immediately.
type NotificationService struct {
	api      ports.NotificationAPI
	stream   ports.NotificationStream
	creds    oauth2.TokenSource
	pageSize int
	onAlert  func(notification.Notification)
	logger   *slog.Logger
	metrics  statsd.Sink

	// lifecycle serialises Start and Stop.
	lifecycle sync.Mutex
	conn      ports.StreamConn
	acks      sync.WaitGroup

	mu      sync.Mutex
	gen     uint64
	// owner changes whenever the cache is reset or handed to another user.
	owner   uint64
	userID  int
	list    notification.List
	unread  int
	page    int
	hasNext bool
	state   notification.State
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(opts NotificationServiceOptions) *NotificationService {
	if opts.API == nil || opts.Stream == nil || opts.Credentials == nil {
		panic("service: NotificationService requires API, Stream and Credentials")
	}
	pageSize := opts.Config.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &NotificationService{
		api:      opts.API,
		stream:   opts.Stream,
		creds:    opts.Credentials,
		pageSize: pageSize,
		onAlert:  opts.Config.OnAlert,
		logger:   logger.With("component", "notifications"),
		metrics:  opts.Metrics,
		state:    notification.StateDisconnected,
	}
}

// Start connects the push stream for userID and loads the unread count.
// Starting again for the same user is a no-op; a different user first tears down
// the previous connection and cache.
func (s *NotificationService) Start(ctx context.Context, userID int) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	s.mu.Lock()
	// A stream that gave up reconnecting is redialed.
	same := s.conn != nil && s.userID == userID && s.state != notification.StateDisconnected
	s.mu.Unlock()
	if same {
		return nil
	}
	s.stopLocked()

	s.mu.Lock()
	s.gen++
	gen := s.gen
	if s.userID != userID {
		s.owner++
		s.list = notification.List{}
		s.unread = 0
		s.page = 0
		s.hasNext = false
	}
	s.userID = userID
	s.mu.Unlock()

	conn, err := s.stream.Open(ctx, ports.StreamDialInput{
		UserID:      userID,
		Credentials: s.creds,
		Handlers: ports.StreamHandlers{
			OnNotification: func(n notification.Notification) { s.onPush(gen, n) },
			OnStateChange:  func(st notification.State) { s.onState(gen, st) },
		},
	})
	if err != nil {
		s.onState(gen, notification.StateDisconnected)
		return fmt.Errorf("open notification stream: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.logger.InfoContext(ctx, "notification stream started", "user_id", userID)

	if err := s.RefreshUnreadCount(ctx); err != nil {
		s.logger.WarnContext(ctx, "initial unread count failed", "error", err)
	}
	return nil
}

// Stop closes the stream and waits for outstanding acknowledgements.
func (s *NotificationService) Stop() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.stopLocked()
}

func (s *NotificationService) stopLocked() {
	s.mu.Lock()
	s.gen++
	s.state = notification.StateDisconnected
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn != nil {
		if err := conn.Close(); err != nil {
			s.logger.Warn("close notification stream", "error", err)
		}
	}
	s.acks.Wait()
}

// Reset stops the stream and forgets the cached notifications and owner.
func (s *NotificationService) Reset() {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()
	s.stopLocked()

	s.mu.Lock()
	s.owner++
	s.userID = 0
	s.list = notification.List{}
	s.unread = 0
	s.page = 0
	s.hasNext = false
	s.mu.Unlock()
}

// RefreshUnreadCount replaces the unread counter with the server's value.
func (s *NotificationService) RefreshUnreadCount(ctx context.Context) error {
	owner := s.currentOwner()
	n, err := s.api.UnreadCount(ctx)
	if err != nil {
		return fmt.Errorf("unread count: %w", err)
	}
	s.mu.Lock()
	if owner == s.owner {
		s.unread = max(n, 0)
	}
	s.mu.Unlock()
	return nil
}

func (s *NotificationService) currentOwner() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.owner
}

func (s *NotificationService) onState(gen uint64, st notification.State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen {
		return
	}
	s.state = st
}

func (s *NotificationService) onPush(gen uint64, n notification.Notification) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	// acks are tracked under mu so Stop cannot miss one started by a current-generation push.
	s.acks.Add(1)
	added := s.list.Prepend(n)
	if added && !n.IsRead {
		s.unread++
	}
	unread := s.unread
	s.mu.Unlock()

	go s.acknowledge(n.ID)

	result := metrics.ResultSuccess
	if !added {
		result = "duplicate"
	}
	metrics.EmitNotification(s.metrics, metrics.NotificationMetric{Event: "push", Result: result, Unread: unread})

	if added && s.onAlert != nil {
		s.onAlert(n)
	}
}

func (s *NotificationService) acknowledge(id int64) {
	defer s.acks.Done()
	ctx, cancel := context.WithTimeout(context.Background(), ackTimeout)
	defer cancel()
	if err := s.api.Acknowledge(ctx, id); err != nil {
		s.logger.Warn("acknowledge notification failed", "id", id, "error", err)
	}
}

// Fetch loads page. With appendPage false the cache is replaced; otherwise
// only unseen notifications are added.
func (s *NotificationService) Fetch(ctx context.Context, page int, appendPage bool) (NotificationSnapshot, error) {
	if page < 1 {
		page = 1
	}
	owner := s.currentOwner()
	res, err := s.api.List(ctx, page, s.pageSize)
	if err != nil {
		return NotificationSnapshot{}, fmt.Errorf("fetch notifications page %d: %w", page, err)
	}

	s.mu.Lock()
	if owner != s.owner {
		s.mu.Unlock()
		return NotificationSnapshot{}, fmt.Errorf("fetch notifications page %d: %w", page, ErrOwnerChanged)
	}
	if appendPage {
		s.list.Append(res.Items...)
	} else {
		s.list.Replace(res.Items)
	}
	s.page = page
	s.hasNext = len(res.Items) >= s.pageSize
	s.mu.Unlock()

	return s.Snapshot(), nil
}

// MarkAsRead confirms with the server, then flips the cached flags and lowers the
// unread count by len(ids), floored at zero. The cache is left alone if it changed
// owner while the call was in flight.
func (s *NotificationService) MarkAsRead(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	owner := s.currentOwner()
	if err := s.api.MarkAsRead(ctx, ids); err != nil {
		s.emit("mark_read", err)
		return fmt.Errorf("mark as read: %w", err)
	}
	s.mu.Lock()
	if owner == s.owner {
		s.list.MarkRead(ids)
		s.unread = max(s.unread-len(ids), 0)
	}
	s.mu.Unlock()
	s.emit("mark_read", nil)
	return nil
}

// Delete confirms with the server, then removes the cached entry. The unread
// count drops only if the entry was unread.
func (s *NotificationService) Delete(ctx context.Context, id int64) error {
	owner := s.currentOwner()
	if err := s.api.Delete(ctx, id); err != nil {
		s.emit("delete", err)
		return fmt.Errorf("delete notification: %w", err)
	}
	s.mu.Lock()
	if owner == s.owner {
		removed, ok := s.list.Remove(id)
		if ok && !removed.IsRead && s.unread > 0 {
			s.unread--
		}
	}
	s.mu.Unlock()
	s.emit("delete", nil)
	return nil
}

// Snapshot returns a copy of the cache.
func (s *NotificationService) Snapshot() NotificationSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return NotificationSnapshot{
		UserID:      s.userID,
		Items:       s.list.Items(),
		UnreadCount: s.unread,
		Page:        s.page,
		HasNextPage: s.hasNext,
		State:       s.state,
	}
}

// State returns the realtime connection state.
func (s *NotificationService) State() notification.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *NotificationService) emit(event string, err error) {
	result := metrics.ResultSuccess
	if err != nil {
		result = metrics.ResultError
	}
	s.mu.Lock()
	unread := s.unread
	s.mu.Unlock()
	metrics.EmitNotification(s.metrics, metrics.NotificationMetric{Event: event, Result: result, Unread: unread, Err: err})
}
