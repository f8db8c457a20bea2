package ports

import (
	"context"

	"github.com/instantmart/admin-console/internal/domain/api"
	"github.com/instantmart/admin-console/internal/domain/notification"
	"golang.org/x/oauth2"
)

// NotificationAPI is the remote source of truth for notifications.
type NotificationAPI interface {
	List(ctx context.Context, page, pageSize int) (notification.Page, error)
	UnreadCount(ctx context.Context) (int, error)
	MarkAsRead(ctx context.Context, ids []int64) error
	Delete(ctx context.Context, id int64) error
	Acknowledge(ctx context.Context, id int64) error
}

// StreamHandlers receive realtime events. Callbacks run on the stream's goroutine.
type StreamHandlers struct {
	OnNotification func(notification.Notification)
	OnStateChange  func(notification.State)
}

// StreamDialInput groups parameters for opening a realtime stream.
type StreamDialInput struct {
	UserID int
	// Credentials is called at every (re)connect to obtain the bearer token.
	Credentials oauth2.TokenSource
	Handlers    StreamHandlers
}

// NotificationStream opens persistent realtime connections.
type NotificationStream interface {
	// Open connects and keeps the connection alive (reconnecting) until the
	// returned StreamConn is closed or ctx ends.
	Open(ctx context.Context, in StreamDialInput) (StreamConn, error)
}

// StreamConn is a live realtime subscription.
type StreamConn interface {
	Close() error
}

// Requester sends authenticated backend requests and folds every outcome into an Envelope.
type Requester interface {
	Send(ctx context.Context, endpoint string, opts api.RequestOptions) api.Envelope
}
