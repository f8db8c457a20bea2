// Package realtime implements the notification push stream over websockets.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/instantmart/admin-console/internal/domain/notification"
	"github.com/instantmart/admin-console/internal/ports"
	"golang.org/x/time/rate"
)

// EventReceiveNotification is the inbound event carrying a new notification.
const EventReceiveNotification = "ReceiveNotification"

// Message is one websocket frame.
type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// ErrNoURL is returned by Open when the stream has no endpoint configured.
var ErrNoURL = errors.New("realtime url is not configured")

// StreamOptions configures a Stream.
type StreamOptions struct {
	URL    string
	Dialer *websocket.Dialer
	// ReconnectInterval paces reconnect attempts. Defaults to 2s.
	ReconnectInterval time.Duration
	// ReconnectBurst allows this many immediate attempts before pacing applies. Defaults to 1.
	ReconnectBurst int
	// MaxReconnectAttempts gives up after this many consecutive failures; zero retries forever.
	MaxReconnectAttempts int
	Logger               *slog.Logger
}

// Stream implements ports.NotificationStream.
type Stream struct {
	url         string
	dialer      *websocket.Dialer
	interval    time.Duration
	burst       int
	maxAttempts int
	logger      *slog.Logger
}

var _ ports.NotificationStream = (*Stream)(nil)

// NewStream creates a Stream.
func NewStream(opts StreamOptions) *Stream {
	dialer := opts.Dialer
	if dialer == nil {
		dialer = &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		}
	}
	interval := opts.ReconnectInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	burst := opts.ReconnectBurst
	if burst <= 0 {
		burst = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Stream{
		url:         opts.URL,
		dialer:      dialer,
		interval:    interval,
		burst:       burst,
		maxAttempts: opts.MaxReconnectAttempts,
		logger:      logger.With("component", "realtime"),
	}
}

// Open dials the stream and keeps it connected until the returned connection is
// closed or ctx ends. The first dial is synchronous; its failure is returned.
func (s *Stream) Open(ctx context.Context, in ports.StreamDialInput) (ports.StreamConn, error) {
	if s.url == "" {
		return nil, ErrNoURL
	}
	notify := stateNotifier(in.Handlers.OnStateChange)

	notify(notification.StateConnecting)
	ws, err := s.dial(ctx, in)
	if err != nil {
		notify(notification.StateDisconnected)
		return nil, err
	}
	notify(notification.StateConnected)

	runCtx, cancel := context.WithCancel(ctx)
	c := &conn{cancel: cancel, done: make(chan struct{}), ws: ws}
	c.stopAfter = context.AfterFunc(runCtx, c.closeWS)

	go s.run(runCtx, c, in, notify)
	return c, nil
}

func stateNotifier(fn func(notification.State)) func(notification.State) {
	if fn == nil {
		return func(notification.State) {}
	}
	return fn
}

func (s *Stream) dial(ctx context.Context, in ports.StreamDialInput) (*websocket.Conn, error) {
	target, err := url.Parse(s.url)
	if err != nil {
		return nil, fmt.Errorf("parse realtime url: %w", err)
	}
	if in.UserID != 0 {
		q := target.Query()
		q.Set("userId", strconv.Itoa(in.UserID))
		target.RawQuery = q.Encode()
	}

	header := http.Header{}
	if in.Credentials != nil {
		tok, tokErr := in.Credentials.Token()
		if tokErr != nil {
			return nil, fmt.Errorf("realtime credentials: %w", tokErr)
		}
		if tok != nil && tok.AccessToken != "" {
			header.Set("Authorization", "Bearer "+tok.AccessToken)
		}
	}

	ws, resp, err := s.dialer.DialContext(ctx, target.String(), header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial realtime (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("dial realtime: %w", err)
	}
	return ws, nil
}

func (s *Stream) run(ctx context.Context, c *conn, in ports.StreamDialInput, notify func(notification.State)) {
	defer close(c.done)
	defer notify(notification.StateDisconnected)
	defer c.stopAfter()

	limiter := rate.NewLimiter(rate.Every(s.interval), s.burst)
	ws := c.current()
	for {
		s.readLoop(ws, in.Handlers)
		if ctx.Err() != nil {
			return
		}

		notify(notification.StateReconnecting)
		next, ok := s.reconnect(ctx, limiter, in)
		if !ok {
			return
		}
		if !c.swap(ctx, next) {
			return
		}
		ws = next
		notify(notification.StateConnected)
	}
}

func (s *Stream) reconnect(ctx context.Context, limiter *rate.Limiter, in ports.StreamDialInput) (*websocket.Conn, bool) {
	for attempt := 1; ; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil, false
		}
		ws, err := s.dial(ctx, in)
		if err == nil {
			s.logger.InfoContext(ctx, "realtime reconnected", "attempt", attempt, "user_id", in.UserID)
			return ws, true
		}
		s.logger.WarnContext(ctx, "realtime reconnect failed", "attempt", attempt, "error", err)
		if s.maxAttempts > 0 && attempt >= s.maxAttempts {
			s.logger.ErrorContext(ctx, "realtime giving up", "attempts", attempt)
			return nil, false
		}
	}
}

func (s *Stream) readLoop(ws *websocket.Conn, h ports.StreamHandlers) {
	defer func() { _ = ws.Close() }()
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure) && !errors.Is(err, net.ErrClosed) {
				s.logger.Debug("realtime read ended", "error", err)
			}
			return
		}
		s.dispatch(data, h)
	}
}

func (s *Stream) dispatch(data []byte, h ports.StreamHandlers) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.logger.Warn("realtime frame is not json", "error", err)
		return
	}
	if msg.Event != EventReceiveNotification {
		s.logger.Debug("realtime event ignored", "event", msg.Event)
		return
	}
	var n notification.Notification
	if err := json.Unmarshal(msg.Data, &n); err != nil {
		s.logger.Warn("realtime notification payload invalid", "error", err)
		return
	}
	if h.OnNotification != nil {
		h.OnNotification(n)
	}
}

// conn is a live subscription. Close must not be called from a stream handler.
type conn struct {
	cancel    context.CancelFunc
	stopAfter func() bool
	done      chan struct{}
	once      sync.Once

	mu sync.Mutex
	ws *websocket.Conn
}

func (c *conn) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws
}

// swap installs a freshly dialed socket unless the subscription is already closing.
func (c *conn) swap(ctx context.Context, ws *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx.Err() != nil {
		_ = ws.Close()
		return false
	}
	c.ws = ws
	return true
}

func (c *conn) closeWS() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ws == nil {
		return
	}
	_ = c.ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	_ = c.ws.Close()
}

// Close stops reconnecting, closes the socket and waits for the read loop to exit.
func (c *conn) Close() error {
	c.once.Do(c.cancel)
	<-c.done
	return nil
}
