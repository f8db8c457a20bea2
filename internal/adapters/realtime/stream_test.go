package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/instantmart/admin-console/internal/domain/notification"
	"github.com/instantmart/admin-console/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type recorder struct {
	mu     sync.Mutex
	states []notification.State
	items  []notification.Notification
}

func (r *recorder) handlers() ports.StreamHandlers {
	return ports.StreamHandlers{
		OnNotification: func(n notification.Notification) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.items = append(r.items, n)
		},
		OnStateChange: func(s notification.State) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.states = append(r.states, s)
		},
	}
}

func (r *recorder) snapshot() ([]notification.State, []notification.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]notification.State(nil), r.states...), append([]notification.Notification(nil), r.items...)
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func frame(t *testing.T, event string, data any) []byte {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	out, err := json.Marshal(Message{Event: event, Data: raw})
	require.NoError(t, err)
	return out
}

func TestStream_DeliversNotificationsWithBearerHeader(t *testing.T) {
	var gotAuth, gotQuery atomic.Value
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		gotQuery.Store(r.URL.RawQuery)
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		_ = ws.WriteMessage(websocket.TextMessage, frame(t, "Heartbeat", map[string]any{}))
		_ = ws.WriteMessage(websocket.TextMessage, frame(t, EventReceiveNotification, notification.Notification{ID: 5, Title: "New order"}))
		// hold the socket until the client closes
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	rec := &recorder{}
	stream := NewStream(StreamOptions{URL: wsURL(srv)})
	conn, err := stream.Open(context.Background(), ports.StreamDialInput{
		UserID:      7,
		Credentials: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok-1"}),
		Handlers:    rec.handlers(),
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		_, items := rec.snapshot()
		return len(items) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	assert.Equal(t, "Bearer tok-1", gotAuth.Load())
	assert.Equal(t, "userId=7", gotQuery.Load())
	assert.NotContains(t, gotQuery.Load(), "tok-1")

	states, items := rec.snapshot()
	assert.Equal(t, int64(5), items[0].ID)
	assert.Equal(t, []notification.State{
		notification.StateConnecting,
		notification.StateConnected,
		notification.StateDisconnected,
	}, states)
}

func TestStream_ReconnectsWithFreshCredentials(t *testing.T) {
	var connections atomic.Int32
	var tokens sync.Map
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := connections.Add(1)
		tokens.Store(n, r.Header.Get("Authorization"))
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if n == 1 {
			// drop the first connection to force a reconnect
			_ = ws.Close()
			return
		}
		defer ws.Close()
		_ = ws.WriteMessage(websocket.TextMessage, frame(t, EventReceiveNotification, notification.Notification{ID: 9}))
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	var issued atomic.Int32
	creds := tokenSourceFunc(func() (*oauth2.Token, error) {
		n := issued.Add(1)
		return &oauth2.Token{AccessToken: "tok-" + string(rune('0'+n))}, nil
	})

	rec := &recorder{}
	stream := NewStream(StreamOptions{URL: wsURL(srv), ReconnectInterval: 10 * time.Millisecond})
	conn, err := stream.Open(context.Background(), ports.StreamDialInput{Credentials: creds, Handlers: rec.handlers()})
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		_, items := rec.snapshot()
		return len(items) == 1
	}, 2*time.Second, 10*time.Millisecond)

	first, _ := tokens.Load(int32(1))
	second, _ := tokens.Load(int32(2))
	assert.Equal(t, "Bearer tok-1", first)
	assert.Equal(t, "Bearer tok-2", second)

	states, _ := rec.snapshot()
	assert.Contains(t, states, notification.StateReconnecting)
}

func TestStream_OpenFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	rec := &recorder{}
	_, err := NewStream(StreamOptions{URL: wsURL(srv)}).Open(context.Background(), ports.StreamDialInput{Handlers: rec.handlers()})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	states, _ := rec.snapshot()
	assert.Equal(t, []notification.State{notification.StateConnecting, notification.StateDisconnected}, states)
}

func TestStream_NoURL(t *testing.T) {
	_, err := NewStream(StreamOptions{}).Open(context.Background(), ports.StreamDialInput{})
	assert.ErrorIs(t, err, ErrNoURL)
}

func TestStream_GivesUpAfterMaxAttempts(t *testing.T) {
	var connections atomic.Int32
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if connections.Add(1) > 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err == nil {
			_ = ws.Close()
		}
	}))
	defer srv.Close()

	rec := &recorder{}
	stream := NewStream(StreamOptions{URL: wsURL(srv), ReconnectInterval: time.Millisecond, MaxReconnectAttempts: 2})
	conn, err := stream.Open(context.Background(), ports.StreamDialInput{Handlers: rec.handlers()})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		states, _ := rec.snapshot()
		return len(states) > 0 && states[len(states)-1] == notification.StateDisconnected
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, conn.Close())
	assert.Equal(t, int32(3), connections.Load())
}

type tokenSourceFunc func() (*oauth2.Token, error)

func (f tokenSourceFunc) Token() (*oauth2.Token, error) { return f() }
