package bootstrap

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/instantmart/admin-console/config"
	"github.com/instantmart/admin-console/internal/adapters/memory"
	domainauth "github.com/instantmart/admin-console/internal/domain/auth"
	"github.com/instantmart/admin-console/internal/ports"
	"github.com/instantmart/admin-console/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	srv         *httptest.Server
	unreadCalls atomic.Int32
	token       string
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{token: testutil.NewToken(42, "Admin", time.Now().Add(time.Hour)).String()}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, _ *http.Request) {
		writeBody(w, map[string]any{"success": true, "data": map[string]any{
			"accessToken": b.token, "refreshToken": "refresh-1",
		}})
	})
	mux.HandleFunc("GET /notifications/unread-count", func(w http.ResponseWriter, _ *http.Request) {
		b.unreadCalls.Add(1)
		writeBody(w, map[string]any{"success": true, "data": map[string]any{"count": 4}})
	})
	b.srv = httptest.NewServer(mux)
	t.Cleanup(b.srv.Close)
	return b
}

func writeBody(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func consoleConfig(baseURL string) config.AppConfig {
	return config.AppConfig{
		API:           config.APIConfig{BaseURL: baseURL, Timeout: 5 * time.Second, CORSMode: "cors"},
		Notifications: config.NotificationsConfig{PageSize: 20},
		Auth:          config.AuthConfig{RefreshTimeout: 5 * time.Second, Profile: "default"},
		Storage:       config.StorageConfig{Backend: config.StorageMemory},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewConsole_LoginLoadsNotificationsAndLogoutStops(t *testing.T) {
	backend := newFakeBackend(t)
	c, err := NewConsole(context.Background(), ConsoleOptions{
		Config:        consoleConfig(backend.srv.URL),
		Logger:        quietLogger(),
		Storage:       memory.NewTokenStorage(),
		FollowSession: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, c.Close()) })

	sess, err := c.Session.Login(context.Background(), "asha@instantmart.test", "pw")
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleAdmin, sess.Role)

	require.Eventually(t, func() bool {
		return c.Notifications.Snapshot().UnreadCount == 4
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, c.Session.Logout(context.Background()))
	_, ok := c.Session.Current()
	assert.False(t, ok)
	require.Eventually(t, func() bool {
		return c.Notifications.Snapshot().UnreadCount == 0
	}, 2*time.Second, 10*time.Millisecond, "signing out forgets the previous operator's notifications")
}

func TestNewConsole_RestoresStoredSession(t *testing.T) {
	backend := newFakeBackend(t)
	storage := memory.NewTokenStorage()
	user, err := json.Marshal(domainauth.Identity{UserID: 7, Name: "Ravi", Role: domainauth.RoleSuperAdmin})
	require.NoError(t, err)
	require.NoError(t, storage.Save(context.Background(), map[string]string{
		ports.StorageKeyAccessToken:  backend.token,
		ports.StorageKeyRefreshToken: "refresh-1",
		ports.StorageKeyUser:         string(user),
	}))

	c, err := NewConsole(context.Background(), ConsoleOptions{
		Config:  consoleConfig(backend.srv.URL),
		Logger:  quietLogger(),
		Storage: storage,
	})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, c.Close()) })

	sess, ok := c.Session.Current()
	require.True(t, ok)
	assert.Equal(t, 7, sess.UserID)
	assert.Equal(t, domainauth.RoleSuperAdmin, sess.Role)
	assert.Zero(t, backend.unreadCalls.Load(), "notifications only follow the session when asked")
}

func TestNewConsole_PartialSessionIsCleared(t *testing.T) {
	storage := memory.NewTokenStorage()
	require.NoError(t, storage.Save(context.Background(), map[string]string{ports.StorageKeyAccessToken: "tok"}))

	c, err := NewConsole(context.Background(), ConsoleOptions{
		Config:  consoleConfig("http://127.0.0.1:1"),
		Logger:  quietLogger(),
		Storage: storage,
	})
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, c.Close()) })

	_, ok := c.Session.Current()
	assert.False(t, ok)
	left, err := storage.Load(context.Background(), ports.SessionKeys...)
	require.NoError(t, err)
	assert.Empty(t, left)
}

type recordingControl struct {
	mu      sync.Mutex
	calls   []string
	started chan struct{}
}

func (r *recordingControl) record(s string) {
	r.mu.Lock()
	r.calls = append(r.calls, s)
	r.mu.Unlock()
	select {
	case r.started <- struct{}{}:
	default:
	}
}

func (r *recordingControl) Start(_ context.Context, userID int) error {
	r.record("start")
	return nil
}

func (r *recordingControl) Reset() { r.record("reset") }

func (r *recordingControl) RefreshUnreadCount(context.Context) error {
	r.record("refresh")
	return nil
}

func (r *recordingControl) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.calls...)
}

func TestNotificationLifecycle(t *testing.T) {
	run := func(t *testing.T, realtime bool) (*recordingControl, *notificationLifecycle, context.CancelFunc) {
		t.Helper()
		ctl := &recordingControl{started: make(chan struct{}, 16)}
		l := newNotificationLifecycle(ctl, realtime, quietLogger())
		ctx, cancel := context.WithCancel(context.Background())
		go l.run(ctx)
		t.Cleanup(func() {
			cancel()
			<-l.done
		})
		return ctl, l, cancel
	}
	sess := func(id int) *domainauth.Session {
		return &domainauth.Session{Identity: domainauth.Identity{UserID: id, Role: domainauth.RoleAdmin}}
	}

	t.Run("realtime starts and stops", func(t *testing.T) {
		ctl, l, _ := run(t, true)
		l.notify(sess(1))
		require.Eventually(t, func() bool { return len(ctl.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
		l.notify(nil)
		require.Eventually(t, func() bool { return len(ctl.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
		assert.Equal(t, []string{"start", "reset"}, ctl.snapshot())
	})

	t.Run("without realtime refreshes once per user", func(t *testing.T) {
		ctl, l, _ := run(t, false)
		l.notify(sess(1))
		require.Eventually(t, func() bool { return len(ctl.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
		l.notify(sess(1))
		l.notify(sess(2))
		require.Eventually(t, func() bool { return len(ctl.snapshot()) == 2 }, time.Second, 5*time.Millisecond)
		assert.Equal(t, []string{"refresh", "refresh"}, ctl.snapshot())
	})

	t.Run("notify never blocks", func(t *testing.T) {
		ctl, l, _ := run(t, true)
		for i := range 100 {
			l.notify(sess(i%3 + 1))
		}
		l.notify(nil)
		require.Eventually(t, func() bool {
			calls := ctl.snapshot()
			return len(calls) > 0 && calls[len(calls)-1] == "reset"
		}, time.Second, 5*time.Millisecond)
	})
}

func TestPromptNavigator(t *testing.T) {
	var buf bytes.Buffer
	n := &PromptNavigator{Out: &buf}
	n.ToLogin(context.Background(), "Your session has expired.")
	assert.Equal(t, "Your session has expired. Run \"instantmart-admin login\" to continue.\n", buf.String())

	(&PromptNavigator{}).ToLogin(context.Background(), "ignored")
}
