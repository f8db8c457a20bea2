package auth

// Package auth contains simple hand-written test doubles for the session and notification ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"errors"
	"maps"
	"sync"
	"sync/atomic"
	"time"

	domainauth "github.com/instantmart/admin-console/internal/domain/auth"
	"github.com/instantmart/admin-console/internal/domain/notification"
	"github.com/instantmart/admin-console/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.AuthAPI            = (*StubAuthAPI)(nil)
	_ ports.TokenStorage       = (*MemoryTokenStorage)(nil)
	_ ports.Navigator          = (*RecordingNavigator)(nil)
	_ ports.Clock              = (*FixedClock)(nil)
	_ ports.NotificationAPI    = (*StubNotificationAPI)(nil)
	_ ports.NotificationStream = (*FakeStream)(nil)
)

// StubAuthAPI simulates the backend auth endpoints and counts calls.
type StubAuthAPI struct {
	LoginFunc   func(ctx context.Context, in ports.LoginInput) (domainauth.TokenPair, error)
	RefreshFunc func(ctx context.Context, refreshToken string) (domainauth.TokenPair, error)

	loginCalls   atomic.Int32
	refreshCalls atomic.Int32
}

func (s *StubAuthAPI) Login(ctx context.Context, in ports.LoginInput) (domainauth.TokenPair, error) {
	s.loginCalls.Add(1)
	if s.LoginFunc != nil {
		return s.LoginFunc(ctx, in)
	}
	return domainauth.TokenPair{}, errors.New("login not configured")
}

func (s *StubAuthAPI) Refresh(ctx context.Context, refreshToken string) (domainauth.TokenPair, error) {
	s.refreshCalls.Add(1)
	if s.RefreshFunc != nil {
		return s.RefreshFunc(ctx, refreshToken)
	}
	return domainauth.TokenPair{}, errors.New("refresh not configured")
}

// LoginCalls returns how many times Login was invoked.
func (s *StubAuthAPI) LoginCalls() int { return int(s.loginCalls.Load()) }

// RefreshCalls returns how many times Refresh was invoked.
func (s *StubAuthAPI) RefreshCalls() int { return int(s.refreshCalls.Load()) }

// MemoryTokenStorage is an in-memory durable storage for unit tests.
type MemoryTokenStorage struct {
	mu     sync.Mutex
	values map[string]string

	// SaveErr, when set, makes Save fail without writing anything.
	SaveErr error
}

// NewMemoryTokenStorage creates an empty in-memory storage.
func NewMemoryTokenStorage() *MemoryTokenStorage {
	return &MemoryTokenStorage{values: make(map[string]string)}
}

func (m *MemoryTokenStorage) Load(_ context.Context, keys ...string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]string, len(keys))
	for _, k := range keys {
		if v, ok := m.values[k]; ok {
			out[k] = v
		}
	}
	return out, nil
}

func (m *MemoryTokenStorage) Save(_ context.Context, values map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SaveErr != nil {
		return m.SaveErr
	}
	maps.Copy(m.values, values)
	return nil
}

func (m *MemoryTokenStorage) Clear(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

// Put writes a single key, bypassing atomic Save. Used to seed partial states.
func (m *MemoryTokenStorage) Put(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
}

// Len returns the number of stored keys.
func (m *MemoryTokenStorage) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.values)
}

// Snapshot returns a copy of everything stored.
func (m *MemoryTokenStorage) Snapshot() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return maps.Clone(m.values)
}

// RecordingNavigator records redirect-to-login requests.
type RecordingNavigator struct {
	mu      sync.Mutex
	reasons []string
}

func (n *RecordingNavigator) ToLogin(_ context.Context, reason string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reasons = append(n.reasons, reason)
}

// Calls returns how many redirects were requested.
func (n *RecordingNavigator) Calls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.reasons)
}

// Reasons returns a copy of recorded reasons.
func (n *RecordingNavigator) Reasons() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.reasons...)
}

// FixedClock is a settable clock.
type FixedClock struct {
	mu sync.Mutex
	t  time.Time
}

// NewFixedClock creates a clock frozen at t.
func NewFixedClock(t time.Time) *FixedClock { return &FixedClock{t: t} }

func (c *FixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

// Advance moves the clock forward by d.
func (c *FixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// StubNotificationAPI is an in-memory notification backend with injectable failures.
type StubNotificationAPI struct {
	mu sync.Mutex

	Pages       map[int]notification.Page
	Unread      int
	MarkErr     error
	DeleteErr   error
	AckErr      error
	ListErr     error
	Acked       []int64
	MarkedIDs   [][]int64
	DeletedIDs  []int64
	ListedPages []int
}

func (s *StubNotificationAPI) List(_ context.Context, page, pageSize int) (notification.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ListedPages = append(s.ListedPages, page)
	if s.ListErr != nil {
		return notification.Page{}, s.ListErr
	}
	p := s.Pages[page]
	p.Page = page
	p.PageSize = pageSize
	return p, nil
}

func (s *StubNotificationAPI) UnreadCount(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Unread, nil
}

func (s *StubNotificationAPI) MarkAsRead(_ context.Context, ids []int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MarkErr != nil {
		return s.MarkErr
	}
	s.MarkedIDs = append(s.MarkedIDs, append([]int64(nil), ids...))
	return nil
}

func (s *StubNotificationAPI) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	s.DeletedIDs = append(s.DeletedIDs, id)
	return nil
}

func (s *StubNotificationAPI) Acknowledge(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Acked = append(s.Acked, id)
	return s.AckErr
}

// AckedIDs returns a copy of acknowledged ids.
func (s *StubNotificationAPI) AckedIDs() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.Acked...)
}

// FakeStream captures the handlers of the most recent Open so tests can push events.
type FakeStream struct {
	mu      sync.Mutex
	last    ports.StreamDialInput
	opened  int
	closed  int
	OpenErr error
}

func (f *FakeStream) Open(_ context.Context, in ports.StreamDialInput) (ports.StreamConn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.OpenErr != nil {
		return nil, f.OpenErr
	}
	f.opened++
	f.last = in
	if in.Handlers.OnStateChange != nil {
		in.Handlers.OnStateChange(notification.StateConnected)
	}
	return &fakeConn{stream: f}, nil
}

// Push delivers n to the most recently opened stream's handler.
func (f *FakeStream) Push(n notification.Notification) {
	f.mu.Lock()
	h := f.last.Handlers.OnNotification
	f.mu.Unlock()
	if h != nil {
		h(n)
	}
}

// Report delivers a connection state change to the most recently opened stream.
func (f *FakeStream) Report(st notification.State) {
	f.mu.Lock()
	h := f.last.Handlers.OnStateChange
	f.mu.Unlock()
	if h != nil {
		h(st)
	}
}

// LastDial returns the input of the most recent Open.
func (f *FakeStream) LastDial() ports.StreamDialInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

// Opened returns how many connections were opened.
func (f *FakeStream) Opened() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opened
}

// Closed returns how many connections were closed.
func (f *FakeStream) Closed() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeConn struct {
	stream *FakeStream
	once   sync.Once
}

func (c *fakeConn) Close() error {
	c.once.Do(func() {
		c.stream.mu.Lock()
		c.stream.closed++
		c.stream.mu.Unlock()
	})
	return nil
}
