package httpx

import (
	"context"
	"sync"

	domainauth "github.com/instantmart/admin-console/internal/domain/auth"
	"github.com/instantmart/admin-console/internal/service"
)

// fakeAuth is an in-memory AuthService.
type fakeAuth struct {
	mu        sync.Mutex
	session   *domainauth.Session
	loginFn   func(email, password string) (domainauth.Session, error)
	logouts   int
	logoutErr error
}

func (f *fakeAuth) Current() (domainauth.Session, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.session == nil {
		return domainauth.Session{}, false
	}
	return *f.session, true
}

func (f *fakeAuth) Login(_ context.Context, email, password string) (domainauth.Session, error) {
	sess, err := f.loginFn(email, password)
	if err != nil {
		return domainauth.Session{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = &sess
	return sess, nil
}

func (f *fakeAuth) Logout(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.session = nil
	f.logouts++
	return f.logoutErr
}

func (f *fakeAuth) as(role domainauth.Role) *fakeAuth {
	f.session = &domainauth.Session{
		Identity:    domainauth.Identity{UserID: 42, Name: "Asha", Email: "asha@instantmart.test", Role: role},
		AccessToken: "access",
	}
	return f
}

// fakeNotifications records calls against a canned snapshot.
type fakeNotifications struct {
	snap       service.NotificationSnapshot
	err        error
	fetched    []int
	appended   []bool
	marked     [][]int64
	deleted    []int64
	unreadCall int
}

func (f *fakeNotifications) Snapshot() service.NotificationSnapshot { return f.snap }

func (f *fakeNotifications) Fetch(_ context.Context, page int, appendPage bool) (service.NotificationSnapshot, error) {
	if f.err != nil {
		return service.NotificationSnapshot{}, f.err
	}
	f.fetched = append(f.fetched, page)
	f.appended = append(f.appended, appendPage)
	f.snap.Page = page
	return f.snap, nil
}

func (f *fakeNotifications) RefreshUnreadCount(context.Context) error {
	f.unreadCall++
	return f.err
}

func (f *fakeNotifications) MarkAsRead(_ context.Context, ids []int64) error {
	if f.err != nil {
		return f.err
	}
	f.marked = append(f.marked, ids)
	return nil
}

func (f *fakeNotifications) Delete(_ context.Context, id int64) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	return nil
}
