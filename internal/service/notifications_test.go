package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/instantmart/admin-console/internal/domain/notification"
	"github.com/instantmart/admin-console/internal/mocks"
	mockauth "github.com/instantmart/admin-console/internal/mocks/auth"
	"github.com/instantmart/admin-console/internal/observability/statsd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/oauth2"
)

type notificationFixture struct {
	api    *mockauth.StubNotificationAPI
	stream *mockauth.FakeStream
	sink   *statsd.Memory
	svc    *NotificationService

	mu     sync.Mutex
	alerts []notification.Notification
}

func newNotificationFixture(t *testing.T, pageSize int) *notificationFixture {
	t.Helper()
	f := &notificationFixture{
		api:    &mockauth.StubNotificationAPI{Pages: map[int]notification.Page{}},
		stream: &mockauth.FakeStream{},
		sink:   &statsd.Memory{},
	}
	f.svc = NewNotificationService(NotificationServiceOptions{
		API:         f.api,
		Stream:      f.stream,
		Credentials: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"}),
		Config: NotificationConfig{
			PageSize: pageSize,
			OnAlert: func(n notification.Notification) {
				f.mu.Lock()
				defer f.mu.Unlock()
				f.alerts = append(f.alerts, n)
			},
		},
		Metrics: f.sink,
	})
	t.Cleanup(f.svc.Stop)
	return f
}

func (f *notificationFixture) alertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.alerts)
}

func items(ids ...int64) []notification.Notification {
	out := make([]notification.Notification, len(ids))
	for i, id := range ids {
		out[i] = notification.Notification{ID: id, Title: "n"}
	}
	return out
}

func TestNotificationService_StartLoadsUnreadAndConnects(t *testing.T) {
	f := newNotificationFixture(t, 10)
	f.api.Unread = 4

	require.NoError(t, f.svc.Start(context.Background(), 42))

	snap := f.svc.Snapshot()
	assert.Equal(t, 4, snap.UnreadCount)
	assert.Equal(t, 42, snap.UserID)
	assert.Equal(t, notification.StateConnected, snap.State)

	dial := f.stream.LastDial()
	assert.Equal(t, 42, dial.UserID)
	tok, err := dial.Credentials.Token()
	require.NoError(t, err)
	assert.Equal(t, "tok", tok.AccessToken)
}

func TestNotificationService_PushDuplicateMergesOnce(t *testing.T) {
	f := newNotificationFixture(t, 10)
	require.NoError(t, f.svc.Start(context.Background(), 1))
	base := f.svc.Snapshot().UnreadCount

	f.stream.Push(notification.Notification{ID: 5, Title: "Order #5"})
	f.stream.Push(notification.Notification{ID: 5, Title: "Order #5"})

	snap := f.svc.Snapshot()
	require.Len(t, snap.Items, 1)
	assert.Equal(t, int64(5), snap.Items[0].ID)
	assert.Equal(t, base+1, snap.UnreadCount)
	assert.Equal(t, 1, f.alertCount())
	assert.Len(t, f.sink.Named("notifications.event"), 2)

	require.Eventually(t, func() bool { return len(f.api.AckedIDs()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []int64{5, 5}, f.api.AckedIDs())
}

func TestNotificationService_PushPrependsNewest(t *testing.T) {
	f := newNotificationFixture(t, 10)
	f.api.Pages[1] = notification.Page{Items: items(2, 1)}
	require.NoError(t, f.svc.Start(context.Background(), 1))
	_, err := f.svc.Fetch(context.Background(), 1, false)
	require.NoError(t, err)

	f.stream.Push(notification.Notification{ID: 3})
	ids := []int64{}
	for _, n := range f.svc.Snapshot().Items {
		ids = append(ids, n.ID)
	}
	assert.Equal(t, []int64{3, 2, 1}, ids)
}

func TestNotificationService_AckFailureDoesNotDropPush(t *testing.T) {
	f := newNotificationFixture(t, 10)
	f.api.AckErr = errors.New("ack failed")
	require.NoError(t, f.svc.Start(context.Background(), 1))

	f.stream.Push(notification.Notification{ID: 8})
	assert.Len(t, f.svc.Snapshot().Items, 1)
}

func TestNotificationService_SwitchingUserClosesPrevious(t *testing.T) {
	f := newNotificationFixture(t, 10)
	require.NoError(t, f.svc.Start(context.Background(), 1))
	f.stream.Push(notification.Notification{ID: 1})

	require.NoError(t, f.svc.Start(context.Background(), 1))
	assert.Equal(t, 1, f.stream.Opened(), "same user keeps the live connection")

	require.NoError(t, f.svc.Start(context.Background(), 2))
	assert.Equal(t, 2, f.stream.Opened())
	assert.Equal(t, 1, f.stream.Closed())
	assert.Empty(t, f.svc.Snapshot().Items, "cache belongs to the previous user")
}

func TestNotificationService_StopIgnoresLatePushes(t *testing.T) {
	f := newNotificationFixture(t, 10)
	require.NoError(t, f.svc.Start(context.Background(), 1))

	f.svc.Stop()
	f.stream.Push(notification.Notification{ID: 9})

	snap := f.svc.Snapshot()
	assert.Empty(t, snap.Items)
	assert.Equal(t, notification.StateDisconnected, snap.State)
	assert.Equal(t, 1, f.stream.Closed())
}

func TestNotificationService_ResetForgetsOwner(t *testing.T) {
	f := newNotificationFixture(t, 10)
	f.api.Unread = 3
	f.api.Pages[1] = notification.Page{Items: items(1, 2)}
	require.NoError(t, f.svc.Start(context.Background(), 1))
	_, err := f.svc.Fetch(context.Background(), 1, false)
	require.NoError(t, err)

	f.svc.Reset()

	snap := f.svc.Snapshot()
	assert.Empty(t, snap.Items)
	assert.Zero(t, snap.UnreadCount)
	assert.Zero(t, snap.UserID)
	assert.Equal(t, notification.StateDisconnected, snap.State)
	assert.Equal(t, 1, f.stream.Closed())
}

func TestNotificationService_StartFailure(t *testing.T) {
	f := newNotificationFixture(t, 10)
	f.stream.OpenErr = errors.New("dial refused")

	err := f.svc.Start(context.Background(), 1)
	require.Error(t, err)
	assert.Equal(t, notification.StateDisconnected, f.svc.State())
}

func TestNotificationService_FetchReplaceAndAppend(t *testing.T) {
	f := newNotificationFixture(t, 2)
	f.api.Pages[1] = notification.Page{Items: items(1, 2)}
	f.api.Pages[2] = notification.Page{Items: items(2, 3)}
	f.api.Pages[3] = notification.Page{Items: items(4)}

	snap, err := f.svc.Fetch(context.Background(), 1, false)
	require.NoError(t, err)
	assert.Len(t, snap.Items, 2)
	assert.True(t, snap.HasNextPage)

	snap, err = f.svc.Fetch(context.Background(), 2, true)
	require.NoError(t, err)
	assert.Len(t, snap.Items, 3, "overlapping id is not duplicated")
	assert.Equal(t, 2, snap.Page)

	snap, err = f.svc.Fetch(context.Background(), 3, true)
	require.NoError(t, err)
	assert.Len(t, snap.Items, 4)
	assert.False(t, snap.HasNextPage, "short page ends pagination")

	snap, err = f.svc.Fetch(context.Background(), 1, false)
	require.NoError(t, err)
	assert.Len(t, snap.Items, 2, "page one without append replaces the cache")
}

func TestNotificationService_FetchFailureKeepsCache(t *testing.T) {
	f := newNotificationFixture(t, 2)
	f.api.Pages[1] = notification.Page{Items: items(1, 2)}
	_, err := f.svc.Fetch(context.Background(), 1, false)
	require.NoError(t, err)

	f.api.ListErr = errors.New("boom")
	_, err = f.svc.Fetch(context.Background(), 2, true)
	require.Error(t, err)
	assert.Len(t, f.svc.Snapshot().Items, 2)
}

func TestNotificationService_MarkAsRead(t *testing.T) {
	f := newNotificationFixture(t, 10)
	f.api.Unread = 3
	f.api.Pages[1] = notification.Page{Items: items(1, 2, 3)}
	require.NoError(t, f.svc.Start(context.Background(), 1))
	_, err := f.svc.Fetch(context.Background(), 1, false)
	require.NoError(t, err)

	require.NoError(t, f.svc.MarkAsRead(context.Background(), []int64{1, 2}))
	snap := f.svc.Snapshot()
	assert.Equal(t, 1, snap.UnreadCount)
	assert.True(t, snap.Items[0].IsRead)
	assert.True(t, snap.Items[1].IsRead)
	assert.False(t, snap.Items[2].IsRead)

	require.NoError(t, f.svc.MarkAsRead(context.Background(), []int64{3, 4, 5}))
	assert.Equal(t, 0, f.svc.Snapshot().UnreadCount, "unread count floors at zero")
	assert.Equal(t, [][]int64{{1, 2}, {3, 4, 5}}, f.api.MarkedIDs)

	require.NoError(t, f.svc.MarkAsRead(context.Background(), nil))
	assert.Len(t, f.api.MarkedIDs, 2)
}

func TestNotificationService_DeleteAdjustsUnreadOnlyForUnread(t *testing.T) {
	f := newNotificationFixture(t, 10)
	f.api.Unread = 2
	page := items(1, 2)
	page[1].IsRead = true
	f.api.Pages[1] = notification.Page{Items: page}
	require.NoError(t, f.svc.Start(context.Background(), 1))
	_, err := f.svc.Fetch(context.Background(), 1, false)
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(context.Background(), 2))
	assert.Equal(t, 2, f.svc.Snapshot().UnreadCount)

	require.NoError(t, f.svc.Delete(context.Background(), 1))
	assert.Equal(t, 1, f.svc.Snapshot().UnreadCount)
	assert.Empty(t, f.svc.Snapshot().Items)
	assert.Equal(t, []int64{2, 1}, f.api.DeletedIDs)
}

func TestNotificationService_ConfirmThenMutate(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := mocks.NewMockNotificationAPI(ctrl)
	svc := NewNotificationService(NotificationServiceOptions{
		API:         api,
		Stream:      &mockauth.FakeStream{},
		Credentials: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"}),
		Config:      NotificationConfig{PageSize: 10},
	})

	api.EXPECT().List(gomock.Any(), 1, 10).Return(notification.Page{Items: items(1, 2)}, nil)
	api.EXPECT().UnreadCount(gomock.Any()).Return(2, nil)
	api.EXPECT().MarkAsRead(gomock.Any(), []int64{1}).Return(errors.New("503"))
	api.EXPECT().Delete(gomock.Any(), int64(2)).Return(errors.New("503"))

	_, err := svc.Fetch(context.Background(), 1, false)
	require.NoError(t, err)
	require.NoError(t, svc.RefreshUnreadCount(context.Background()))
	before := svc.Snapshot()

	require.Error(t, svc.MarkAsRead(context.Background(), []int64{1}))
	require.Error(t, svc.Delete(context.Background(), 2))

	assert.Equal(t, before, svc.Snapshot(), "failed remote calls leave local state untouched")
}

func TestNotificationService_InFlightCallsDoNotLeakAcrossOwners(t *testing.T) {
	ctrl := gomock.NewController(t)
	api := mocks.NewMockNotificationAPI(ctrl)
	svc := NewNotificationService(NotificationServiceOptions{
		API:         api,
		Stream:      &mockauth.FakeStream{},
		Credentials: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"}),
		Config:      NotificationConfig{PageSize: 10},
	})
	t.Cleanup(svc.Stop)

	api.EXPECT().UnreadCount(gomock.Any()).Return(5, nil)
	api.EXPECT().UnreadCount(gomock.Any()).Return(1, nil)

	listing := make(chan struct{})
	marking := make(chan struct{})
	release := make(chan struct{})
	api.EXPECT().List(gomock.Any(), 1, 10).DoAndReturn(func(context.Context, int, int) (notification.Page, error) {
		close(listing)
		<-release
		return notification.Page{Items: items(1, 2)}, nil
	})
	api.EXPECT().MarkAsRead(gomock.Any(), []int64{1}).DoAndReturn(func(context.Context, []int64) error {
		close(marking)
		<-release
		return nil
	})

	require.NoError(t, svc.Start(context.Background(), 1))

	fetchErr := make(chan error, 1)
	markErr := make(chan error, 1)
	go func() {
		_, err := svc.Fetch(context.Background(), 1, false)
		fetchErr <- err
	}()
	go func() { markErr <- svc.MarkAsRead(context.Background(), []int64{1}) }()
	<-listing
	<-marking

	svc.Reset()
	require.NoError(t, svc.Start(context.Background(), 2))
	close(release)

	assert.ErrorIs(t, <-fetchErr, ErrOwnerChanged)
	assert.NoError(t, <-markErr)

	snap := svc.Snapshot()
	assert.Equal(t, 2, snap.UserID)
	assert.Empty(t, snap.Items, "previous operator's page must not land in the new cache")
	assert.Equal(t, 1, snap.UnreadCount)
}

func TestNotificationService_RestartsStreamThatGaveUp(t *testing.T) {
	f := newNotificationFixture(t, 10)
	require.NoError(t, f.svc.Start(context.Background(), 1))
	require.NoError(t, f.svc.Start(context.Background(), 1))
	assert.Equal(t, 1, f.stream.Opened(), "live stream for the same user is kept")

	f.stream.Report(notification.StateDisconnected)
	require.NoError(t, f.svc.Start(context.Background(), 1))

	assert.Equal(t, 2, f.stream.Opened())
	assert.Equal(t, 1, f.stream.Closed())
	assert.Equal(t, notification.StateConnected, f.svc.State())
}
