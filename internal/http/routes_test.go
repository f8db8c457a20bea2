package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/instantmart/admin-console/internal/domain/api"
	domainauth "github.com/instantmart/admin-console/internal/domain/auth"
	"github.com/instantmart/admin-console/internal/domain/notification"
	apperrors "github.com/instantmart/admin-console/internal/errors"
	"github.com/instantmart/admin-console/internal/mocks"
	"github.com/instantmart/admin-console/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type routerFixture struct {
	auth  *fakeAuth
	notif *fakeNotifications
	api   *mocks.MockRequester
	h     http.Handler
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	f := &routerFixture{
		auth:  &fakeAuth{},
		notif: &fakeNotifications{},
		api:   mocks.NewMockRequester(gomock.NewController(t)),
	}
	f.h = NewRouter(RouterServices{Auth: f.auth, Notifications: f.notif, API: f.api})
	return f
}

func (f *routerFixture) do(method, target, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	req.Header.Set("Accept", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	f.h.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestRouter_Healthz(t *testing.T) {
	f := newRouterFixture(t)
	w := f.do(http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = f.do(http.MethodHead, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Zero(t, w.Body.Len())
}

type stubPinger struct{ err error }

func (p stubPinger) Ping(context.Context) error { return p.err }

func TestRouter_HealthzReportsStorage(t *testing.T) {
	h := NewRouter(RouterServices{Auth: &fakeAuth{}, Storage: stubPinger{}})
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok","storage":"ok"}`, w.Body.String())

	h = NewRouter(RouterServices{Auth: &fakeAuth{}, Storage: stubPinger{err: errors.New("connection refused")}})
	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.JSONEq(t, `{"status":"degraded","storage":"unreachable"}`, w.Body.String())

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodHead, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Zero(t, w.Body.Len())
}

func TestRouter_LoginJSON(t *testing.T) {
	f := newRouterFixture(t)
	f.auth.loginFn = func(email, _ string) (domainauth.Session, error) {
		return domainauth.Session{Identity: domainauth.Identity{UserID: 1, Email: email, Role: domainauth.RoleAdmin}}, nil
	}

	w := f.do(http.MethodPost, "/auth/login", `{"email":" admin@instantmart.test ","password":"pw"}`)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[SessionResponse](t, w)
	assert.True(t, resp.Authenticated)
	assert.Equal(t, "admin@instantmart.test", resp.User.Email)
	assert.True(t, resp.Permissions.IsAdmin)
	assert.False(t, resp.Permissions.CanManageUsers)
}

func TestRouter_LoginFailures(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
		wantMsg  string
	}{
		{
			name:     "bad credentials",
			err:      apperrors.Wrap(domainauth.ErrInvalidCredentials, apperrors.ErrCodeRemote, "Invalid email or password."),
			wantCode: http.StatusUnauthorized,
			wantErr:  "invalid_credentials",
			wantMsg:  "Invalid email or password.",
		},
		{
			name: "role denied",
			err: &apperrors.AppError{
				Code:    apperrors.ErrCodeAuthorizationDenied,
				Message: `Access denied: role "Vendor" cannot use the admin console (requires SuperAdmin or Admin)`,
				Cause:   domainauth.ErrAuthorizationDenied,
			},
			wantCode: http.StatusForbidden,
			wantErr:  "authorization_denied",
			wantMsg:  `role "Vendor"`,
		},
		{
			name:     "backend unreachable",
			err:      apperrors.Wrap(errors.New("dial tcp"), apperrors.ErrCodeNetwork, api.MsgNetworkError),
			wantCode: http.StatusBadGateway,
			wantErr:  "network",
			wantMsg:  api.MsgNetworkError,
		},
		{
			name:     "unexpected",
			err:      errors.New("disk on fire"),
			wantCode: http.StatusInternalServerError,
			wantErr:  "internal",
			wantMsg:  "Login failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newRouterFixture(t)
			f.auth.loginFn = func(string, string) (domainauth.Session, error) { return domainauth.Session{}, tt.err }

			w := f.do(http.MethodPost, "/auth/login", `{"email":"a@b.c","password":"pw"}`)

			assert.Equal(t, tt.wantCode, w.Code)
			body := decodeBody[map[string]string](t, w)
			assert.Equal(t, tt.wantErr, body["error"])
			assert.Contains(t, body["message"], tt.wantMsg)
			_, loggedIn := f.auth.Current()
			assert.False(t, loggedIn)
		})
	}
}

func TestRouter_LoginForm(t *testing.T) {
	f := newRouterFixture(t)
	f.auth.loginFn = func(email, _ string) (domainauth.Session, error) {
		if email == "vendor@instantmart.test" {
			return domainauth.Session{}, apperrors.New(apperrors.ErrCodeAuthorizationDenied, `Access denied: role "Vendor"`)
		}
		return domainauth.Session{Identity: domainauth.Identity{UserID: 1, Role: domainauth.RoleSuperAdmin}}, nil
	}
	post := func(email string) *httptest.ResponseRecorder {
		form := url.Values{"email": {email}, "password": {"pw"}, "redirect_uri": {"/orders"}}
		req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "text/html")
		w := httptest.NewRecorder()
		f.h.ServeHTTP(w, req)
		return w
	}

	w := post("vendor@instantmart.test")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "Vendor")
	assert.Contains(t, w.Body.String(), `value="/orders"`)

	w = post("root@instantmart.test")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/orders", w.Header().Get("Location"))
}

func TestRouter_LoginPage(t *testing.T) {
	f := newRouterFixture(t)
	w := f.do(http.MethodGet, "/auth/login?redirect_uri=https://evil.example", "", "Accept", "text/html")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="redirect_uri" value="/"`)

	f.auth.as(domainauth.RoleAdmin)
	w = f.do(http.MethodGet, "/auth/login?redirect_uri=/orders", "", "Accept", "text/html")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/orders", w.Header().Get("Location"))
}

func TestRouter_LogoutAndSession(t *testing.T) {
	f := newRouterFixture(t)
	f.auth.as(domainauth.RoleSuperAdmin)

	w := f.do(http.MethodGet, "/api/session", "")
	resp := decodeBody[SessionResponse](t, w)
	assert.True(t, resp.Authenticated)
	assert.True(t, resp.Permissions.CanManageRoles)

	w = f.do(http.MethodPost, "/auth/logout", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 1, f.auth.logouts)

	w = f.do(http.MethodGet, "/api/session", "")
	resp = decodeBody[SessionResponse](t, w)
	assert.False(t, resp.Authenticated)
	assert.Nil(t, resp.User)
	assert.False(t, resp.Permissions.IsAdminOrAbove)
}

func TestRouter_LogoutBrowserRedirects(t *testing.T) {
	f := newRouterFixture(t)
	f.auth.as(domainauth.RoleAdmin)
	f.auth.logoutErr = errors.New("redis down")

	w := f.do(http.MethodPost, "/auth/logout", "", "Accept", "text/html")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/auth/login", w.Header().Get("Location"))
}

func TestRouter_Home(t *testing.T) {
	f := newRouterFixture(t)
	w := f.do(http.MethodGet, "/", "", "Accept", "text/html")
	assert.Equal(t, http.StatusSeeOther, w.Code)

	f.auth.as(domainauth.RoleAdmin)
	w = f.do(http.MethodGet, "/", "", "Accept", "text/html")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Welcome, Asha")
}

func TestRouter_Notifications(t *testing.T) {
	f := newRouterFixture(t)
	f.notif.snap = service.NotificationSnapshot{
		UserID:      42,
		Items:       []notification.Notification{{ID: 1, Title: "New order"}},
		UnreadCount: 3,
	}

	w := f.do(http.MethodGet, "/api/notifications", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code, "requires a session")

	f.auth.as(domainauth.RoleAdmin)

	w = f.do(http.MethodGet, "/api/notifications", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decodeBody[service.NotificationSnapshot](t, w).Items, 1)
	assert.Empty(t, f.notif.fetched, "no page means cached snapshot")

	w = f.do(http.MethodGet, "/api/notifications?page=2&append=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []int{2}, f.notif.fetched)
	assert.Equal(t, []bool{true}, f.notif.appended)

	w = f.do(http.MethodGet, "/api/notifications?page=zero", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do(http.MethodGet, "/api/notifications/unread-count", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]int{"count": 3}, decodeBody[map[string]int](t, w))

	w = f.do(http.MethodPut, "/api/notifications/mark-as-read", `{"ids":[1,2]}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, [][]int64{{1, 2}}, f.notif.marked)

	w = f.do(http.MethodDelete, "/api/notifications/9", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, []int64{9}, f.notif.deleted)

	w = f.do(http.MethodDelete, "/api/notifications/abc", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_NotificationFailure(t *testing.T) {
	f := newRouterFixture(t)
	f.auth.as(domainauth.RoleAdmin)
	f.notif.err = apperrors.Wrap(errors.New("503"), apperrors.ErrCodeRemote, "Service unavailable")

	w := f.do(http.MethodPut, "/api/notifications/mark-as-read", `{"ids":[1]}`)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "Service unavailable", decodeBody[map[string]string](t, w)["message"])
	assert.Empty(t, f.notif.marked)

	f.notif.err = fmt.Errorf("fetch notifications page 1: %w", service.ErrOwnerChanged)
	w = f.do(http.MethodGet, "/api/notifications?page=1", "")
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "session_changed", decodeBody[map[string]string](t, w)["error"])
}

func TestRouter_AdminProxy(t *testing.T) {
	t.Run("forwards path query and body", func(t *testing.T) {
		f := newRouterFixture(t)
		f.auth.as(domainauth.RoleAdmin)
		f.api.EXPECT().
			Send(gomock.Any(), "/orders/17/status?notify=true", gomock.Any()).
			DoAndReturn(func(_ context.Context, _ string, opts api.RequestOptions) api.Envelope {
				assert.Equal(t, http.MethodPut, opts.Method)
				assert.JSONEq(t, `{"status":"shipped"}`, string(opts.Body.(json.RawMessage)))
				return api.Envelope{Success: true, Status: http.StatusOK, Data: json.RawMessage(`{"id":17}`)}
			})

		w := f.do(http.MethodPut, "/api/admin/orders/17/status?notify=true", `{"status":"shipped"}`)

		require.Equal(t, http.StatusOK, w.Code)
		resp := decodeBody[proxyResponse](t, w)
		assert.True(t, resp.Success)
		assert.JSONEq(t, `{"id":17}`, string(resp.Data))
	})

	t.Run("superadmin resources deny admins", func(t *testing.T) {
		f := newRouterFixture(t)
		f.auth.as(domainauth.RoleAdmin)

		w := f.do(http.MethodGet, "/api/admin/users", "")
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Contains(t, decodeBody[map[string]string](t, w)["message"], "SuperAdmin")
	})

	t.Run("superadmin reaches users", func(t *testing.T) {
		f := newRouterFixture(t)
		f.auth.as(domainauth.RoleSuperAdmin)
		f.api.EXPECT().Send(gomock.Any(), "/users", gomock.Any()).
			Return(api.Envelope{Success: true, Status: http.StatusOK})

		w := f.do(http.MethodGet, "/api/admin/users", "")
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("unknown resource", func(t *testing.T) {
		f := newRouterFixture(t)
		f.auth.as(domainauth.RoleSuperAdmin)

		w := f.do(http.MethodGet, "/api/admin/secrets", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("invalid json body", func(t *testing.T) {
		f := newRouterFixture(t)
		f.auth.as(domainauth.RoleAdmin)

		w := f.do(http.MethodPost, "/api/admin/products", `{"name":`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("gateway failure keeps envelope shape", func(t *testing.T) {
		f := newRouterFixture(t)
		f.auth.as(domainauth.RoleAdmin)
		f.api.EXPECT().Send(gomock.Any(), "/products", gomock.Any()).
			Return(api.Failure(0, apperrors.New(apperrors.ErrCodeNetwork, api.MsgNetworkError)))

		w := f.do(http.MethodGet, "/api/admin/products", "")
		assert.Equal(t, http.StatusBadGateway, w.Code)
		resp := decodeBody[proxyResponse](t, w)
		assert.False(t, resp.Success)
		assert.Equal(t, "network", resp.Error)
		assert.Equal(t, api.MsgNetworkError, resp.Message)
	})

	t.Run("session expired maps to 401", func(t *testing.T) {
		f := newRouterFixture(t)
		f.auth.as(domainauth.RoleAdmin)
		f.api.EXPECT().Send(gomock.Any(), "/orders", gomock.Any()).
			Return(api.Failure(http.StatusUnauthorized, apperrors.New(apperrors.ErrCodeSessionExpired, api.MsgSessionExpired)))

		w := f.do(http.MethodGet, "/api/admin/orders", "")
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestWriteAppError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteAppError(w, errors.New("raw"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "raw")

	w = httptest.NewRecorder()
	WriteAppError(w, apperrors.NotFoundf("notification %d not found", 4))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
