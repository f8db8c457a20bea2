package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/instantmart/admin-console/internal/adapters/jwtcodec"
	domainauth "github.com/instantmart/admin-console/internal/domain/auth"
	mocks "github.com/instantmart/admin-console/internal/mocks/auth"
	"github.com/instantmart/admin-console/internal/ports"
	"github.com/instantmart/admin-console/internal/testutil"
	"github.com/stretchr/testify/require"
)

// sessionFixture wires a SessionService over in-memory doubles.
type sessionFixture struct {
	api     *mocks.StubAuthAPI
	storage *mocks.MemoryTokenStorage
	clock   *mocks.FixedClock
	svc     *SessionService
}

func newSessionFixture(t *testing.T) *sessionFixture {
	t.Helper()
	f := &sessionFixture{
		api:     &mocks.StubAuthAPI{},
		storage: mocks.NewMemoryTokenStorage(),
		clock:   mocks.NewFixedClock(testutil.TestTime()),
	}
	f.svc = NewSessionService(SessionServiceOptions{
		API:     f.api,
		Storage: f.storage,
		Codec:   jwtcodec.New(),
	})
	return f
}

// token issues an access token for role valid for ttl from the fixture clock.
func (f *sessionFixture) token(userID int, role string, ttl time.Duration) string {
	return testutil.NewToken(userID, role, f.clock.Now().Add(ttl)).String()
}

// loginReturns makes the stub auth API answer every login with access/refresh.
func (f *sessionFixture) loginReturns(access, refresh string) {
	f.api.LoginFunc = func(context.Context, ports.LoginInput) (domainauth.TokenPair, error) {
		return domainauth.TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: 3600}, nil
	}
}

// loggedIn performs a successful Admin login.
func (f *sessionFixture) loggedIn(t *testing.T, ttl time.Duration) domainauth.Session {
	t.Helper()
	f.loginReturns(f.token(42, "Admin", ttl), "refresh-1")
	sess, err := f.svc.Login(context.Background(), "admin@instantmart.test", "pw")
	require.NoError(t, err)
	return sess
}

func identityJSON(t *testing.T, id domainauth.Identity) string {
	t.Helper()
	raw, err := json.Marshal(id)
	require.NoError(t, err)
	return string(raw)
}
