package ports

// Package ports defines interfaces (hexagonal ports) for session and notification behavior.
// Implementations live in internal/adapters; orchestration in internal/service.

import (
	"context"
	"time"

	domainauth "github.com/instantmart/admin-console/internal/domain/auth"
)

// Durable storage keys. All three are written together and cleared together.
const (
	StorageKeyAccessToken  = "accessToken"
	StorageKeyRefreshToken = "refreshToken"
	StorageKeyUser         = "user"
)

// SessionKeys lists every key a persisted session occupies.
var SessionKeys = []string{StorageKeyAccessToken, StorageKeyRefreshToken, StorageKeyUser}

// TokenCodec decodes bearer token claims. Implementations are pure and stateless.
type TokenCodec interface {
	// Decode returns the normalised claims or an error wrapping domainauth.ErrDecode.
	Decode(token string) (domainauth.Claims, error)
	// IsExpired reports whether token is expired at now; undecodable tokens are expired.
	IsExpired(token string, now time.Time) bool
}

// LoginInput carries operator credentials.
type LoginInput struct {
	Email    string
	Password string
}

// AuthAPI talks to the backend authentication endpoints. Calls never go through
// the request gateway, so they cannot recurse into a refresh.
type AuthAPI interface {
	Login(ctx context.Context, in LoginInput) (domainauth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (domainauth.TokenPair, error)
}

// TokenStorage is the durable string key/value storage for the persisted session.
type TokenStorage interface {
	// Load returns the values present for keys. Missing keys are absent from the map.
	Load(ctx context.Context, keys ...string) (map[string]string, error)
	// Save writes every entry atomically: either all are stored or none.
	Save(ctx context.Context, values map[string]string) error
	// Clear removes keys. Clearing absent keys is not an error.
	Clear(ctx context.Context, keys ...string) error
}

// Navigator abstracts the redirect-to-login side effect.
type Navigator interface {
	ToLogin(ctx context.Context, reason string)
}

// Clock supplies the current time for expiry checks.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns time.Now().
func (SystemClock) Now() time.Time { return time.Now() }
