package service

import (
	"context"
	"time"

	domainauth "github.com/instantmart/admin-console/internal/domain/auth"
	"github.com/instantmart/admin-console/internal/ports"
	"golang.org/x/oauth2"
)

// CredentialSource is an oauth2.TokenSource backed by the operator session.
// It refreshes an expired access token before handing it out, so realtime
// reconnects always present a current credential.
type CredentialSource struct {
	session   *SessionService
	refresher tokenRefresher
	codec     ports.TokenCodec
	clock     ports.Clock
}

var _ oauth2.TokenSource = (*CredentialSource)(nil)

// NewCredentialSource creates a CredentialSource. clock defaults to the system clock.
func NewCredentialSource(session *SessionService, refresher tokenRefresher, codec ports.TokenCodec, clock ports.Clock) *CredentialSource {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	return &CredentialSource{session: session, refresher: refresher, codec: codec, clock: clock}
}

// Token returns the current bearer token.
func (c *CredentialSource) Token() (*oauth2.Token, error) {
	access := c.session.AccessToken()
	if access == "" {
		return nil, domainauth.ErrNoSession
	}
	if c.codec.IsExpired(access, c.clock.Now()) {
		fresh, err := c.refresher.Refresh(context.Background())
		if err != nil {
			return nil, err
		}
		access = fresh
	}
	tok := &oauth2.Token{AccessToken: access, TokenType: "Bearer"}
	if claims, err := c.codec.Decode(access); err == nil && claims.ExpiresAt > 0 {
		tok.Expiry = time.Unix(claims.ExpiresAt, 0)
	}
	return tok, nil
}
