package testutil

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// testSigningKey signs test tokens. The console never verifies signatures,
// it only reads claims, so any key works.
var testSigningKey = []byte("instantmart-test-signing-key")

// TokenBuilder builds HS256 access tokens with arbitrary claims for tests.
type TokenBuilder struct {
	claims jwt.MapClaims
}

// NewToken starts a token for user id with the given role that expires at exp.
func NewToken(userID int, role string, exp time.Time) *TokenBuilder {
	return &TokenBuilder{claims: jwt.MapClaims{
		"nameid":      userID,
		"unique_name": "Test Operator",
		"email":       "operator@instantmart.test",
		"role":        role,
		"exp":         exp.Unix(),
	}}
}

// NewRawToken starts a token with exactly the given claims.
func NewRawToken(claims map[string]any) *TokenBuilder {
	return &TokenBuilder{claims: jwt.MapClaims(claims)}
}

// With sets a claim.
func (b *TokenBuilder) With(name string, value any) *TokenBuilder {
	b.claims[name] = value
	return b
}

// Without removes a claim.
func (b *TokenBuilder) Without(name string) *TokenBuilder {
	delete(b.claims, name)
	return b
}

// String signs the token. It panics on signing failure, which only happens on programmer error.
func (b *TokenBuilder) String() string {
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, b.claims).SignedString(testSigningKey)
	if err != nil {
		panic(err)
	}
	return s
}
