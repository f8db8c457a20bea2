// Package jwtcodec decodes backend access tokens into domain claims.
//
// Tokens are read, not verified: the backend is the only party that validates
// signatures, the console only needs identity and expiry for routing decisions.
package jwtcodec

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	domainauth "github.com/instantmart/admin-console/internal/domain/auth"
	jmespath "github.com/jmespath-community/go-jmespath"
)

// Claim lookup expressions, first present wins. Long URIs are the .NET identity claim types.
var (
	userIDClaims = []string{
		`nameid`,
		`"http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier"`,
		`sub`, `userId`, `UserId`, `id`,
	}
	nameClaims = []string{
		`unique_name`,
		`"http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name"`,
		`name`, `given_name`, `userName`,
	}
	emailClaims = []string{
		`email`,
		`"http://schemas.xmlsoap.org/ws/2005/05/identity/claims/emailaddress"`,
	}
	roleClaims = []string{
		`role`,
		`"http://schemas.microsoft.com/ws/2008/06/identity/claims/role"`,
		`Role`, `roles`,
	}
	roleIDClaims = []string{`roleId`, `RoleId`, `role_id`}
)

func init() {
	for _, set := range [][]string{userIDClaims, nameClaims, emailClaims, roleClaims, roleIDClaims} {
		for _, expr := range set {
			if _, err := jmespath.Compile(expr); err != nil {
				panic(fmt.Sprintf("jwtcodec: bad claim expression %q: %v", expr, err))
			}
		}
	}
}

// Codec implements ports.TokenCodec.
type Codec struct {
	parser *jwt.Parser
}

// New returns a Codec.
func New() *Codec {
	return &Codec{parser: jwt.NewParser()}
}

// Decode parses the token payload and normalises the claims.
func (c *Codec) Decode(token string) (domainauth.Claims, error) {
	raw, err := c.claims(token)
	if err != nil {
		return domainauth.Claims{}, err
	}

	out := domainauth.Claims{
		DisplayName: firstString(raw, nameClaims),
		Email:       firstString(raw, emailClaims),
		Role:        firstString(raw, roleClaims),
		ExpiresAt:   expiry(raw),
	}
	if id, ok := atoi(firstString(raw, userIDClaims)); ok {
		out.SubjectID = id
	}
	if id, ok := atoi(firstString(raw, roleIDClaims)); ok {
		out.RoleID = id
	} else {
		out.RoleID = domainauth.ParseRole(out.Role).ID()
	}
	return out, nil
}

// IsExpired reports whether the token's exp is before now, compared in milliseconds.
// Undecodable tokens and tokens without exp are expired.
func (c *Codec) IsExpired(token string, now time.Time) bool {
	raw, err := c.claims(token)
	if err != nil {
		return true
	}
	exp := expiry(raw)
	if exp == 0 {
		return true
	}
	return exp*1000 < now.UnixMilli()
}

func (c *Codec) claims(token string) (map[string]any, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("%w: empty token", domainauth.ErrDecode)
	}
	mc := jwt.MapClaims{}
	if _, _, err := c.parser.ParseUnverified(token, mc); err != nil {
		return nil, fmt.Errorf("%w: %w", domainauth.ErrDecode, err)
	}
	return map[string]any(mc), nil
}

// firstString evaluates exprs in order and returns the first non-empty scalar.
// Arrays contribute their first element.
func firstString(data map[string]any, exprs []string) string {
	for _, expr := range exprs {
		v, err := jmespath.Search(expr, data)
		if err != nil || v == nil {
			continue
		}
		if s := scalar(v); s != "" {
			return s
		}
	}
	return ""
}

func scalar(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == math.Trunc(t) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		if len(t) == 0 {
			return ""
		}
		return scalar(t[0])
	default:
		return ""
	}
}

func expiry(data map[string]any) int64 {
	s := scalar(data["exp"])
	if s == "" {
		return 0
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return int64(f)
	}
	return 0
}

func atoi(s string) (int, bool) {
	if s == "" {
		return 0, false
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
