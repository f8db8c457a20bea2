package auth

// Package auth contains domain-level types for the operator session.
// It is pure and free of framework/adapter concerns.

import (
	"errors"
	"strconv"
	"strings"
)

// Role is the backend role of an authenticated principal.
// Keep string form for easy persistence and log output.
type Role string

const (
	RoleSuperAdmin  Role = "SuperAdmin"
	RoleAdmin       Role = "Admin"
	RoleVendor      Role = "Vendor"
	RoleDeliveryBoy Role = "DeliveryBoy"
	RoleUser        Role = "User"
)

// Backend role identifiers. Anything unknown maps to RoleIDUser.
const (
	RoleIDSuperAdmin  = 1
	RoleIDAdmin       = 2
	RoleIDVendor      = 3
	RoleIDDeliveryBoy = 4
	RoleIDUser        = 5
)

var (
	// ErrDecode marks a malformed or unparseable bearer token.
	ErrDecode = errors.New("malformed token")
	// ErrAuthorizationDenied is returned when credentials are valid but the role may not use the console.
	ErrAuthorizationDenied = errors.New("authorization denied")
	// ErrSessionExpired is terminal: the refresh path was exhausted and the session is gone.
	ErrSessionExpired = errors.New("session expired")
	// ErrPartialSession means durable storage held only some of the session keys.
	ErrPartialSession = errors.New("partial session in storage")
	// ErrInvalidCredentials is returned when the auth endpoint rejects the login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrNoSession is returned by operations that need a logged-in operator.
	ErrNoSession = errors.New("no active session")
)

// Roles returns every role in backend id order.
func Roles() []Role {
	return []Role{RoleSuperAdmin, RoleAdmin, RoleVendor, RoleDeliveryBoy, RoleUser}
}

// ParseRole normalises a role name or numeric id into a Role.
// Unknown values map to RoleUser, matching the backend default.
func ParseRole(raw string) Role {
	if r, ok := LookupRole(raw); ok {
		return r
	}
	return RoleUser
}

// LookupRole is ParseRole without the default: ok is false for unknown names.
func LookupRole(raw string) (Role, bool) {
	v := strings.TrimSpace(raw)
	if n, err := strconv.Atoi(v); err == nil {
		if n < RoleIDSuperAdmin || n > RoleIDUser {
			return "", false
		}
		return RoleFromID(n), true
	}
	switch strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(v)) {
	case "superadmin":
		return RoleSuperAdmin, true
	case "admin":
		return RoleAdmin, true
	case "vendor":
		return RoleVendor, true
	case "deliveryboy":
		return RoleDeliveryBoy, true
	case "user":
		return RoleUser, true
	default:
		return "", false
	}
}

// RoleFromID maps a backend role id (1..5) to a Role.
func RoleFromID(id int) Role {
	switch id {
	case RoleIDSuperAdmin:
		return RoleSuperAdmin
	case RoleIDAdmin:
		return RoleAdmin
	case RoleIDVendor:
		return RoleVendor
	case RoleIDDeliveryBoy:
		return RoleDeliveryBoy
	default:
		return RoleUser
	}
}

// ID returns the backend id for the role.
func (r Role) ID() int {
	switch r {
	case RoleSuperAdmin:
		return RoleIDSuperAdmin
	case RoleAdmin:
		return RoleIDAdmin
	case RoleVendor:
		return RoleIDVendor
	case RoleDeliveryBoy:
		return RoleIDDeliveryBoy
	default:
		return RoleIDUser
	}
}

func (r Role) String() string { return string(r) }

// Claims are the normalised fields decoded from an access token payload.
// RoleID is zero when the token carried no explicit role id claim.
type Claims struct {
	SubjectID   int
	DisplayName string
	Email       string
	Role        string
	RoleID      int
	ExpiresAt   int64 // epoch seconds; zero when absent
}

// Identity is the part of a session persisted under the "user" storage key.
type Identity struct {
	UserID int    `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}

// Session is the in-memory authenticated operator with its token pair.
type Session struct {
	Identity
	AccessToken  string `json:"-"`
	RefreshToken string `json:"-"`
}

// IsValid reports whether the session may use the admin console.
func (s Session) IsValid() bool {
	return s.Role.IsAdminOrAbove()
}

// TokenPair is the token portion of login and refresh responses.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // seconds, informational
}
