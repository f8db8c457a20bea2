package httpx

import (
	"fmt"
	"strings"

	domainauth "github.com/instantmart/admin-console/internal/domain/auth"
)

// Outcome is the result of a role-gated route check.
type Outcome int

const (
	// Allow lets the request through.
	Allow Outcome = iota
	// RedirectLogin means there is no session; send the operator to login.
	RedirectLogin
	// Deny means a session exists but its role is not in the required set.
	Deny
)

func (o Outcome) String() string {
	switch o {
	case Allow:
		return "allow"
	case RedirectLogin:
		return "redirect_login"
	case Deny:
		return "deny"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Decision is what RequireRoles acts on. Message is set only for Deny.
type Decision struct {
	Outcome Outcome
	Message string
}

// Decide checks session against the required role names. An empty required set
// admits any session. The deny message names the actual role and the required set
// exactly as given.
func Decide(required []string, session *domainauth.Session) Decision {
	if session == nil {
		return Decision{Outcome: RedirectLogin}
	}
	if len(required) == 0 || domainauth.HasAnyRole(session, required...) {
		return Decision{Outcome: Allow}
	}
	return Decision{
		Outcome: Deny,
		Message: fmt.Sprintf("Access denied. Your role is %q; this page requires one of: %s.",
			session.Role.String(), strings.Join(required, ", ")),
	}
}

// Role sets used by the console routes.
var (
	SuperAdminOnly = []string{domainauth.RoleSuperAdmin.String()}
	AdminOrAbove   = []string{domainauth.RoleSuperAdmin.String(), domainauth.RoleAdmin.String()}
)

// adminResources maps proxied backend resources to the permission that opens them.
//
//nolint:gochecknoglobals // static read-only lookup
var adminResources = map[string]func(domainauth.Permissions) bool{
	"users":      func(p domainauth.Permissions) bool { return p.CanManageUsers },
	"roles":      func(p domainauth.Permissions) bool { return p.CanManageRoles },
	"products":   func(p domainauth.Permissions) bool { return p.CanManageProducts },
	"categories": func(p domainauth.Permissions) bool { return p.CanManageCategories },
	"stores":     func(p domainauth.Permissions) bool { return p.CanManageStores },
	"orders":     func(p domainauth.Permissions) bool { return p.CanManageOrders },
	"payments":   func(p domainauth.Permissions) bool { return p.CanManagePayments },
	"banners":    func(p domainauth.Permissions) bool { return p.CanManageBanners },
	"dashboard":  func(p domainauth.Permissions) bool { return p.CanViewDashboard },
}

// RequiredRolesFor returns the role set for a proxied resource; ok is false for
// resources the console does not expose. The set is every role that both holds
// the resource permission and may sign in to the console, in backend id order.
func RequiredRolesFor(resource string) ([]string, bool) {
	allowed, ok := adminResources[strings.ToLower(resource)]
	if !ok {
		return nil, false
	}
	var roles []string
	for _, r := range domainauth.Roles() {
		p := domainauth.PermissionsFor(r)
		if p.IsAdminOrAbove && allowed(p) {
			roles = append(roles, r.String())
		}
	}
	return roles, true
}
