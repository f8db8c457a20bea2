package auth

import "slices"

// Role flags. Every permission below is a boolean combination of these;
// call sites must not compare role strings themselves.

// IsSuperAdmin reports whether r is the SuperAdmin role.
func (r Role) IsSuperAdmin() bool { return r == RoleSuperAdmin }

// IsAdmin reports whether r is exactly Admin (not SuperAdmin).
func (r Role) IsAdmin() bool { return r == RoleAdmin }

// IsVendor reports whether r is the Vendor role.
func (r Role) IsVendor() bool { return r == RoleVendor }

// IsDeliveryBoy reports whether r is the DeliveryBoy role.
func (r Role) IsDeliveryBoy() bool { return r == RoleDeliveryBoy }

// IsUser reports whether r is the plain User role.
func (r Role) IsUser() bool { return r == RoleUser }

// IsAdminOrAbove reports whether r is Admin or SuperAdmin. Only these roles may
// hold a console session.
func (r Role) IsAdminOrAbove() bool { return r.IsSuperAdmin() || r.IsAdmin() }

// Permissions is the full set of derived permission facts for a role.
type Permissions struct {
	Role                Role `json:"role"`
	RoleID              int  `json:"roleId"`
	IsSuperAdmin        bool `json:"isSuperAdmin"`
	IsAdmin             bool `json:"isAdmin"`
	IsAdminOrAbove      bool `json:"isAdminOrAbove"`
	IsVendor            bool `json:"isVendor"`
	IsDeliveryBoy       bool `json:"isDeliveryBoy"`
	IsUser              bool `json:"isUser"`
	CanManageRoles      bool `json:"canManageRoles"`
	CanManageUsers      bool `json:"canManageUsers"`
	CanManageProducts   bool `json:"canManageProducts"`
	CanManageCategories bool `json:"canManageCategories"`
	CanManageStores     bool `json:"canManageStores"`
	CanManageOrders     bool `json:"canManageOrders"`
	CanManagePayments   bool `json:"canManagePayments"`
	CanManageBanners    bool `json:"canManageBanners"`
	CanManageDeliveries bool `json:"canManageDeliveries"`
	CanViewDashboard    bool `json:"canViewDashboard"`
}

// PermissionsFor derives permissions for a role.
func PermissionsFor(r Role) Permissions {
	return Permissions{
		Role:                r,
		RoleID:              r.ID(),
		IsSuperAdmin:        r.IsSuperAdmin(),
		IsAdmin:             r.IsAdmin(),
		IsAdminOrAbove:      r.IsAdminOrAbove(),
		IsVendor:            r.IsVendor(),
		IsDeliveryBoy:       r.IsDeliveryBoy(),
		IsUser:              r.IsUser(),
		CanManageRoles:      r.IsSuperAdmin(),
		CanManageUsers:      r.IsSuperAdmin(),
		CanManageProducts:   r.IsAdminOrAbove() || r.IsVendor(),
		CanManageCategories: r.IsAdminOrAbove(),
		CanManageStores:     r.IsAdminOrAbove() || r.IsVendor(),
		CanManageOrders:     r.IsAdminOrAbove() || r.IsVendor(),
		CanManagePayments:   r.IsAdminOrAbove(),
		CanManageBanners:    r.IsAdminOrAbove(),
		CanManageDeliveries: r.IsAdminOrAbove() || r.IsDeliveryBoy(),
		CanViewDashboard:    r.IsAdminOrAbove() || r.IsVendor(),
	}
}

// PermissionsOf derives permissions for an optional session.
// A nil session yields the zero value (everything false).
func PermissionsOf(s *Session) Permissions {
	if s == nil {
		return Permissions{}
	}
	return PermissionsFor(s.Role)
}

// HasAnyRole reports whether the session role matches one of names.
// Names are normalised with LookupRole, so "superadmin" and "SuperAdmin" agree;
// unknown names never match.
func HasAnyRole(s *Session, names ...string) bool {
	if s == nil {
		return false
	}
	return slices.ContainsFunc(names, func(n string) bool {
		r, ok := LookupRole(n)
		return ok && r == s.Role
	})
}

// HasAnyRoleID reports whether the session role id is one of ids.
func HasAnyRoleID(s *Session, ids ...int) bool {
	if s == nil {
		return false
	}
	return slices.Contains(ids, s.Role.ID())
}
