package rbac

import "strings"

// Privilege is the canonical privilege level resolved from role claims.
// It replaces scattered role-name string comparisons: resolve once at the
// edge and branch on the level afterwards.
type Privilege int

const (
	// PrivilegeStandard covers every non-administrative role.
	PrivilegeStandard Privilege = iota
	// PrivilegeAdmin covers the admin-equivalent role.
	PrivilegeAdmin
	// PrivilegeSuper covers the super-admin-equivalent role.
	PrivilegeSuper
)

// String returns a readable label for logs.
func (p Privilege) String() string {
	switch p {
	case PrivilegeSuper:
		return "super"
	case PrivilegeAdmin:
		return "admin"
	default:
		return "standard"
	}
}

// ResolvePrivilege maps a set of role names to the highest privilege level.
// Matching is case-insensitive so historic "SUPER_ADMIN" style claims still
// resolve.
func ResolvePrivilege(roles []string) Privilege {
	level := PrivilegeStandard
	for _, role := range roles {
		normalized := strings.ReplaceAll(strings.TrimSpace(role), "_", "")
		switch {
		case strings.EqualFold(normalized, RoleSuperAdmin):
			return PrivilegeSuper
		case strings.EqualFold(normalized, RoleAdmin):
			level = PrivilegeAdmin
		}
	}
	return level
}
