package roles

import (
	"errors"

	"github.com/scholaris-sms/scholaris/internal/rbac"
)

var (
	// ErrDuplicateName indicates a role name collision.
	ErrDuplicateName = errors.New("role name already in use")
	// ErrRoleInUse blocks deletion while accounts still hold the role.
	ErrRoleInUse = errors.New("role is assigned to accounts")
)

// Detail is a role with its grants and usage count.
type Detail struct {
	rbac.Role
	Permissions []string `json:"permissions"`
	Accounts    int      `json:"accounts"`
}
