package roles

import "github.com/odyssey-erp/odyssey-rbac/internal/rbac"

// Role is the management view of a role with its permissions.
type Role = rbac.Role

// RoleInput is the create/update payload. Names without the ROLE_ prefix are
// prefixed and upper-cased.
type RoleInput struct {
	Name        string `json:"name" validate:"required,max=64"`
	Description string `json:"description" validate:"max=255"`
}

// PermissionAssignment replaces a role's permission set by ids.
type PermissionAssignment struct {
	PermissionIDs []int64 `json:"permission_ids" validate:"dive,gt=0"`
}
