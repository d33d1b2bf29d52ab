package rbac

import (
	"sort"

	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
)

// Operation names a protected action of the HTTP surface.
type Operation string

const (
	OpViewUser   Operation = "users.view"
	OpCreateUser Operation = "users.create"
	OpUpdateUser Operation = "users.update"
	OpDeleteUser Operation = "users.delete"

	OpViewRole   Operation = "roles.view"
	OpCreateRole Operation = "roles.create"
	OpUpdateRole Operation = "roles.update"
	OpDeleteRole Operation = "roles.delete"

	OpViewPermission   Operation = "permissions.view"
	OpCreatePermission Operation = "permissions.create"
	OpUpdatePermission Operation = "permissions.update"
	OpDeletePermission Operation = "permissions.delete"

	// OpListMenus is open to every caller; the result is filtered instead.
	OpListMenus  Operation = "menus.list"
	OpViewMenu   Operation = "menus.view"
	OpCreateMenu Operation = "menus.create"
	OpUpdateMenu Operation = "menus.update"
	OpDeleteMenu Operation = "menus.delete"
)

// requirements is the single source of truth for what each operation needs.
// SuperAuthority passes every row implicitly.
var requirements = map[Operation]Requirement{
	OpViewUser:   AnyOf(shared.PermViewUser),
	OpCreateUser: AnyOf(shared.PermCreateUser),
	OpUpdateUser: AnyOf(shared.PermUpdateUser),
	OpDeleteUser: AnyOf(shared.PermDeleteUser),

	OpViewRole:   AnyOf(shared.PermViewRole),
	OpCreateRole: AnyOf(shared.PermCreateRole),
	OpUpdateRole: AnyOf(shared.PermUpdateRole),
	OpDeleteRole: AnyOf(shared.PermDeleteRole),

	OpViewPermission:   AnyOf(shared.PermViewPermission),
	OpCreatePermission: AnyOf(shared.PermCreatePermission),
	OpUpdatePermission: AnyOf(shared.PermUpdatePermission),
	OpDeletePermission: AnyOf(shared.PermDeletePermission),

	OpListMenus:  AnyOf(),
	OpViewMenu:   AnyOf(shared.PermViewMenu),
	OpCreateMenu: AnyOf(shared.PermCreateMenu),
	OpUpdateMenu: AnyOf(shared.PermUpdateMenu),
	OpDeleteMenu: AnyOf(shared.PermDeleteMenu),
}

// Requirement returns the authorities the operation needs. Unknown
// operations require the super-authority so a typo never opens a route.
func (o Operation) Requirement() Requirement {
	if req, ok := requirements[o]; ok {
		return req
	}
	return AnyOf(SuperAuthority)
}

// Known reports whether the operation appears in the table.
func (o Operation) Known() bool {
	_, ok := requirements[o]
	return ok
}

// Operations lists every registered operation in lexical order.
func Operations() []Operation {
	ops := make([]Operation, 0, len(requirements))
	for op := range requirements {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}
