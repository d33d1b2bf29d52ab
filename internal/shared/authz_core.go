package shared

// Role authorities.
const (
	RoleAdmin = "ROLE_ADMIN"
	RoleUser  = "ROLE_USER"
	RoleHR    = "ROLE_HR"

	// RolePrefix marks an authority name as a role.
	RolePrefix = "ROLE_"
)

// Core platform permissions.
const (
	PermViewUser   = "CAN_VIEW_USER"
	PermCreateUser = "CAN_CREATE_USER"
	PermUpdateUser = "CAN_UPDATE_USER"
	PermDeleteUser = "CAN_DELETE_USER"

	PermViewRole   = "CAN_VIEW_ROLE"
	PermCreateRole = "CAN_CREATE_ROLE"
	PermUpdateRole = "CAN_UPDATE_ROLE"
	PermDeleteRole = "CAN_DELETE_ROLE"

	PermViewPermission   = "CAN_VIEW_PERMISSION"
	PermCreatePermission = "CAN_CREATE_PERMISSION"
	PermUpdatePermission = "CAN_UPDATE_PERMISSION"
	PermDeletePermission = "CAN_DELETE_PERMISSION"

	PermViewMenu   = "CAN_VIEW_MENU"
	PermCreateMenu = "CAN_CREATE_MENU"
	PermUpdateMenu = "CAN_UPDATE_MENU"
	PermDeleteMenu = "CAN_DELETE_MENU"

	PermManageUsers    = "CAN_MANAGE_USERS"
	PermManageSettings = "CAN_MANAGE_SETTINGS"
)

// CoreRoles lists the roles every installation carries.
func CoreRoles() []string {
	return []string{RoleUser, RoleHR, RoleAdmin}
}

// CoreScopes lists all permissions related to the core platform.
func CoreScopes() []string {
	return []string{
		PermViewUser,
		PermCreateUser,
		PermUpdateUser,
		PermDeleteUser,
		PermViewRole,
		PermCreateRole,
		PermUpdateRole,
		PermDeleteRole,
		PermViewPermission,
		PermCreatePermission,
		PermUpdatePermission,
		PermDeletePermission,
		PermViewMenu,
		PermCreateMenu,
		PermUpdateMenu,
		PermDeleteMenu,
		PermManageUsers,
		PermManageSettings,
	}
}
