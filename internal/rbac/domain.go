package rbac

import "time"

// Role represents a named authority that bundles permissions.
type Role struct {
	ID          int64        `json:"id"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Permissions []Permission `json:"permissions"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
}

// Permission represents an atomic capability.
type Permission struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Principal describes the authenticated actor together with its role graph.
type Principal struct {
	ID       int64
	Username string
	Email    string
	Active   bool
	Roles    []Role
}
