package users

import (
	"time"

	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
)

// User represents a user account for management.
type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	IsActive  bool      `json:"is_active"`
	Roles     []string  `json:"roles"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CreateUserRequest is the admin create payload. Roles are role names.
type CreateUserRequest struct {
	Username string   `json:"username" validate:"required,min=3,max=50"`
	Email    string   `json:"email" validate:"required,email,max=100"`
	Password string   `json:"password" validate:"required,min=6,max=72"`
	Roles    []string `json:"roles" validate:"dive,required"`
}

// UpdateUserRequest overwrites the provided fields only. A nil Roles slice
// leaves role membership untouched; an empty one clears it.
type UpdateUserRequest struct {
	Email    *string  `json:"email" validate:"omitempty,email,max=100"`
	Password *string  `json:"password" validate:"omitempty,min=6,max=72"`
	IsActive *bool    `json:"is_active"`
	Roles    []string `json:"roles" validate:"omitempty,dive,required"`
}

// ListResult is a page of users.
type ListResult struct {
	Users []User            `json:"users"`
	Meta  shared.Pagination `json:"meta"`
}

type userChanges struct {
	Email        *string
	PasswordHash *string
	IsActive     *bool
	Roles        []string
}
