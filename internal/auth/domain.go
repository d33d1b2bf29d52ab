package auth

import "github.com/odyssey-erp/odyssey-rbac/internal/shared"

// Credentials is the stored login record of a user.
type Credentials struct {
	UserID       int64
	Username     string
	Email        string
	PasswordHash string
	IsActive     bool
}

// SignInRequest is the signin payload.
type SignInRequest struct {
	Username string `json:"username" validate:"required,max=50"`
	Password string `json:"password" validate:"required,max=72"`
}

// SignUpRequest is the self-registration payload. Roles holds free-form
// hints mapped onto known roles.
type SignUpRequest struct {
	Username string   `json:"username" validate:"required,min=3,max=50"`
	Email    string   `json:"email" validate:"required,email,max=100"`
	Password string   `json:"password" validate:"required,min=6,max=72"`
	Roles    []string `json:"roles" validate:"max=5"`
}

// Session is returned by a successful signin.
type Session struct {
	Token       string   `json:"token"`
	Type        string   `json:"type"`
	ExpiresAt   string   `json:"expires_at"`
	ID          int64    `json:"id"`
	Username    string   `json:"username"`
	Email       string   `json:"email"`
	Authorities []string `json:"roles"`
}

// roleHints maps registration hints onto roles; anything else gets the base role.
var roleHints = map[string]string{
	"admin": shared.RoleAdmin,
	"hr":    shared.RoleHR,
	"user":  shared.RoleUser,
}
