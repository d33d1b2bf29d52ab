package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness rule was violated.
	ErrConflict = errors.New("conflict")
	// ErrValidation indicates malformed or incomplete input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidCredentials indicates login failure.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrUnauthenticated indicates the request carries no usable identity.
	ErrUnauthenticated = errors.New("authentication required")
	// ErrTokenInvalid groups every token rejection other than expiry.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenExpired indicates a well-formed, correctly signed token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrAccessDenied indicates an authenticated caller lacks the required authority.
	ErrAccessDenied = errors.New("access denied")
)

// UserSafeMessage returns a message that can be shown to API clients without
// leaking storage details.
func UserSafeMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrAccessDenied):
		return err.Error()
	case errors.Is(err, ErrTokenExpired):
		return ErrTokenExpired.Error()
	case errors.Is(err, ErrTokenInvalid):
		return ErrTokenInvalid.Error()
	case errors.Is(err, ErrUnauthenticated):
		return ErrUnauthenticated.Error()
	case errors.Is(err, ErrInvalidCredentials):
		return "invalid username or password"
	default:
		return "internal error"
	}
}
