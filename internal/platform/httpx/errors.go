// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	status, title := StatusFor(err)
	Problem(w, status, title, shared.UserSafeMessage(err))
}

// StatusFor classifies an error into an HTTP status and problem title.
// Not-found and access-denied stay distinct so clients can tell a missing
// resource from a forbidden one.
func StatusFor(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrValidation):
		return http.StatusBadRequest, "Validation Failed"
	case errors.Is(err, shared.ErrInvalidCredentials):
		return http.StatusUnauthorized, "Authentication Failed"
	case errors.Is(err, shared.ErrTokenExpired):
		return http.StatusUnauthorized, "Token Expired"
	case errors.Is(err, shared.ErrTokenInvalid):
		return http.StatusUnauthorized, "Token Invalid"
	case errors.Is(err, shared.ErrUnauthenticated):
		return http.StatusUnauthorized, "Unauthorized"
	case errors.Is(err, shared.ErrAccessDenied):
		return http.StatusForbidden, "Forbidden"
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound, "Not Found"
	case errors.Is(err, shared.ErrConflict):
		return http.StatusConflict, "Conflict"
	default:
		return http.StatusInternalServerError, "Internal Error"
	}
}
