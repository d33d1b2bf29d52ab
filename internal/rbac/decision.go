package rbac

import (
	"fmt"

	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
)

// SuperAuthority passes every authorization check.
const SuperAuthority = shared.RoleAdmin

// Requirement is an OR-set of authority names. An empty requirement is
// satisfied by any caller.
type Requirement []string

// AnyOf builds a requirement satisfied by holding at least one name. Blank
// names are dropped so AnyOf("") is the empty requirement.
func AnyOf(names ...string) Requirement {
	req := make(Requirement, 0, len(names))
	for _, name := range names {
		if name != "" {
			req = append(req, name)
		}
	}
	return req
}

// Authorize decides whether the authority set satisfies the requirement.
func Authorize(set AuthoritySet, req Requirement) bool {
	if len(req) == 0 {
		return true
	}
	if set.Has(SuperAuthority) {
		return true
	}
	for _, name := range req {
		if set.Has(name) {
			return true
		}
	}
	return false
}

// DeniedError reports which operation was refused.
type DeniedError struct {
	Operation Operation
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("access denied for %s", e.Operation)
}

// Unwrap lets callers match with errors.Is(err, shared.ErrAccessDenied).
func (e *DeniedError) Unwrap() error {
	return shared.ErrAccessDenied
}

// Check authorizes an operation and returns a DeniedError on refusal.
func Check(set AuthoritySet, op Operation) error {
	if Authorize(set, op.Requirement()) {
		return nil
	}
	return &DeniedError{Operation: op}
}
