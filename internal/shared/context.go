package shared

import "context"

// Identity is the authenticated caller attached to a request.
type Identity struct {
	UserID      int64
	Username    string
	Authorities []string
}

type identityContextKey struct{}

// ContextWithIdentity stores the identity in context.
func ContextWithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

// IdentityFromContext extracts the identity from context.
func IdentityFromContext(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityContextKey{}).(*Identity)
	return id
}

// ActorID returns the caller's user id or zero for anonymous requests.
func ActorID(ctx context.Context) int64 {
	if id := IdentityFromContext(ctx); id != nil {
		return id.UserID
	}
	return 0
}
