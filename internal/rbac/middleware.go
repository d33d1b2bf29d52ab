package rbac

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/odyssey-erp/odyssey-rbac/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
	"github.com/odyssey-erp/odyssey-rbac/internal/token"
)

// TokenValidator verifies bearer tokens.
type TokenValidator interface {
	Validate(raw string) (token.Identity, error)
}

// PrincipalLoader fetches the current role graph of a user.
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, userID int64) (Principal, error)
}

// Observer receives authorization outcomes, typically Prometheus counters.
type Observer interface {
	ObserveTokenValidation(result string)
	ObserveDecision(operation string, allowed bool)
}

// Middleware wires authentication and RBAC authorization for HTTP handlers.
type Middleware struct {
	Tokens     TokenValidator
	Principals PrincipalLoader
	Logger     *slog.Logger
	Observer   Observer
}

// Identify attaches the caller identity when a bearer token is present.
// Requests without a token continue anonymously; a present but invalid token
// is rejected so clients learn their session is gone.
func (m Middleware) Identify(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := extractBearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}
		identity, err := m.authenticate(r.Context(), raw)
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithIdentity(r.Context(), identity)))
	})
}

// Require ensures the caller is authenticated and its authority set
// satisfies the operation's requirement.
func (m Middleware) Require(op Operation) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := shared.IdentityFromContext(r.Context())
			if identity == nil {
				httpx.RespondError(w, shared.ErrUnauthenticated)
				return
			}
			err := Check(NewAuthoritySet(identity.Authorities...), op)
			m.observeDecision(op, err == nil)
			if err != nil {
				m.logger().Warn("access denied",
					slog.String("operation", string(op)),
					slog.String("username", identity.Username))
				httpx.RespondError(w, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (m Middleware) authenticate(ctx context.Context, raw string) (*shared.Identity, error) {
	claims, err := m.Tokens.Validate(raw)
	m.observeToken(token.Result(err))
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			m.logger().Info("token expired")
		} else {
			m.logger().Warn("token rejected", slog.Any("error", err))
		}
		return nil, err
	}
	principal, err := m.Principals.LoadPrincipal(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			m.logger().Warn("token rejected", slog.String("reason", "subject no longer exists"), slog.Int64("user_id", claims.UserID))
			return nil, fmt.Errorf("%w: subject no longer exists", shared.ErrTokenInvalid)
		}
		m.logger().Error("rbac load principal", slog.Any("error", err))
		return nil, err
	}
	if !principal.Active {
		m.logger().Info("token rejected", slog.String("reason", "account disabled"), slog.Int64("user_id", principal.ID))
		return nil, fmt.Errorf("%w: account disabled", shared.ErrTokenInvalid)
	}
	return &shared.Identity{
		UserID:      principal.ID,
		Username:    principal.Username,
		Authorities: Resolve(principal).Slice(),
	}, nil
}

// AuthoritiesFromContext returns the caller's authority set, empty for
// anonymous requests.
func AuthoritiesFromContext(ctx context.Context) AuthoritySet {
	identity := shared.IdentityFromContext(ctx)
	if identity == nil {
		return NewAuthoritySet()
	}
	return NewAuthoritySet(identity.Authorities...)
}

func extractBearerToken(r *http.Request) (string, bool) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", false
	}
	scheme, value, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func (m Middleware) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

func (m Middleware) observeToken(result string) {
	if m.Observer != nil {
		m.Observer.ObserveTokenValidation(result)
	}
}

func (m Middleware) observeDecision(op Operation, allowed bool) {
	if m.Observer != nil {
		m.Observer.ObserveDecision(string(op), allowed)
	}
}
