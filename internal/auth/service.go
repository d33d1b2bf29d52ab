package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/odyssey-rbac/internal/rbac"
	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
	"github.com/odyssey-erp/odyssey-rbac/internal/token"
)

// TokenIssuer signs session tokens.
type TokenIssuer interface {
	Issue(sub token.Subject) (token.Token, error)
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithHashCost overrides the bcrypt cost used for new passwords.
func WithHashCost(cost int) ServiceOption {
	return func(s *Service) { s.hashCost = cost }
}

// Service wraps authentication business rules.
type Service struct {
	repo       Repository
	principals rbac.PrincipalLoader
	tokens     TokenIssuer
	audit      shared.AuditSink
	logger     *slog.Logger
	hashCost   int
}

// NewService constructs a new Service.
func NewService(repo Repository, principals rbac.PrincipalLoader, tokens TokenIssuer, audit shared.AuditSink, logger *slog.Logger, opts ...ServiceOption) *Service {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{
		repo:       repo,
		principals: principals,
		tokens:     tokens,
		audit:      audit,
		logger:     logger,
		hashCost:   bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authenticate validates username/password credentials. Every failure
// collapses into ErrInvalidCredentials so callers cannot probe which part
// was wrong.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*Credentials, error) {
	creds, err := s.repo.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			s.logger.Error("auth find user", slog.Any("error", err))
		}
		return nil, shared.ErrInvalidCredentials
	}
	if !creds.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return creds, nil
}

// SignIn authenticates and issues a token together with the caller's
// effective authorities.
func (s *Service) SignIn(ctx context.Context, req SignInRequest) (Session, error) {
	creds, err := s.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		return Session{}, err
	}
	principal, err := s.principals.LoadPrincipal(ctx, creds.UserID)
	if err != nil {
		return Session{}, fmt.Errorf("auth: load principal: %w", err)
	}
	tok, err := s.tokens.Issue(token.Subject{UserID: principal.ID, Username: principal.Username})
	if err != nil {
		return Session{}, err
	}
	s.record(ctx, principal.ID, "auth.signin", principal.ID, nil)
	return Session{
		Token:       tok.Value,
		Type:        "Bearer",
		ExpiresAt:   tok.ExpiresAt.UTC().Format(time.RFC3339),
		ID:          principal.ID,
		Username:    principal.Username,
		Email:       principal.Email,
		Authorities: rbac.Resolve(principal).Slice(),
	}, nil
}

// Register creates an account. Username and email must both be unused.
func (s *Service) Register(ctx context.Context, req SignUpRequest) (int64, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.TrimSpace(req.Email)

	taken, err := s.repo.UsernameExists(ctx, username)
	if err != nil {
		return 0, err
	}
	if taken {
		return 0, fmt.Errorf("%w: username is already taken", shared.ErrConflict)
	}
	inUse, err := s.repo.EmailExists(ctx, email)
	if err != nil {
		return 0, err
	}
	if inUse {
		return 0, fmt.Errorf("%w: email is already in use", shared.ErrConflict)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return 0, fmt.Errorf("auth: hash password: %w", err)
	}
	roles := s.ResolveRoleHints(req.Roles)
	id, err := s.repo.CreateUser(ctx, username, email, string(hash), roles)
	if err != nil {
		return 0, err
	}
	s.record(ctx, id, "auth.signup", id, map[string]any{"roles": roles})
	return id, nil
}

// ResolveRoleHints maps hints onto role names. Unknown hints fall back to
// the base role; the result is sorted and never empty.
func (s *Service) ResolveRoleHints(hints []string) []string {
	lower := cases.Lower(language.Und)
	set := make(map[string]struct{}, len(hints)+1)
	for _, hint := range hints {
		role, ok := roleHints[lower.String(strings.TrimSpace(hint))]
		if !ok {
			role = shared.RoleUser
		}
		set[role] = struct{}{}
	}
	if len(set) == 0 {
		set[shared.RoleUser] = struct{}{}
	}
	roles := make([]string, 0, len(set))
	for role := range set {
		roles = append(roles, role)
	}
	sort.Strings(roles)
	return roles
}

func (s *Service) record(ctx context.Context, actor int64, action string, userID int64, meta map[string]any) {
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actor,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(userID, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit auth", slog.String("action", action), slog.Any("error", err))
	}
}
