package users

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, limit, offset int) ([]User, int, error)
	GetUser(ctx context.Context, id int64) (User, error)
	CreateUser(ctx context.Context, u User, passwordHash string) (User, error)
	UpdateUser(ctx context.Context, id int64, c userChanges) (User, error)
	DeleteUser(ctx context.Context, id int64) error
}

// Service handles user business logic.
type Service struct {
	repo     RepositoryPort
	audit    shared.AuditSink
	logger   *slog.Logger
	hashCost int
}

// ServiceOption customises a Service.
type ServiceOption func(*Service)

// WithHashCost overrides the bcrypt cost.
func WithHashCost(cost int) ServiceOption {
	return func(s *Service) { s.hashCost = cost }
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit shared.AuditSink, logger *slog.Logger, opts ...ServiceOption) *Service {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{repo: repo, audit: audit, logger: logger, hashCost: bcrypt.DefaultCost}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListUsers returns one page of users.
func (s *Service) ListUsers(ctx context.Context, page, perPage int) (ListResult, error) {
	page, perPage = shared.NormalizePage(page, perPage)
	offset := (page - 1) * perPage
	users, total, err := s.repo.ListUsers(ctx, perPage, offset)
	if err != nil {
		return ListResult{}, err
	}
	return ListResult{Users: users, Meta: shared.NewPagination(page, perPage, total)}, nil
}

// GetUser returns a user by id.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// CreateUser provisions an account with explicit roles.
func (s *Service) CreateUser(ctx context.Context, req CreateUserRequest) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.hashCost)
	if err != nil {
		return User{}, fmt.Errorf("users: hash password: %w", err)
	}
	u := User{
		Username: strings.TrimSpace(req.Username),
		Email:    strings.TrimSpace(req.Email),
		IsActive: true,
		Roles:    normalizeRoleNames(req.Roles),
	}
	if len(u.Roles) == 0 {
		u.Roles = []string{shared.RoleUser}
	}
	created, err := s.repo.CreateUser(ctx, u, string(hash))
	if err != nil {
		return User{}, err
	}
	s.record(ctx, "user.create", created.ID, map[string]any{"username": created.Username, "roles": created.Roles})
	return created, nil
}

// UpdateUser changes email, password, activity or role membership.
func (s *Service) UpdateUser(ctx context.Context, id int64, req UpdateUserRequest) (User, error) {
	changes := userChanges{IsActive: req.IsActive}
	if req.Email != nil {
		email := strings.TrimSpace(*req.Email)
		changes.Email = &email
	}
	if req.Password != nil && *req.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), s.hashCost)
		if err != nil {
			return User{}, fmt.Errorf("users: hash password: %w", err)
		}
		h := string(hash)
		changes.PasswordHash = &h
	}
	if req.Roles != nil {
		changes.Roles = normalizeRoleNames(req.Roles)
	}
	if req.IsActive != nil && !*req.IsActive && shared.ActorID(ctx) == id {
		return User{}, fmt.Errorf("%w: cannot deactivate your own account", shared.ErrValidation)
	}
	updated, err := s.repo.UpdateUser(ctx, id, changes)
	if err != nil {
		return User{}, err
	}
	meta := map[string]any{"password_changed": changes.PasswordHash != nil}
	if changes.Roles != nil {
		meta["roles"] = changes.Roles
	}
	s.record(ctx, "user.update", id, meta)
	return updated, nil
}

// DeleteUser removes an account. Callers cannot delete themselves.
func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	if shared.ActorID(ctx) == id {
		return fmt.Errorf("%w: cannot delete your own account", shared.ErrValidation)
	}
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.record(ctx, "user.delete", id, nil)
	return nil
}

func (s *Service) record(ctx context.Context, action string, id int64, meta map[string]any) {
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorID(ctx),
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit user", slog.String("action", action), slog.Any("error", err))
	}
}

// normalizeRoleNames trims, deduplicates and sorts role names. A nil input
// stays nil so updates can tell "unchanged" from "cleared".
func normalizeRoleNames(names []string) []string {
	if names == nil {
		return nil
	}
	set := make(map[string]struct{}, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name != "" {
			set[name] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
