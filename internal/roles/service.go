package roles

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
)

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	CreateRole(ctx context.Context, name, description string) (Role, error)
	UpdateRole(ctx context.Context, id int64, name, description string) (Role, error)
	DeleteRole(ctx context.Context, id int64) error
	ReplacePermissions(ctx context.Context, roleID int64, permissionIDs []int64) (Role, error)
}

// Service handles role business logic.
type Service struct {
	repo   RepositoryPort
	audit  shared.AuditSink
	logger *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, audit shared.AuditSink, logger *slog.Logger) *Service {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	return s.repo.ListRoles(ctx)
}

// GetRole returns one role.
func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRole stores a role under its normalised name.
func (s *Service) CreateRole(ctx context.Context, in RoleInput) (Role, error) {
	name, err := s.NormalizeName(in.Name)
	if err != nil {
		return Role{}, err
	}
	role, err := s.repo.CreateRole(ctx, name, strings.TrimSpace(in.Description))
	if err != nil {
		return Role{}, err
	}
	s.record(ctx, "role.create", role.ID, map[string]any{"name": role.Name})
	return role, nil
}

// UpdateRole renames a role or changes its description.
func (s *Service) UpdateRole(ctx context.Context, id int64, in RoleInput) (Role, error) {
	name, err := s.NormalizeName(in.Name)
	if err != nil {
		return Role{}, err
	}
	current, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Role{}, err
	}
	if current.Name == shared.RoleAdmin && name != shared.RoleAdmin {
		return Role{}, fmt.Errorf("%w: %s cannot be renamed", shared.ErrValidation, shared.RoleAdmin)
	}
	role, err := s.repo.UpdateRole(ctx, id, name, strings.TrimSpace(in.Description))
	if err != nil {
		return Role{}, err
	}
	s.record(ctx, "role.update", id, map[string]any{"name": role.Name})
	return role, nil
}

// DeleteRole removes a role. The super-authority role cannot be deleted.
func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	current, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return err
	}
	if current.Name == shared.RoleAdmin {
		return fmt.Errorf("%w: %s cannot be deleted", shared.ErrValidation, shared.RoleAdmin)
	}
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return err
	}
	s.record(ctx, "role.delete", id, map[string]any{"name": current.Name})
	return nil
}

// ReplacePermissions sets the role's permissions to exactly the given ids.
func (s *Service) ReplacePermissions(ctx context.Context, roleID int64, in PermissionAssignment) (Role, error) {
	ids := uniqueIDs(in.PermissionIDs)
	role, err := s.repo.ReplacePermissions(ctx, roleID, ids)
	if err != nil {
		return Role{}, err
	}
	s.record(ctx, "role.permissions", roleID, map[string]any{"permission_ids": ids})
	return role, nil
}

// NormalizeName upper-cases the name and adds the ROLE_ prefix when missing.
func (s *Service) NormalizeName(raw string) (string, error) {
	name := cases.Upper(language.Und).String(strings.TrimSpace(raw))
	if name == "" || strings.ContainsAny(name, " \t\n") {
		return "", fmt.Errorf("%w: role name must be a single non-empty word", shared.ErrValidation)
	}
	if !strings.HasPrefix(name, shared.RolePrefix) {
		name = shared.RolePrefix + name
	}
	if name == shared.RolePrefix {
		return "", fmt.Errorf("%w: role name required", shared.ErrValidation)
	}
	return name, nil
}

func (s *Service) record(ctx context.Context, action string, id int64, meta map[string]any) {
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorID(ctx),
		Action:   action,
		Entity:   "role",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit role", slog.String("action", action), slog.Any("error", err))
	}
}

func uniqueIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
