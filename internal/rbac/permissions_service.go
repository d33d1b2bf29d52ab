package rbac

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
)

// PermissionRepositoryPort defines data access methods for permissions.
type PermissionRepositoryPort interface {
	ListPermissions(ctx context.Context) ([]Permission, error)
	GetPermission(ctx context.Context, id int64) (Permission, error)
	CreatePermission(ctx context.Context, name, description string) (Permission, error)
	UpdatePermission(ctx context.Context, id int64, name, description string) (Permission, error)
	DeletePermission(ctx context.Context, id int64) error
}

// PermissionInput carries create and update payloads.
type PermissionInput struct {
	Name        string `json:"name" validate:"required,max=100"`
	Description string `json:"description" validate:"max=255"`
}

// PermissionService handles permission catalogue business logic.
type PermissionService struct {
	repo   PermissionRepositoryPort
	audit  shared.AuditSink
	logger *slog.Logger
}

// NewPermissionService builds a PermissionService.
func NewPermissionService(repo PermissionRepositoryPort, audit shared.AuditSink, logger *slog.Logger) *PermissionService {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PermissionService{repo: repo, audit: audit, logger: logger}
}

// ListPermissions returns the catalogue.
func (s *PermissionService) ListPermissions(ctx context.Context) ([]Permission, error) {
	return s.repo.ListPermissions(ctx)
}

// GetPermission returns one permission.
func (s *PermissionService) GetPermission(ctx context.Context, id int64) (Permission, error) {
	return s.repo.GetPermission(ctx, id)
}

// CreatePermission adds a permission. Names are stored trimmed and matched
// case-sensitively everywhere else.
func (s *PermissionService) CreatePermission(ctx context.Context, in PermissionInput) (Permission, error) {
	name, err := normalizePermissionName(in.Name)
	if err != nil {
		return Permission{}, err
	}
	p, err := s.repo.CreatePermission(ctx, name, strings.TrimSpace(in.Description))
	if err != nil {
		return Permission{}, err
	}
	s.record(ctx, "permission.create", p)
	return p, nil
}

// UpdatePermission renames or re-describes a permission.
func (s *PermissionService) UpdatePermission(ctx context.Context, id int64, in PermissionInput) (Permission, error) {
	name, err := normalizePermissionName(in.Name)
	if err != nil {
		return Permission{}, err
	}
	p, err := s.repo.UpdatePermission(ctx, id, name, strings.TrimSpace(in.Description))
	if err != nil {
		return Permission{}, err
	}
	s.record(ctx, "permission.update", p)
	return p, nil
}

// DeletePermission removes a permission.
func (s *PermissionService) DeletePermission(ctx context.Context, id int64) error {
	if err := s.repo.DeletePermission(ctx, id); err != nil {
		return err
	}
	s.record(ctx, "permission.delete", Permission{ID: id})
	return nil
}

func (s *PermissionService) record(ctx context.Context, action string, p Permission) {
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorID(ctx),
		Action:   action,
		Entity:   "permission",
		EntityID: strconv.FormatInt(p.ID, 10),
		Meta:     map[string]any{"name": p.Name},
	})
	if err != nil {
		s.logger.Warn("audit permission", slog.String("action", action), slog.Any("error", err))
	}
}

func normalizePermissionName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", fmt.Errorf("%w: permission name required", shared.ErrValidation)
	}
	if strings.ContainsAny(name, " \t\n") {
		return "", fmt.Errorf("%w: permission name must not contain whitespace", shared.ErrValidation)
	}
	if strings.HasPrefix(name, shared.RolePrefix) {
		return "", fmt.Errorf("%w: permission name must not use the %s prefix", shared.ErrValidation, shared.RolePrefix)
	}
	return name, nil
}
