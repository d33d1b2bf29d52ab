package rbac

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-rbac/internal/platform/db"
	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
)

// PermissionRepository provides PostgreSQL backed persistence for permissions.
type PermissionRepository struct {
	pool *pgxpool.Pool
}

// NewPermissionRepository constructs a repository.
func NewPermissionRepository(pool *pgxpool.Pool) *PermissionRepository {
	return &PermissionRepository{pool: pool}
}

// ListPermissions returns all permissions ordered by name.
func (r *PermissionRepository) ListPermissions(ctx context.Context) ([]Permission, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description FROM permissions ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	perms := make([]Permission, 0)
	for rows.Next() {
		var p Permission
		if err := rows.Scan(&p.ID, &p.Name, &p.Description); err != nil {
			return nil, err
		}
		perms = append(perms, p)
	}
	return perms, rows.Err()
}

// GetPermission fetches a permission by id.
func (r *PermissionRepository) GetPermission(ctx context.Context, id int64) (Permission, error) {
	var p Permission
	err := r.pool.QueryRow(ctx, `SELECT id, name, description FROM permissions WHERE id = $1`, id).
		Scan(&p.ID, &p.Name, &p.Description)
	if err != nil {
		if db.IsNoRows(err) {
			return Permission{}, fmt.Errorf("permission %d: %w", id, shared.ErrNotFound)
		}
		return Permission{}, err
	}
	return p, nil
}

// CreatePermission inserts a permission.
func (r *PermissionRepository) CreatePermission(ctx context.Context, name, description string) (Permission, error) {
	p := Permission{Name: name, Description: description}
	err := r.pool.QueryRow(ctx, `INSERT INTO permissions (name, description) VALUES ($1, $2) RETURNING id`, name, description).Scan(&p.ID)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Permission{}, fmt.Errorf("permission %q: %w", name, shared.ErrConflict)
		}
		return Permission{}, err
	}
	return p, nil
}

// UpdatePermission overwrites name and description.
func (r *PermissionRepository) UpdatePermission(ctx context.Context, id int64, name, description string) (Permission, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE permissions SET name = $2, description = $3 WHERE id = $1`, id, name, description)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Permission{}, fmt.Errorf("permission %q: %w", name, shared.ErrConflict)
		}
		return Permission{}, err
	}
	if tag.RowsAffected() == 0 {
		return Permission{}, fmt.Errorf("permission %d: %w", id, shared.ErrNotFound)
	}
	return Permission{ID: id, Name: name, Description: description}, nil
}

// DeletePermission removes a permission; role links cascade.
func (r *PermissionRepository) DeletePermission(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM permissions WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("permission %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

var _ PermissionRepositoryPort = (*PermissionRepository)(nil)
