package roles

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-rbac/internal/platform/db"
	"github.com/odyssey-erp/odyssey-rbac/internal/rbac"
	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListRoles returns all roles with their permissions.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, created_at, updated_at FROM roles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	roles := make([]Role, 0)
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		roles = append(roles, role)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := attachPermissions(ctx, r.pool, roles); err != nil {
		return nil, err
	}
	return roles, nil
}

// GetRole fetches a role by id.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	return getRole(ctx, r.pool, id)
}

// CreateRole inserts a new role.
func (r *Repository) CreateRole(ctx context.Context, name, description string) (Role, error) {
	role := Role{Name: name, Description: description, Permissions: []rbac.Permission{}}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO roles (name, description, created_at, updated_at)
		VALUES ($1, $2, NOW(), NOW()) RETURNING id, created_at, updated_at`, name, description).
		Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Role{}, fmt.Errorf("role %q: %w", name, shared.ErrConflict)
		}
		return Role{}, err
	}
	return role, nil
}

// UpdateRole overwrites name and description.
func (r *Repository) UpdateRole(ctx context.Context, id int64, name, description string) (Role, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE roles SET name = $2, description = $3, updated_at = NOW() WHERE id = $1`, id, name, description)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return Role{}, fmt.Errorf("role %q: %w", name, shared.ErrConflict)
		}
		return Role{}, err
	}
	if tag.RowsAffected() == 0 {
		return Role{}, fmt.Errorf("role %d: %w", id, shared.ErrNotFound)
	}
	return getRole(ctx, r.pool, id)
}

// DeleteRole removes a role; user and permission links cascade.
func (r *Repository) DeleteRole(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("role %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// ReplacePermissions swaps the role's permission set in one transaction.
func (r *Repository) ReplacePermissions(ctx context.Context, roleID int64, permissionIDs []int64) (Role, error) {
	var role Role
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM roles WHERE id = $1)`, roleID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("role %d: %w", roleID, shared.ErrNotFound)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM role_permissions WHERE role_id = $1`, roleID); err != nil {
			return err
		}
		if len(permissionIDs) > 0 {
			tag, err := tx.Exec(ctx, `
				INSERT INTO role_permissions (role_id, permission_id)
				SELECT $1, id FROM permissions WHERE id = ANY($2)`, roleID, permissionIDs)
			if err != nil {
				return err
			}
			if int(tag.RowsAffected()) != len(permissionIDs) {
				return fmt.Errorf("permissions %v: %w", permissionIDs, shared.ErrNotFound)
			}
		}
		if _, err := tx.Exec(ctx, `UPDATE roles SET updated_at = NOW() WHERE id = $1`, roleID); err != nil {
			return err
		}
		var err error
		role, err = getRole(ctx, tx, roleID)
		return err
	})
	return role, err
}

func getRole(ctx context.Context, q db.Querier, id int64) (Role, error) {
	var role Role
	err := q.QueryRow(ctx, `SELECT id, name, description, created_at, updated_at FROM roles WHERE id = $1`, id).
		Scan(&role.ID, &role.Name, &role.Description, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return Role{}, fmt.Errorf("role %d: %w", id, shared.ErrNotFound)
		}
		return Role{}, err
	}
	roles := []Role{role}
	if err := attachPermissions(ctx, q, roles); err != nil {
		return Role{}, err
	}
	return roles[0], nil
}

func attachPermissions(ctx context.Context, q db.Querier, roles []Role) error {
	ids := make([]int64, len(roles))
	for i, role := range roles {
		ids[i] = role.ID
	}
	perms, err := rbac.LoadRolePermissions(ctx, q, ids)
	if err != nil {
		return err
	}
	for i := range roles {
		roles[i].Permissions = perms[roles[i].ID]
		if roles[i].Permissions == nil {
			roles[i].Permissions = []rbac.Permission{}
		}
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)
