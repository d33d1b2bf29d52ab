package rbac

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-rbac/internal/platform/db"
	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
)

// PrincipalRepository loads principals with their roles and permissions.
type PrincipalRepository struct {
	pool *pgxpool.Pool
}

// NewPrincipalRepository constructs the repository.
func NewPrincipalRepository(pool *pgxpool.Pool) *PrincipalRepository {
	return &PrincipalRepository{pool: pool}
}

// LoadPrincipal implements PrincipalLoader.
func (r *PrincipalRepository) LoadPrincipal(ctx context.Context, userID int64) (Principal, error) {
	var p Principal
	err := r.pool.QueryRow(ctx, `SELECT id, username, email, is_active FROM users WHERE id = $1`, userID).
		Scan(&p.ID, &p.Username, &p.Email, &p.Active)
	if err != nil {
		if db.IsNoRows(err) {
			return Principal{}, fmt.Errorf("user %d: %w", userID, shared.ErrNotFound)
		}
		return Principal{}, err
	}
	roles, err := LoadUserRoles(ctx, r.pool, []int64{userID})
	if err != nil {
		return Principal{}, err
	}
	p.Roles = roles[userID]
	return p, nil
}

// LoadUserRoles returns roles with permissions keyed by user id.
func LoadUserRoles(ctx context.Context, q db.Querier, userIDs []int64) (map[int64][]Role, error) {
	out := make(map[int64][]Role, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}
	rows, err := q.Query(ctx, `
		SELECT ur.user_id, r.id, r.name, r.description, r.created_at, r.updated_at
		FROM user_roles ur
		JOIN roles r ON r.id = ur.role_id
		WHERE ur.user_id = ANY($1)
		ORDER BY ur.user_id, r.id`, userIDs)
	if err != nil {
		return nil, err
	}
	type userRole struct {
		userID int64
		role   Role
	}
	var pairs []userRole
	roleIDs := make([]int64, 0)
	seen := make(map[int64]struct{})
	for rows.Next() {
		var ur userRole
		if err := rows.Scan(&ur.userID, &ur.role.ID, &ur.role.Name, &ur.role.Description, &ur.role.CreatedAt, &ur.role.UpdatedAt); err != nil {
			rows.Close()
			return nil, err
		}
		pairs = append(pairs, ur)
		if _, ok := seen[ur.role.ID]; !ok {
			seen[ur.role.ID] = struct{}{}
			roleIDs = append(roleIDs, ur.role.ID)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	perms, err := LoadRolePermissions(ctx, q, roleIDs)
	if err != nil {
		return nil, err
	}
	for _, ur := range pairs {
		role := ur.role
		role.Permissions = perms[role.ID]
		out[ur.userID] = append(out[ur.userID], role)
	}
	return out, nil
}

// LoadRolePermissions returns permissions keyed by role id.
func LoadRolePermissions(ctx context.Context, q db.Querier, roleIDs []int64) (map[int64][]Permission, error) {
	out := make(map[int64][]Permission, len(roleIDs))
	if len(roleIDs) == 0 {
		return out, nil
	}
	rows, err := q.Query(ctx, `
		SELECT rp.role_id, p.id, p.name, p.description
		FROM role_permissions rp
		JOIN permissions p ON p.id = rp.permission_id
		WHERE rp.role_id = ANY($1)
		ORDER BY rp.role_id, p.id`, roleIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var roleID int64
		var perm Permission
		if err := rows.Scan(&roleID, &perm.ID, &perm.Name, &perm.Description); err != nil {
			return nil, err
		}
		out[roleID] = append(out[roleID], perm)
	}
	return out, rows.Err()
}

var _ PrincipalLoader = (*PrincipalRepository)(nil)
