package users

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

// ListUsers returns one page of users and the total count.
func (r *Repository) ListUsers(ctx context.Context, limit, offset int) ([]User, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, username, email, is_active, created_at, updated_at
		FROM users ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	users := make([]User, 0)
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.IsActive, &u.CreatedAt, &u.UpdatedAt); err != nil {
			rows.Close()
			return nil, 0, err
		}
		users = append(users, u)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	if err := attachRoles(ctx, r.pool, users); err != nil {
		return nil, 0, err
	}
	return users, total, nil
}

// GetUser fetches a user with role names.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	return getUser(ctx, r.pool, id)
}

// CreateUser inserts the user and its role links.
func (r *Repository) CreateUser(ctx context.Context, u User, passwordHash string) (User, error) {
	var created User
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO users (username, email, password_hash, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, NOW(), NOW()) RETURNING id`,
			u.Username, u.Email, passwordHash, u.IsActive).Scan(&id)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return fmt.Errorf("user %q: %w", u.Username, shared.ErrConflict)
			}
			return err
		}
		if err := replaceRoles(ctx, tx, id, u.Roles); err != nil {
			return err
		}
		created, err = getUser(ctx, tx, id)
		return err
	})
	return created, err
}

// UpdateUser applies the provided changes.
func (r *Repository) UpdateUser(ctx context.Context, id int64, c userChanges) (User, error) {
	var updated User
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			UPDATE users SET
				email = COALESCE($2, email),
				password_hash = COALESCE($3, password_hash),
				is_active = COALESCE($4, is_active),
				updated_at = NOW()
			WHERE id = $1`, id, c.Email, c.PasswordHash, c.IsActive)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return fmt.Errorf("user %d email: %w", id, shared.ErrConflict)
			}
			return err
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
		}
		if c.Roles != nil {
			if err := replaceRoles(ctx, tx, id, c.Roles); err != nil {
				return err
			}
		}
		updated, err = getUser(ctx, tx, id)
		return err
	})
	return updated, err
}

// DeleteUser removes a user; role links cascade.
func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func getUser(ctx context.Context, q db.Querier, id int64) (User, error) {
	var u User
	err := q.QueryRow(ctx, `
		SELECT id, username, email, is_active, created_at, updated_at
		FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Username, &u.Email, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if db.IsNoRows(err) {
			return User{}, fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
		}
		return User{}, err
	}
	users := []User{u}
	if err := attachRoles(ctx, q, users); err != nil {
		return User{}, err
	}
	return users[0], nil
}

func attachRoles(ctx context.Context, q db.Querier, users []User) error {
	ids := make([]int64, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	roles, err := rbac.LoadUserRoles(ctx, q, ids)
	if err != nil {
		return err
	}
	for i := range users {
		names := make([]string, 0, len(roles[users[i].ID]))
		for _, role := range roles[users[i].ID] {
			names = append(names, role.Name)
		}
		users[i].Roles = names
	}
	return nil
}

func replaceRoles(ctx context.Context, tx pgx.Tx, userID int64, roles []string) error {
	if _, err := tx.Exec(ctx, `DELETE FROM user_roles WHERE user_id = $1`, userID); err != nil {
		return err
	}
	if len(roles) == 0 {
		return nil
	}
	tag, err := tx.Exec(ctx, `
		INSERT INTO user_roles (user_id, role_id)
		SELECT $1, id FROM roles WHERE name = ANY($2)`, userID, roles)
	if err != nil {
		return err
	}
	if int(tag.RowsAffected()) != len(roles) {
		return fmt.Errorf("roles %v: %w", roles, shared.ErrNotFound)
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)
