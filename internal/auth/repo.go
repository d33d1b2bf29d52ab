package auth

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-rbac/internal/platform/db"
	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByUsername(ctx context.Context, username string) (*Credentials, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	CreateUser(ctx context.Context, username, email, passwordHash string, roles []string) (int64, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByUsername fetches credentials by username.
func (r *PGRepository) FindByUsername(ctx context.Context, username string) (*Credentials, error) {
	var c Credentials
	err := r.pool.QueryRow(ctx, `SELECT id, username, email, password_hash, is_active FROM users WHERE username = $1`, username).
		Scan(&c.UserID, &c.Username, &c.Email, &c.PasswordHash, &c.IsActive)
	if err != nil {
		if db.IsNoRows(err) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

// UsernameExists reports whether the username is taken.
func (r *PGRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE username = $1)`, username).Scan(&exists)
	return exists, err
}

// EmailExists reports whether the email is registered.
func (r *PGRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE lower(email) = lower($1))`, email).Scan(&exists)
	return exists, err
}

// CreateUser inserts the user and links the named roles in one transaction.
func (r *PGRepository) CreateUser(ctx context.Context, username, email, passwordHash string, roles []string) (int64, error) {
	var id int64
	err := db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO users (username, email, password_hash, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, TRUE, NOW(), NOW()) RETURNING id`, username, email, passwordHash).Scan(&id)
		if err != nil {
			if db.IsUniqueViolation(err) {
				return fmt.Errorf("user %q: %w", username, shared.ErrConflict)
			}
			return err
		}
		tag, err := tx.Exec(ctx, `
			INSERT INTO user_roles (user_id, role_id)
			SELECT $1, id FROM roles WHERE name = ANY($2)`, id, roles)
		if err != nil {
			return err
		}
		if int(tag.RowsAffected()) != len(roles) {
			return fmt.Errorf("roles %v: %w", roles, shared.ErrNotFound)
		}
		return nil
	})
	return id, err
}

var _ Repository = (*PGRepository)(nil)
