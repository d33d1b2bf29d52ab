package menu

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-rbac/internal/platform/db"
	"github.com/odyssey-erp/odyssey-rbac/internal/shared"
)

// Repository provides PostgreSQL backed persistence for menu entries.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectEntry = `SELECT id, label, path, icon, required_permission, parent_id, sort_order FROM menus`

// ListEntries returns all entries in display order.
func (r *Repository) ListEntries(ctx context.Context) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, selectEntry+` ORDER BY sort_order, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	entries := make([]Entry, 0)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.ID, &e.Label, &e.Path, &e.Icon, &e.RequiredPermission, &e.ParentID, &e.SortOrder); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetEntry fetches an entry by id.
func (r *Repository) GetEntry(ctx context.Context, id int64) (Entry, error) {
	var e Entry
	err := r.pool.QueryRow(ctx, selectEntry+` WHERE id = $1`, id).
		Scan(&e.ID, &e.Label, &e.Path, &e.Icon, &e.RequiredPermission, &e.ParentID, &e.SortOrder)
	if err != nil {
		if db.IsNoRows(err) {
			return Entry{}, fmt.Errorf("menu %d: %w", id, shared.ErrNotFound)
		}
		return Entry{}, err
	}
	return e, nil
}

// CreateEntry inserts an entry.
func (r *Repository) CreateEntry(ctx context.Context, e Entry) (Entry, error) {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO menus (label, path, icon, required_permission, parent_id, sort_order)
		VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		e.Label, e.Path, e.Icon, e.RequiredPermission, e.ParentID, e.SortOrder).Scan(&e.ID)
	if err != nil {
		return Entry{}, err
	}
	return e, nil
}

// UpdateEntry overwrites every mutable column.
func (r *Repository) UpdateEntry(ctx context.Context, e Entry) (Entry, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE menus SET label = $2, path = $3, icon = $4, required_permission = $5, parent_id = $6, sort_order = $7
		WHERE id = $1`,
		e.ID, e.Label, e.Path, e.Icon, e.RequiredPermission, e.ParentID, e.SortOrder)
	if err != nil {
		return Entry{}, err
	}
	if tag.RowsAffected() == 0 {
		return Entry{}, fmt.Errorf("menu %d: %w", e.ID, shared.ErrNotFound)
	}
	return e, nil
}

// DeleteEntry removes an entry; children keep a dangling parent and drop out
// of every tree until re-parented.
func (r *Repository) DeleteEntry(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM menus WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("menu %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

var _ RepositoryPort = (*Repository)(nil)
