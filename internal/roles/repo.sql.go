package roles

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/observa-edu/observa/internal/platform/db"
	"github.com/observa-edu/observa/internal/shared"
)

// Repository provides PostgreSQL backed persistence. Role names are unique regardless of
// case through a unique index on lower(name).
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectRole = `SELECT id, name, COALESCE(description, ''), created_at, updated_at FROM roles`

// ListRoles returns all roles.
func (r *Repository) ListRoles(ctx context.Context) ([]Role, error) {
	rows, err := r.pool.Query(ctx, selectRole+` ORDER BY id`)
	if err != nil {
		return nil, db.Classify(err)
	}
	roles, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Role])
	if err != nil {
		return nil, db.Classify(err)
	}
	return roles, nil
}

// GetRole fetches one role.
func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	rows, err := r.pool.Query(ctx, selectRole+` WHERE id = $1`, id)
	if err != nil {
		return Role{}, db.Classify(err)
	}
	role, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Role])
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Role{}, fmt.Errorf("role %d: %w", id, shared.ErrNotFound)
		}
		return Role{}, db.Classify(err)
	}
	return role, nil
}

// CreateRole inserts a new role.
func (r *Repository) CreateRole(ctx context.Context, name, description string) (Role, error) {
	rows, err := r.pool.Query(ctx, `INSERT INTO roles (name, description, created_at, updated_at)
	VALUES ($1, NULLIF($2, ''), NOW(), NOW())
	RETURNING id, name, COALESCE(description, ''), created_at, updated_at`, name, description)
	if err != nil {
		return Role{}, db.Classify(err)
	}
	role, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Role])
	if err != nil {
		return Role{}, db.Classify(err)
	}
	return role, nil
}

// RenameRole updates the name of a role.
func (r *Repository) RenameRole(ctx context.Context, id int64, name string) error {
	tag, err := r.pool.Exec(ctx, `UPDATE roles SET name = $2, updated_at = NOW() WHERE id = $1`, id, name)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("role %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

// DeleteRole removes an unreferenced role together with its permission rows. A role still
// held by a user is a conflict.
func (r *Repository) DeleteRole(ctx context.Context, id int64) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		var holders int
		if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM users WHERE role_id = $1`, id).Scan(&holders); err != nil {
			return db.Classify(err)
		}
		if holders > 0 {
			return fmt.Errorf("%w: role %d is held by %d users", shared.ErrConflict, id, holders)
		}
		for _, stmt := range []string{
			`DELETE FROM page_action_permissions WHERE role_id = $1`,
			`DELETE FROM role_page_permissions WHERE role_id = $1`,
		} {
			if _, err := tx.Exec(ctx, stmt, id); err != nil {
				return db.Classify(err)
			}
		}
		tag, err := tx.Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
		if err != nil {
			return db.Classify(err)
		}
		if tag.RowsAffected() == 0 {
			return fmt.Errorf("role %d: %w", id, shared.ErrNotFound)
		}
		return nil
	})
}
