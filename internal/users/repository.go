package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/observa-edu/observa/internal/platform/db"
	"github.com/observa-edu/observa/internal/session"
	"github.com/observa-edu/observa/internal/shared"
)

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectUser = `SELECT u.id, u.email, u.display_name, u.role_id, r.name, u.is_active, u.org_unit_id, u.created_at, u.updated_at
FROM users u JOIN roles r ON r.id = u.role_id`

// ListUsers returns all users.
func (r *Repository) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := r.pool.Query(ctx, selectUser+` ORDER BY u.id`)
	if err != nil {
		return nil, db.Classify(err)
	}
	defer rows.Close()
	var users []User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, db.Classify(err)
	}
	return users, nil
}

// GetUser fetches a single user.
func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	user, err := scanUser(r.pool.QueryRow(ctx, selectUser+` WHERE u.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return User{}, fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
		}
		return User{}, db.Classify(err)
	}
	return user, nil
}

// SessionUser satisfies session.Directory.
func (r *Repository) SessionUser(ctx context.Context, userID int64) (session.UserInfo, error) {
	user, err := r.GetUser(ctx, userID)
	if err != nil {
		return session.UserInfo{}, err
	}
	return session.UserInfo{Role: user.RoleName, DisplayName: user.DisplayName, Active: user.IsActive}, nil
}

// Exists reports whether a user id is present, active or not.
func (r *Repository) Exists(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := r.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&exists); err != nil {
		return false, db.Classify(err)
	}
	return exists, nil
}

// SetActive flips the active flag. Deactivation is the only way accounts are retired.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	tag, err := r.pool.Exec(ctx, `UPDATE users SET is_active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return db.Classify(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var user User
	var orgUnit pgtype.Int8
	if err := row.Scan(&user.ID, &user.Email, &user.DisplayName, &user.RoleID, &user.RoleName, &user.IsActive, &orgUnit, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return User{}, err
	}
	if orgUnit.Valid {
		id := orgUnit.Int64
		user.OrgUnitID = &id
	}
	return user, nil
}

var _ session.Directory = (*Repository)(nil)
