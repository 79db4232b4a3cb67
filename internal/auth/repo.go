package auth

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/observa-edu/observa/internal/platform/db"
	"github.com/observa-edu/observa/internal/shared"
)

// Repository defines persistence operations for auth module.
type Repository interface {
	FindByEmail(ctx context.Context, email string) (Credentials, error)
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// FindByEmail fetches login material by email, ignoring case.
func (r *PGRepository) FindByEmail(ctx context.Context, email string) (Credentials, error) {
	var c Credentials
	err := r.pool.QueryRow(ctx, `SELECT id, password_hash, is_active FROM users WHERE lower(email) = lower($1)`, email).
		Scan(&c.UserID, &c.PasswordHash, &c.IsActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Credentials{}, shared.ErrNotFound
		}
		return Credentials{}, db.Classify(err)
	}
	return c, nil
}

var _ Repository = (*PGRepository)(nil)
