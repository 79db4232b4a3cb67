package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// IdempotencyStore persists processed request keys.
type IdempotencyStore struct {
	pool *pgxpool.Pool
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(pool *pgxpool.Pool) *IdempotencyStore {
	return &IdempotencyStore{pool: pool}
}

// ErrIdempotencyConflict indicates the key was already processed for the same request.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

// CheckAndInsert claims key within module for the request identified by fingerprint.
// A key already claimed with the same fingerprint yields ErrIdempotencyConflict; one
// claimed by a different request yields ErrConflict.
func (s *IdempotencyStore) CheckAndInsert(ctx context.Context, key, module, fingerprint string) error {
	if s == nil {
		return errors.New("idempotency store not initialised")
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	if module == "" {
		return errors.New("idempotency module required")
	}
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO idempotency_keys (key, module, fingerprint, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (key, module) DO NOTHING`, key, module, fingerprint, time.Now())
	if err != nil {
		return classifyIdempotency(err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	var stored string
	err = s.pool.QueryRow(ctx, `SELECT fingerprint FROM idempotency_keys WHERE key=$1 AND module=$2`, key, module).Scan(&stored)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return errors.Join(ErrStorageUnavailable, errors.New("idempotency key released concurrently"))
		}
		return classifyIdempotency(err)
	}
	return MatchFingerprint(stored, fingerprint)
}

// MatchFingerprint compares the fingerprint stored with a claimed key against the
// current request.
func MatchFingerprint(stored, current string) error {
	if stored != current {
		return fmt.Errorf("%w: idempotency key already used for a different request", ErrConflict)
	}
	return ErrIdempotencyConflict
}

func classifyIdempotency(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "42P01" || pgErr.Code == "42703") {
		return ErrSchemaMissing
	}
	return errors.Join(ErrStorageUnavailable, err)
}

// Delete removes a key, used to release it when the guarded mutation fails.
func (s *IdempotencyStore) Delete(ctx context.Context, key, module string) error {
	if s == nil {
		return nil
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE key=$1 AND module=$2`, key, module)
	return err
}

// Cleanup removes entries older than retention.
func (s *IdempotencyStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	if s == nil {
		return nil
	}
	cutoff := time.Now().Add(-olderThan)
	_, err := s.pool.Exec(ctx, `DELETE FROM idempotency_keys WHERE created_at < $1`, cutoff)
	return err
}
