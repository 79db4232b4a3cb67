package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/observa-edu/observa/internal/shared"
)

// Postgres SQLSTATE codes the repositories care about.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeUndefinedTable      = "42P01"
	codeUndefinedColumn     = "42703"
)

// Classify maps driver errors onto the shared error kinds so callers can use errors.Is.
// pgx.ErrNoRows is returned untouched; repositories translate it with their own context.
func Classify(err error) error {
	if err == nil || errors.Is(err, pgx.ErrNoRows) || classified(err) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%w: %s", shared.ErrConflict, pgErr.ConstraintName)
		case codeForeignKeyViolation:
			return fmt.Errorf("%w: %s", shared.ErrNotFound, pgErr.ConstraintName)
		case codeUndefinedTable, codeUndefinedColumn:
			return fmt.Errorf("%w: %s", shared.ErrSchemaMissing, pgErr.Message)
		}
		return fmt.Errorf("%w: %s", shared.ErrStorageUnavailable, pgErr.Message)
	}
	return fmt.Errorf("%w: %v", shared.ErrStorageUnavailable, err)
}

// IsUniqueViolation reports whether err is a unique constraint violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == codeUniqueViolation
}

func classified(err error) bool {
	for _, kind := range []error{shared.ErrConflict, shared.ErrNotFound, shared.ErrSchemaMissing, shared.ErrStorageUnavailable, shared.ErrValidation} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
