package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/observa-edu/observa/internal/shared"
)

// Repository provides the read side of the audit trail.
type Repository interface {
	List(ctx context.Context, f Filter, limit int) ([]Entry, error)
	All(ctx context.Context, f Filter) ([]Entry, error)
}

// Service coordinates audit reads.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService builds an audit reader.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// List returns one page of entries. A database without the audit table reads as empty.
func (s *Service) List(ctx context.Context, f Filter) (Page, error) {
	if s.repo == nil {
		return Page{}, fmt.Errorf("audit: repository not configured")
	}
	limit := shared.ClampLimit(f.Limit)
	if f.Offset < 0 {
		f.Offset = 0
	}
	rows, err := s.repo.List(ctx, f, limit+1)
	if err != nil {
		if !errors.Is(err, shared.ErrSchemaMissing) {
			return Page{}, err
		}
		s.logger.Warn("audit table missing, returning empty page", slog.Any("error", err))
		rows = nil
	}
	paging := shared.NewPagination(limit, f.Offset, len(rows))
	if len(rows) > limit {
		rows = rows[:limit]
	}
	if rows == nil {
		rows = []Entry{}
	}
	return Page{Entries: rows, Pagination: paging}, nil
}

// Export returns every entry matching f without paging.
func (s *Service) Export(ctx context.Context, f Filter) ([]Entry, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	rows, err := s.repo.All(ctx, f)
	if err != nil {
		if !errors.Is(err, shared.ErrSchemaMissing) {
			return nil, err
		}
		s.logger.Warn("audit table missing, exporting nothing", slog.Any("error", err))
		return []Entry{}, nil
	}
	return rows, nil
}
