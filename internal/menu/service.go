package menu

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"

	"github.com/observa-edu/observa/internal/audit"
	"github.com/observa-edu/observa/internal/platform/httpx"
	"github.com/observa-edu/observa/internal/shared"
)

// Service applies admin menu ordering.
type Service struct {
	repo     Repository
	audit    audit.Recorder
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService constructs a Service.
func NewService(repo Repository, recorder audit.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: recorder, validate: httpx.NewValidator(), logger: logger}
}

// ReorderResult reports a reorder.
type ReorderResult struct {
	Updated  int      `json:"updated"`
	Changed  int      `json:"changed"`
	Warnings []string `json:"warnings,omitempty"`
}

type reorderInput struct {
	Orders []PageOrder `validate:"required,min=1,max=1000,dive"`
}

// Reorder sets the sort order of every listed page in one transaction. An unknown page id
// aborts the whole batch. One audit entry is written when any order moved.
func (s *Service) Reorder(ctx context.Context, actor shared.Principal, orders []PageOrder) (ReorderResult, error) {
	if err := httpx.Validate(s.validate, reorderInput{Orders: orders}); err != nil {
		return ReorderResult{}, err
	}
	seen := make(map[int64]struct{}, len(orders))
	for _, o := range orders {
		if _, dup := seen[o.ID]; dup {
			return ReorderResult{}, fmt.Errorf("%w: page %d listed twice", shared.ErrValidation, o.ID)
		}
		seen[o.ID] = struct{}{}
	}

	changes, err := s.repo.Reorder(ctx, orders)
	if err != nil {
		return ReorderResult{}, err
	}
	result := ReorderResult{Updated: len(changes)}
	before := make(map[string]*int)
	after := make(map[string]int)
	for _, c := range changes {
		if !c.Changed() {
			continue
		}
		result.Changed++
		key := strconv.FormatInt(c.PageID, 10)
		before[key] = c.Previous
		after[key] = c.Order
	}
	if result.Changed == 0 {
		return result, nil
	}
	entry := audit.NewEntry(actor, audit.ActionMenuOrderChanged, "menu", "pages",
		fmt.Sprintf("%d pages reordered", result.Changed)).
		WithChange(before, after)
	result.Warnings = audit.Warnings(s.audit.Record(ctx, entry))
	return result, nil
}
