package pages

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/observa-edu/observa/internal/audit"
	"github.com/observa-edu/observa/internal/permissions"
	"github.com/observa-edu/observa/internal/platform/httpx"
	"github.com/observa-edu/observa/internal/shared"
)

// RepositoryPort defines data access methods for pages.
type RepositoryPort interface {
	ListPages(ctx context.Context) ([]Page, error)
	CreatePage(ctx context.Context, in CreateInput) (Page, error)
}

// Service handles page business logic.
type Service struct {
	repo     RepositoryPort
	audit    audit.Recorder
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, recorder audit.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: recorder, validate: httpx.NewValidator(), logger: logger}
}

// CreateResult wraps a created page with any degraded-audit warnings.
type CreateResult struct {
	Page     Page     `json:"page"`
	Warnings []string `json:"warnings,omitempty"`
}

// ListPages returns all pages.
func (s *Service) ListPages(ctx context.Context) ([]Page, error) {
	pages, err := s.repo.ListPages(ctx)
	if err != nil {
		return nil, err
	}
	if pages == nil {
		pages = []Page{}
	}
	return pages, nil
}

// CreatePage registers a page. The path is normalized before the uniqueness check, so
// "/students/" and "/students" collide.
func (s *Service) CreatePage(ctx context.Context, actor shared.Principal, in CreateInput) (CreateResult, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Icon = strings.TrimSpace(in.Icon)
	in.Path = strings.TrimSpace(in.Path)
	if err := httpx.Validate(s.validate, in); err != nil {
		return CreateResult{}, err
	}
	in.Path = permissions.NormalizePath(in.Path)
	page, err := s.repo.CreatePage(ctx, in)
	if err != nil {
		return CreateResult{}, err
	}
	entry := audit.NewEntry(actor, audit.ActionPageCreated, "page", strconv.FormatInt(page.ID, 10),
		fmt.Sprintf("page %s created at %s", page.Name, page.Path)).
		WithPage(page.ID).
		WithChange(nil, page)
	return CreateResult{Page: page, Warnings: audit.Warnings(s.audit.Record(ctx, entry))}, nil
}
