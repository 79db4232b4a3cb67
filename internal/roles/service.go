package roles

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

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	ListRoles(ctx context.Context) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	CreateRole(ctx context.Context, name, description string) (Role, error)
	RenameRole(ctx context.Context, id int64, name string) error
	DeleteRole(ctx context.Context, id int64) error
}

// Service handles role business logic.
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

// Result wraps a mutated role with any degraded-audit warnings.
type Result struct {
	Role     Role     `json:"role"`
	Warnings []string `json:"warnings,omitempty"`
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context) ([]Role, error) {
	roles, err := s.repo.ListRoles(ctx)
	if err != nil {
		return nil, err
	}
	if roles == nil {
		roles = []Role{}
	}
	return roles, nil
}

// CreateRole adds a role. Names are unique regardless of case.
func (s *Service) CreateRole(ctx context.Context, actor shared.Principal, in CreateInput) (Result, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	if err := httpx.Validate(s.validate, in); err != nil {
		return Result{}, err
	}
	role, err := s.repo.CreateRole(ctx, in.Name, in.Description)
	if err != nil {
		return Result{}, err
	}
	entry := audit.NewEntry(actor, audit.ActionRoleCreated, "role", strconv.FormatInt(role.ID, 10),
		fmt.Sprintf("role %s created", role.Name)).
		WithRole(role.ID).
		WithChange(nil, role)
	return Result{Role: role, Warnings: audit.Warnings(s.audit.Record(ctx, entry))}, nil
}

// RenameRole changes a role's name. The admin role keeps its name and no other role may
// take it.
func (s *Service) RenameRole(ctx context.Context, actor shared.Principal, id int64, in RenameInput) (Result, error) {
	in.Name = strings.TrimSpace(in.Name)
	if err := httpx.Validate(s.validate, in); err != nil {
		return Result{}, err
	}
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if role.Name == in.Name {
		return Result{Role: role}, nil
	}
	if permissions.IsAdminRole(role.Name) != permissions.IsAdminRole(in.Name) {
		return Result{}, fmt.Errorf("%w: the admin role name is reserved", shared.ErrConflict)
	}
	if err := s.repo.RenameRole(ctx, id, in.Name); err != nil {
		return Result{}, err
	}
	previous := role.Name
	role.Name = in.Name
	entry := audit.NewEntry(actor, audit.ActionRoleRenamed, "role", strconv.FormatInt(id, 10),
		fmt.Sprintf("role %s renamed to %s", previous, role.Name)).
		WithRole(id).
		WithChange(map[string]string{"name": previous}, map[string]string{"name": role.Name})
	return Result{Role: role, Warnings: audit.Warnings(s.audit.Record(ctx, entry))}, nil
}

// DeleteRole removes a role no user holds. The admin role cannot be deleted.
func (s *Service) DeleteRole(ctx context.Context, actor shared.Principal, id int64) (Result, error) {
	role, err := s.repo.GetRole(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if permissions.IsAdminRole(role.Name) {
		return Result{}, fmt.Errorf("%w: the admin role cannot be deleted", shared.ErrConflict)
	}
	if err := s.repo.DeleteRole(ctx, id); err != nil {
		return Result{}, err
	}
	entry := audit.NewEntry(actor, audit.ActionRoleDeleted, "role", strconv.FormatInt(id, 10),
		fmt.Sprintf("role %s deleted", role.Name)).
		WithRole(id).
		WithChange(role, nil)
	return Result{Role: role, Warnings: audit.Warnings(s.audit.Record(ctx, entry))}, nil
}
