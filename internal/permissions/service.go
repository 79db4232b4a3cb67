package permissions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/observa-edu/observa/internal/audit"
	"github.com/observa-edu/observa/internal/session"
	"github.com/observa-edu/observa/internal/shared"
)

const idempotencyModule = "permissions.set"

// IdempotencyGuard deduplicates retried upserts carrying the same key. A key is claimed
// per module together with a fingerprint of the request it guards.
type IdempotencyGuard interface {
	CheckAndInsert(ctx context.Context, key, module, fingerprint string) error
	Delete(ctx context.Context, key, module string) error
}

// UserDirectory resolves another user's role for checks made on their behalf.
type UserDirectory interface {
	SessionUser(ctx context.Context, userID int64) (session.UserInfo, error)
}

// Service manages the permission matrix.
type Service struct {
	repo     Repository
	resolver *Resolver
	audit    audit.Recorder
	idem     IdempotencyGuard
	users    UserDirectory
	logger   *slog.Logger
}

// NewService constructs a Service. idem may be nil.
func NewService(repo Repository, resolver *Resolver, recorder audit.Recorder, idem IdempotencyGuard, users UserDirectory, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, resolver: resolver, audit: recorder, idem: idem, users: users, logger: logger}
}

// SetInput is a single-cell edit addressed by role name.
type SetInput struct {
	Role           string
	PageID         int64
	Action         string
	IsAllowed      bool
	IdempotencyKey string
}

// SetResult reports the stored state after an edit.
type SetResult struct {
	RoleID    int64    `json:"roleId"`
	Role      string   `json:"role"`
	PageID    int64    `json:"pageId"`
	PagePath  string   `json:"pagePath"`
	Action    string   `json:"action,omitempty"`
	IsAllowed bool     `json:"isAllowed"`
	Changed   bool     `json:"changed"`
	Replayed  bool     `json:"replayed,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

// Matrix returns the full matrix.
func (s *Service) Matrix(ctx context.Context) (Matrix, error) {
	return s.repo.Matrix(ctx)
}

// Set upserts one (role, page) or (role, page, action) cell. Identical edits leave state
// untouched and write no audit entry. Idempotency keys are scoped to the actor: a retry
// of the same edit under a used key returns the current state without touching storage,
// and a different edit under that key is a Conflict.
func (s *Service) Set(ctx context.Context, actor shared.Principal, in SetInput) (SetResult, error) {
	in.Action = strings.ToLower(strings.TrimSpace(in.Action))
	if strings.TrimSpace(in.Role) == "" || in.PageID <= 0 {
		return SetResult{}, fmt.Errorf("%w: role and pageId are required", shared.ErrValidation)
	}
	role, err := s.repo.FindRole(ctx, in.Role)
	if err != nil {
		return SetResult{}, err
	}
	page, err := s.repo.FindPage(ctx, in.PageID)
	if err != nil {
		return SetResult{}, err
	}

	module := keyModule(actor)
	claimed := false
	if in.IdempotencyKey != "" && s.idem != nil {
		err := s.idem.CheckAndInsert(ctx, in.IdempotencyKey, module, fingerprint(role, page, in))
		switch {
		case err == nil:
			claimed = true
		case errors.Is(err, shared.ErrIdempotencyConflict):
			return s.replay(ctx, role, page, in.Action)
		case errors.Is(err, shared.ErrSchemaMissing):
			s.logger.Warn("idempotency guard unavailable, applying edit unguarded", slog.Any("error", err))
		default:
			return SetResult{}, err
		}
	}

	changes, err := s.repo.UpsertCells(ctx, []CellInput{{RoleID: role.ID, PageID: page.ID, Action: in.Action, Allowed: in.IsAllowed}})
	if err != nil {
		if claimed {
			s.releaseKey(ctx, in.IdempotencyKey, module)
		}
		return SetResult{}, err
	}
	change := changes[0]
	result := SetResult{
		RoleID:    change.Role.ID,
		Role:      change.Role.Name,
		PageID:    change.Page.ID,
		PagePath:  change.Page.Path,
		Action:    change.Action,
		IsAllowed: change.Allowed,
		Changed:   change.Changed(),
	}
	if result.Changed {
		result.Warnings = audit.Warnings(s.audit.Record(ctx, changeEntry(actor, change)))
	}
	return result, nil
}

func (s *Service) replay(ctx context.Context, role RoleRef, page PageRef, action string) (SetResult, error) {
	current, err := s.repo.CurrentCell(ctx, role.ID, page.ID, action)
	if err != nil {
		return SetResult{}, err
	}
	return SetResult{
		RoleID:    role.ID,
		Role:      role.Name,
		PageID:    page.ID,
		PagePath:  page.Path,
		Action:    action,
		IsAllowed: current != nil && *current,
		Replayed:  true,
	}, nil
}

func keyModule(actor shared.Principal) string {
	return fmt.Sprintf("%s:%d", idempotencyModule, actor.UserID)
}

// fingerprint identifies the edit a key was first used for.
func fingerprint(role RoleRef, page PageRef, in SetInput) string {
	return fmt.Sprintf("%d:%d:%s:%t", role.ID, page.ID, in.Action, in.IsAllowed)
}

func (s *Service) releaseKey(ctx context.Context, key, module string) {
	if key == "" || s.idem == nil {
		return
	}
	if err := s.idem.Delete(ctx, key, module); err != nil {
		s.logger.Warn("release idempotency key", slog.String("key", key), slog.Any("error", err))
	}
}

// BulkResult reports a bulk edit.
type BulkResult struct {
	Applied  int      `json:"applied"`
	Changed  int      `json:"changed"`
	Warnings []string `json:"warnings,omitempty"`
}

// BulkSet applies many cell edits in one transaction and writes a single audit entry
// summarising the changed cells.
func (s *Service) BulkSet(ctx context.Context, actor shared.Principal, inputs []CellInput) (BulkResult, error) {
	if len(inputs) == 0 {
		return BulkResult{}, fmt.Errorf("%w: at least one cell is required", shared.ErrValidation)
	}
	seen := make(map[string]struct{}, len(inputs))
	for i := range inputs {
		inputs[i].Action = strings.ToLower(strings.TrimSpace(inputs[i].Action))
		in := inputs[i]
		if in.RoleID <= 0 || in.PageID <= 0 {
			return BulkResult{}, fmt.Errorf("%w: roleId and pageId are required", shared.ErrValidation)
		}
		key := fmt.Sprintf("%d:%d:%s", in.RoleID, in.PageID, in.Action)
		if _, dup := seen[key]; dup {
			return BulkResult{}, fmt.Errorf("%w: duplicate cell %s", shared.ErrValidation, key)
		}
		seen[key] = struct{}{}
	}
	changes, err := s.repo.UpsertCells(ctx, inputs)
	if err != nil {
		return BulkResult{}, err
	}
	result := BulkResult{Applied: len(changes)}
	type cellValue struct {
		Role    string `json:"role"`
		Path    string `json:"path"`
		Action  string `json:"action,omitempty"`
		Allowed *bool  `json:"isAllowed"`
	}
	var before, after []cellValue
	for _, c := range changes {
		if !c.Changed() {
			continue
		}
		result.Changed++
		allowed := c.Allowed
		before = append(before, cellValue{Role: c.Role.Name, Path: c.Page.Path, Action: c.Action, Allowed: c.Previous})
		after = append(after, cellValue{Role: c.Role.Name, Path: c.Page.Path, Action: c.Action, Allowed: &allowed})
	}
	if result.Changed > 0 {
		entry := audit.NewEntry(actor, audit.ActionPermissionChanged, "role_page_permission", "bulk",
			fmt.Sprintf("%d permissions changed", result.Changed)).WithChange(before, after)
		result.Warnings = audit.Warnings(s.audit.Record(ctx, entry))
	}
	return result, nil
}

// Check reports whether userID (0 means the caller) may reach path with action. Checking
// another user requires access to the permission management page.
func (s *Service) Check(ctx context.Context, caller shared.Principal, userID int64, path, action string) (bool, error) {
	role, err := s.roleFor(ctx, caller, userID)
	if err != nil {
		return false, err
	}
	if role == "" {
		return false, nil
	}
	return s.resolver.Allowed(ctx, role, path, action)
}

// RoleFor returns the role checks for userID run under. An inactive target resolves to
// the empty role, which is denied everything.
func (s *Service) RoleFor(ctx context.Context, caller shared.Principal, userID int64) (string, error) {
	return s.roleFor(ctx, caller, userID)
}

func (s *Service) roleFor(ctx context.Context, caller shared.Principal, userID int64) (string, error) {
	if userID == 0 || userID == caller.UserID {
		if caller.Tier == shared.TierParticipant {
			return shared.ParticipantRole, nil
		}
		return caller.Role, nil
	}
	allowed, err := s.resolver.Allowed(ctx, caller.Role, ManagePath, "")
	if err != nil {
		return "", err
	}
	if !allowed || caller.Tier != shared.TierStaff {
		return "", fmt.Errorf("%w: cannot inspect another user's access", shared.ErrForbidden)
	}
	info, err := s.users.SessionUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if !info.Active {
		return "", nil
	}
	return NormalizeRole(info.Role), nil
}

func changeEntry(actor shared.Principal, c CellChange) audit.Entry {
	target := fmt.Sprintf("%d:%d", c.Role.ID, c.Page.ID)
	subject := c.Page.Path
	if c.Action != "" {
		target += ":" + c.Action
		subject += " [" + c.Action + "]"
	}
	verdict := "denied"
	if c.Allowed {
		verdict = "allowed"
	}
	var before any
	if c.Previous != nil {
		before = map[string]bool{"isAllowed": *c.Previous}
	}
	return audit.NewEntry(actor, audit.ActionPermissionChanged, "role_page_permission", target,
		fmt.Sprintf("role %s: %s %s", c.Role.Name, subject, verdict)).
		WithRole(c.Role.ID).
		WithPage(c.Page.ID).
		WithChange(before, map[string]bool{"isAllowed": c.Allowed})
}
