package permissions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/observa-edu/observa/internal/shared"
)

// Rule is one stored (role, page) decision.
type Rule struct {
	PageID  int64
	Path    string
	Allowed bool
}

// ActionRule is one stored (role, page, action) decision.
type ActionRule struct {
	PageID  int64
	Path    string
	Action  string
	Allowed bool
}

// Store loads the stored rules of a role. role is already normalized.
type Store interface {
	RoleRules(ctx context.Context, role string) ([]Rule, error)
	RoleActionRules(ctx context.Context, role, action string) ([]ActionRule, error)
}

// Resolver answers "may role R reach page P (with action A)".
type Resolver struct {
	store  Store
	logger *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(store Store, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{store: store, logger: logger}
}

// Allowed resolves a single decision. Admin is always allowed. Otherwise an exact path
// row wins, then the most specific matching pattern row, else deny. With an action, an
// action row for the matched page takes precedence over the page-level result.
//
// Storage failures are returned as shared.ErrStorageUnavailable and never collapse into a
// decision. A missing permission table denies and logs a warning.
func (r *Resolver) Allowed(ctx context.Context, role, path, action string) (bool, error) {
	role = NormalizeRole(role)
	if role == AdminRole {
		return true, nil
	}
	if role == "" {
		return false, nil
	}
	path = NormalizePath(path)
	rules, err := r.roleRules(ctx, role)
	if err != nil {
		return false, err
	}
	candidates := make([]candidate, 0, len(rules))
	for _, rule := range rules {
		candidates = append(candidates, candidate{path: rule.Path, allowed: rule.Allowed})
	}
	allowed, _ := resolvePath(candidates, path)

	action = strings.ToLower(strings.TrimSpace(action))
	if action == "" {
		return allowed, nil
	}
	actionRules, err := r.store.RoleActionRules(ctx, role, action)
	if err != nil {
		if errors.Is(err, shared.ErrSchemaMissing) {
			r.logger.Warn("action permission table missing, using page-level decision",
				slog.String("role", role), slog.String("action", action), slog.Any("error", err))
			return allowed, nil
		}
		return false, fmt.Errorf("%w: load action rules for %q: %v", shared.ErrStorageUnavailable, role, err)
	}
	actionCandidates := make([]candidate, 0, len(actionRules))
	for _, rule := range actionRules {
		actionCandidates = append(actionCandidates, candidate{path: rule.Path, allowed: rule.Allowed})
	}
	if explicit, matched := resolvePath(actionCandidates, path); matched {
		return explicit, nil
	}
	return allowed, nil
}

// AllowedPaths resolves page-level decisions for many paths with one rule load.
func (r *Resolver) AllowedPaths(ctx context.Context, role string, paths []string) (map[string]bool, error) {
	out := make(map[string]bool, len(paths))
	role = NormalizeRole(role)
	if role == AdminRole {
		for _, p := range paths {
			out[p] = true
		}
		return out, nil
	}
	if role == "" {
		for _, p := range paths {
			out[p] = false
		}
		return out, nil
	}
	rules, err := r.roleRules(ctx, role)
	if err != nil {
		return nil, err
	}
	candidates := make([]candidate, 0, len(rules))
	for _, rule := range rules {
		candidates = append(candidates, candidate{path: rule.Path, allowed: rule.Allowed})
	}
	for _, p := range paths {
		out[p], _ = resolvePath(candidates, NormalizePath(p))
	}
	return out, nil
}

func (r *Resolver) roleRules(ctx context.Context, role string) ([]Rule, error) {
	rules, err := r.store.RoleRules(ctx, role)
	if err != nil {
		if errors.Is(err, shared.ErrSchemaMissing) {
			r.logger.Warn("permission table missing, denying non-admin access",
				slog.String("role", role), slog.Any("error", err))
			return nil, nil
		}
		return nil, fmt.Errorf("%w: load rules for %q: %v", shared.ErrStorageUnavailable, role, err)
	}
	return rules, nil
}

type candidate struct {
	path    string
	allowed bool
}

// resolvePath returns the decision of the best candidate for path and whether any
// candidate matched at all.
func resolvePath(candidates []candidate, path string) (bool, bool) {
	for _, c := range candidates {
		if NormalizePath(c.path) == path {
			return c.allowed, true
		}
	}
	var (
		best      *candidate
		bestWilds int
	)
	for i := range candidates {
		c := &candidates[i]
		if !IsPattern(c.path) {
			continue
		}
		ok, wilds := MatchPattern(c.path, path)
		if !ok {
			continue
		}
		if best == nil || wilds < bestWilds || (wilds == bestWilds && c.path < best.path) {
			best = c
			bestWilds = wilds
		}
	}
	if best == nil {
		return false, false
	}
	return best.allowed, true
}
