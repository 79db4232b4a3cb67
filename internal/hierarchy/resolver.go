package hierarchy

import (
	"context"
	"errors"
	"log/slog"

	"github.com/observa-edu/observa/internal/permissions"
	"github.com/observa-edu/observa/internal/shared"
)

// Repository provides persistence for assignments and the tree.
type Repository interface {
	Assignments(ctx context.Context, userID int64) ([]Assignment, error)
	Ancestors(ctx context.Context, node Node) ([]Node, error)
	NodeExists(ctx context.Context, node Node) (bool, error)
	Schools(ctx context.Context, scope Scope) ([]School, error)
	Insert(ctx context.Context, a Assignment) (bool, error)
	Delete(ctx context.Context, userID int64, node Node) (bool, error)
}

// Resolver computes effective scopes.
type Resolver struct {
	repo   Repository
	logger *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(repo Repository, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{repo: repo, logger: logger}
}

// Scope returns the effective scope of p.
func (r *Resolver) Scope(ctx context.Context, p shared.Principal) (Scope, error) {
	if p.Tier == shared.TierParticipant {
		return Scope{}, nil
	}
	return r.ScopeFor(ctx, p.UserID, p.Role)
}

// ScopeFor returns the effective scope of userID holding role. Admins see everything;
// everyone else sees the union of their assignments, which may be nothing.
func (r *Resolver) ScopeFor(ctx context.Context, userID int64, role string) (Scope, error) {
	if permissions.IsAdminRole(role) {
		return Everything(), nil
	}
	assignments, err := r.repo.Assignments(ctx, userID)
	if err != nil {
		if errors.Is(err, shared.ErrSchemaMissing) {
			r.logger.Warn("hierarchy assignment table missing, using empty scope", slog.Int64("user_id", userID), slog.Any("error", err))
			return Scope{}, nil
		}
		return Scope{}, err
	}
	return NewScope(assignments), nil
}

// InScope reports whether the node is inside p's scope. Unknown nodes are not found.
func (r *Resolver) InScope(ctx context.Context, p shared.Principal, level string, nodeID int64) (bool, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return false, err
	}
	scope, err := r.Scope(ctx, p)
	if err != nil {
		return false, err
	}
	if scope.Empty() {
		return false, nil
	}
	chain, err := r.repo.Ancestors(ctx, Node{Level: lvl, ID: nodeID})
	if err != nil {
		return false, err
	}
	return scope.Contains(chain), nil
}

// Schools lists schools inside scope. An empty scope yields an empty list without a query.
func (r *Resolver) Schools(ctx context.Context, scope Scope) ([]School, error) {
	if scope.Empty() {
		return []School{}, nil
	}
	schools, err := r.repo.Schools(ctx, scope)
	if err != nil {
		if errors.Is(err, shared.ErrSchemaMissing) {
			r.logger.Warn("hierarchy tables missing, returning no schools", slog.Any("error", err))
			return []School{}, nil
		}
		return nil, err
	}
	if schools == nil {
		schools = []School{}
	}
	return schools, nil
}
