// Package access is the single entry point for "may this caller do this": it validates
// sessions, consults the permission matrix and checks hierarchy scope.
package access

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/observa-edu/observa/internal/observability"
	"github.com/observa-edu/observa/internal/permissions"
	"github.com/observa-edu/observa/internal/session"
	"github.com/observa-edu/observa/internal/shared"
)

// Authorizer resolves page/action decisions for a role.
type Authorizer interface {
	Allowed(ctx context.Context, role, path, action string) (bool, error)
}

// ScopeChecker reports whether a hierarchy node is inside the principal's scope.
type ScopeChecker interface {
	InScope(ctx context.Context, p shared.Principal, level string, nodeID int64) (bool, error)
}

// Metrics receives decision and session lookup outcomes.
type Metrics interface {
	RecordDecision(outcome, action string)
	RecordSessionLookup(result string)
}

// Facade orchestrates session validation, matrix lookup and hierarchy checks.
type Facade struct {
	sessions session.Store
	authz    Authorizer
	scope    ScopeChecker
	metrics  Metrics
	logger   *slog.Logger
	validate *validator.Validate
	now      func() time.Time
}

// NewFacade constructs a Facade. scope and metrics may be nil.
func NewFacade(sessions session.Store, authz Authorizer, scope ScopeChecker, logger *slog.Logger, metrics Metrics) *Facade {
	if logger == nil {
		logger = slog.Default()
	}
	return &Facade{
		sessions: sessions,
		authz:    authz,
		scope:    scope,
		metrics:  metrics,
		logger:   logger,
		validate: validator.New(),
		now:      time.Now,
	}
}

// Authenticate resolves a session token into a staff principal. It is read-only and must
// run before any other decision.
func (f *Facade) Authenticate(ctx context.Context, token string) (shared.Principal, error) {
	if strings.TrimSpace(token) == "" {
		f.recordLookup("missing")
		return shared.Principal{}, shared.ErrUnauthenticated
	}
	rec, err := f.sessions.Lookup(ctx, token)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			f.recordLookup("missing")
			return shared.Principal{}, shared.ErrUnauthenticated
		}
		f.recordLookup("error")
		return shared.Principal{}, fmt.Errorf("authenticate: %w", err)
	}
	if rec.Expired(f.now()) {
		f.recordLookup("expired")
		return shared.Principal{}, shared.ErrSessionExpired
	}
	if !rec.Active {
		f.recordLookup("inactive")
		return shared.Principal{}, shared.ErrAccountInactive
	}
	f.recordLookup("valid")
	return shared.Principal{
		UserID:       rec.UserID,
		Role:         permissions.NormalizeRole(rec.Role),
		DisplayName:  rec.DisplayName,
		Tier:         shared.TierStaff,
		SessionToken: token,
	}, nil
}

// Participant builds the weaker participant-tier principal from a participant code.
// No session is consulted; the principal can only reach pages granted to the
// participant role.
func (f *Facade) Participant(code string) (shared.Principal, error) {
	code = strings.TrimSpace(code)
	if err := f.validate.Var(code, "required,alphanum,min=4,max=64"); err != nil {
		f.recordLookup("participant_invalid")
		return shared.Principal{}, shared.ErrUnauthenticated
	}
	f.recordLookup("participant")
	return shared.Principal{
		Role:        shared.ParticipantRole,
		DisplayName: code,
		Tier:        shared.TierParticipant,
	}, nil
}

// Authorize returns nil when p may perform action on path, shared.ErrForbidden when the
// matrix denies it, and a storage error when the decision could not be made.
func (f *Facade) Authorize(ctx context.Context, p shared.Principal, path, action string) error {
	role := p.Role
	if p.Tier == shared.TierParticipant {
		role = shared.ParticipantRole
	}
	allowed, err := f.authz.Allowed(ctx, role, path, action)
	if err != nil {
		f.recordDecision(observability.OutcomeError, action)
		f.logger.Error("authorize", slog.Int64("user_id", p.UserID), slog.String("path", path), slog.Any("error", err))
		return err
	}
	if !allowed {
		f.recordDecision(observability.OutcomeDenied, action)
		return fmt.Errorf("%w: %s", shared.ErrForbidden, path)
	}
	f.recordDecision(observability.OutcomeAllowed, action)
	return nil
}

// AuthorizeAdmin returns shared.ErrForbidden unless p holds the admin role.
func (f *Facade) AuthorizeAdmin(p shared.Principal) error {
	if p.Tier == shared.TierStaff && permissions.IsAdminRole(p.Role) {
		f.recordDecision(observability.OutcomeAllowed, "admin")
		return nil
	}
	f.recordDecision(observability.OutcomeDenied, "admin")
	return fmt.Errorf("%w: admin role required", shared.ErrForbidden)
}

// AuthorizeNode returns shared.ErrForbidden when the node is outside p's hierarchy scope.
func (f *Facade) AuthorizeNode(ctx context.Context, p shared.Principal, level string, nodeID int64) error {
	if f.scope == nil {
		return fmt.Errorf("%w: hierarchy scope not configured", shared.ErrForbidden)
	}
	ok, err := f.scope.InScope(ctx, p, level, nodeID)
	if err != nil {
		f.recordDecision(observability.OutcomeError, "scope")
		return err
	}
	if !ok {
		f.recordDecision(observability.OutcomeDenied, "scope")
		return fmt.Errorf("%w: %s %d outside scope", shared.ErrForbidden, level, nodeID)
	}
	f.recordDecision(observability.OutcomeAllowed, "scope")
	return nil
}

func (f *Facade) recordLookup(result string) {
	if f.metrics != nil {
		f.metrics.RecordSessionLookup(result)
	}
}

func (f *Facade) recordDecision(outcome, action string) {
	if f.metrics != nil {
		f.metrics.RecordDecision(outcome, action)
	}
}
