package hierarchy

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/observa-edu/observa/internal/audit"
	"github.com/observa-edu/observa/internal/session"
	"github.com/observa-edu/observa/internal/shared"
)

// AssignPath is the page whose permission governs assignment management.
const AssignPath = "/data/hierarchy/assign"

// Authorizer resolves page decisions for a role.
type Authorizer interface {
	Allowed(ctx context.Context, role, path, action string) (bool, error)
}

// UserDirectory resolves target users.
type UserDirectory interface {
	SessionUser(ctx context.Context, userID int64) (session.UserInfo, error)
}

// Service manages assignments and scoped listings.
type Service struct {
	repo     Repository
	resolver *Resolver
	authz    Authorizer
	users    UserDirectory
	audit    audit.Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repository, resolver *Resolver, authz Authorizer, users UserDirectory, recorder audit.Recorder, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, resolver: resolver, authz: authz, users: users, audit: recorder, logger: logger, now: time.Now}
}

// AssignInput requests a new assignment. AssignedBy defaults to the actor.
type AssignInput struct {
	UserID     int64
	Type       string
	NodeID     int64
	AssignedBy int64
}

// AssignResult reports an assignment mutation.
type AssignResult struct {
	Assignment Assignment `json:"assignment"`
	Created    bool       `json:"created"`
	Warnings   []string   `json:"warnings,omitempty"`
}

// UnassignResult reports a removal.
type UnassignResult struct {
	Removed  bool     `json:"removed"`
	Warnings []string `json:"warnings,omitempty"`
}

// Assign grants userID the subtree rooted at the node. Repeating an existing assignment
// changes nothing and writes no audit entry.
func (s *Service) Assign(ctx context.Context, actor shared.Principal, in AssignInput) (AssignResult, error) {
	if err := s.requireManage(ctx, actor); err != nil {
		return AssignResult{}, err
	}
	node, err := s.validate(ctx, in.UserID, in.Type, in.NodeID)
	if err != nil {
		return AssignResult{}, err
	}
	assignedBy := in.AssignedBy
	if assignedBy <= 0 {
		assignedBy = actor.UserID
	}
	a := Assignment{UserID: in.UserID, Level: node.Level, NodeID: node.ID, AssignedBy: assignedBy, AssignedAt: s.now().UTC()}
	created, err := s.repo.Insert(ctx, a)
	if err != nil {
		return AssignResult{}, err
	}
	result := AssignResult{Assignment: a, Created: created}
	if !created {
		return result, nil
	}
	entry := audit.NewEntry(actor, audit.ActionHierarchyAssigned, "user", strconv.FormatInt(in.UserID, 10),
		fmt.Sprintf("user %d assigned to %s %d", in.UserID, node.Level, node.ID)).
		WithChange(nil, a)
	result.Warnings = audit.Warnings(s.audit.Record(ctx, entry))
	return result, nil
}

// Unassign removes an assignment. Removing one that does not exist is not found.
func (s *Service) Unassign(ctx context.Context, actor shared.Principal, in AssignInput) (UnassignResult, error) {
	if err := s.requireManage(ctx, actor); err != nil {
		return UnassignResult{}, err
	}
	level, err := ParseLevel(in.Type)
	if err != nil {
		return UnassignResult{}, err
	}
	if in.UserID <= 0 || in.NodeID <= 0 {
		return UnassignResult{}, fmt.Errorf("%w: userId and assignmentId are required", shared.ErrValidation)
	}
	node := Node{Level: level, ID: in.NodeID}
	removed, err := s.repo.Delete(ctx, in.UserID, node)
	if err != nil {
		return UnassignResult{}, err
	}
	if !removed {
		return UnassignResult{}, fmt.Errorf("assignment of user %d to %s %d: %w", in.UserID, level, in.NodeID, shared.ErrNotFound)
	}
	entry := audit.NewEntry(actor, audit.ActionHierarchyUnassigned, "user", strconv.FormatInt(in.UserID, 10),
		fmt.Sprintf("user %d unassigned from %s %d", in.UserID, level, in.NodeID)).
		WithChange(node, nil)
	return UnassignResult{Removed: true, Warnings: audit.Warnings(s.audit.Record(ctx, entry))}, nil
}

// Assignments lists the assignments of userID (0 means the caller).
func (s *Service) Assignments(ctx context.Context, actor shared.Principal, userID int64) ([]Assignment, error) {
	target, _, err := s.target(ctx, actor, userID)
	if err != nil {
		return nil, err
	}
	assignments, err := s.repo.Assignments(ctx, target)
	if err != nil {
		return nil, err
	}
	if assignments == nil {
		assignments = []Assignment{}
	}
	return assignments, nil
}

// Schools lists the schools visible to userID (0 means the caller).
func (s *Service) Schools(ctx context.Context, actor shared.Principal, userID int64) ([]School, error) {
	if userID == 0 || userID == actor.UserID {
		scope, err := s.resolver.Scope(ctx, actor)
		if err != nil {
			return nil, err
		}
		return s.resolver.Schools(ctx, scope)
	}
	target, role, err := s.target(ctx, actor, userID)
	if err != nil {
		return nil, err
	}
	scope, err := s.resolver.ScopeFor(ctx, target, role)
	if err != nil {
		return nil, err
	}
	return s.resolver.Schools(ctx, scope)
}

// InScope reports whether the node is visible to the caller.
func (s *Service) InScope(ctx context.Context, actor shared.Principal, level string, nodeID int64) (bool, error) {
	return s.resolver.InScope(ctx, actor, level, nodeID)
}

func (s *Service) target(ctx context.Context, actor shared.Principal, userID int64) (int64, string, error) {
	if userID == 0 || userID == actor.UserID {
		return actor.UserID, actor.Role, nil
	}
	if err := s.requireManage(ctx, actor); err != nil {
		return 0, "", err
	}
	info, err := s.users.SessionUser(ctx, userID)
	if err != nil {
		return 0, "", err
	}
	return userID, info.Role, nil
}

func (s *Service) requireManage(ctx context.Context, actor shared.Principal) error {
	if actor.Tier != shared.TierStaff {
		return fmt.Errorf("%w: hierarchy management requires a staff session", shared.ErrForbidden)
	}
	ok, err := s.authz.Allowed(ctx, actor.Role, AssignPath, "")
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", shared.ErrForbidden, AssignPath)
	}
	return nil
}

func (s *Service) validate(ctx context.Context, userID int64, assignmentType string, nodeID int64) (Node, error) {
	level, err := ParseLevel(assignmentType)
	if err != nil {
		return Node{}, err
	}
	if userID <= 0 || nodeID <= 0 {
		return Node{}, fmt.Errorf("%w: userId and assignmentId are required", shared.ErrValidation)
	}
	if _, err := s.users.SessionUser(ctx, userID); err != nil {
		return Node{}, err
	}
	node := Node{Level: level, ID: nodeID}
	exists, err := s.repo.NodeExists(ctx, node)
	if err != nil {
		return Node{}, err
	}
	if !exists {
		return Node{}, fmt.Errorf("%s %d: %w", level, nodeID, shared.ErrNotFound)
	}
	return node, nil
}
