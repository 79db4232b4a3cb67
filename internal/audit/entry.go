// Package audit appends and reads the immutable trail of permission-affecting changes.
package audit

import (
	"encoding/json"
	"time"

	"github.com/observa-edu/observa/internal/shared"
)

// Action enumerates the mutation kinds that are audited.
type Action string

const (
	ActionRoleCreated         Action = "role_created"
	ActionRoleRenamed         Action = "role_renamed"
	ActionRoleDeleted         Action = "role_deleted"
	ActionPermissionChanged   Action = "permission_changed"
	ActionHierarchyAssigned   Action = "hierarchy_assigned"
	ActionHierarchyUnassigned Action = "hierarchy_unassigned"
	ActionMenuOrderChanged    Action = "menu_order_changed"
	ActionPageCreated         Action = "page_created"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionRoleCreated, ActionRoleRenamed, ActionRoleDeleted, ActionPermissionChanged,
		ActionHierarchyAssigned, ActionHierarchyUnassigned, ActionMenuOrderChanged, ActionPageCreated:
		return true
	}
	return false
}

// Entry is one audit row. Entries are never updated or deleted.
type Entry struct {
	ID           int64           `json:"id"`
	ActorUserID  int64           `json:"actorUserId"`
	ActorRole    string          `json:"actorRole"`
	Action       Action          `json:"action"`
	TargetEntity string          `json:"targetEntity"`
	TargetID     string          `json:"targetId"`
	RoleID       *int64          `json:"roleId,omitempty"`
	PageID       *int64          `json:"pageId,omitempty"`
	Summary      string          `json:"summary"`
	Before       json.RawMessage `json:"before,omitempty"`
	After        json.RawMessage `json:"after,omitempty"`
	RemoteAddr   string          `json:"remoteAddr,omitempty"`
	OccurredAt   time.Time       `json:"occurredAt"`
}

// NewEntry starts an entry attributed to actor.
func NewEntry(actor shared.Principal, action Action, targetEntity, targetID, summary string) Entry {
	return Entry{
		ActorUserID:  actor.UserID,
		ActorRole:    actor.Role,
		Action:       action,
		TargetEntity: targetEntity,
		TargetID:     targetID,
		Summary:      summary,
		RemoteAddr:   actor.RemoteAddr,
	}
}

// WithRole links the entry to a role.
func (e Entry) WithRole(id int64) Entry {
	e.RoleID = &id
	return e
}

// WithPage links the entry to a page.
func (e Entry) WithPage(id int64) Entry {
	e.PageID = &id
	return e
}

// WithChange attaches before/after values. Values that fail to marshal are dropped.
func (e Entry) WithChange(before, after any) Entry {
	if before != nil {
		if raw, err := json.Marshal(before); err == nil {
			e.Before = raw
		}
	}
	if after != nil {
		if raw, err := json.Marshal(after); err == nil {
			e.After = raw
		}
	}
	return e
}

// Filter narrows audit listings.
type Filter struct {
	RoleID *int64
	PageID *int64
	Action Action
	Limit  int
	Offset int
}

// Page is one page of entries, newest first.
type Page struct {
	Entries    []Entry           `json:"entries"`
	Pagination shared.Pagination `json:"pagination"`
}
