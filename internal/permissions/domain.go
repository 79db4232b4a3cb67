package permissions

// ManagePath is the page that governs viewing and editing the permission matrix.
const ManagePath = "/settings/page-permissions"

// RoleRef identifies a role.
type RoleRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// PageRef identifies a page.
type PageRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Path string `json:"path"`
}

// Cell is one (role, page) decision in the matrix.
type Cell struct {
	RoleID    int64 `json:"roleId"`
	PageID    int64 `json:"pageId"`
	IsAllowed bool  `json:"isAllowed"`
}

// ActionCell is one (role, page, action) decision.
type ActionCell struct {
	RoleID    int64  `json:"roleId"`
	PageID    int64  `json:"pageId"`
	Action    string `json:"action"`
	IsAllowed bool   `json:"isAllowed"`
}

// Matrix is the full roles x pages view. Absent cells are denied.
type Matrix struct {
	Roles   []RoleRef    `json:"roles"`
	Pages   []PageRef    `json:"pages"`
	Cells   []Cell       `json:"cells"`
	Actions []ActionCell `json:"actions"`
}

// CellChange reports the outcome of one upsert.
type CellChange struct {
	Role     RoleRef
	Page     PageRef
	Action   string
	Previous *bool
	Allowed  bool
}

// Changed reports whether the upsert altered stored state.
func (c CellChange) Changed() bool {
	return c.Previous == nil || *c.Previous != c.Allowed
}

// CellInput is one requested edit.
type CellInput struct {
	RoleID  int64
	PageID  int64
	Action  string
	Allowed bool
}
