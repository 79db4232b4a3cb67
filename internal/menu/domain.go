// Package menu builds the navigation a role may see and manages page ordering.
package menu

// DashboardPath is the generic landing entry rewritten per role.
const DashboardPath = "/dashboard"

// Page is a navigable page as stored.
type Page struct {
	ID         int64
	Name       string
	Path       string
	Icon       string
	SortOrder  *int
	CategoryID *int64
}

// Order is the admin-defined sort order, or the page id when none was set. The id stands
// for insertion order and shares a scale with admin orders, so an unordered page with id 3
// sorts between pages ordered 2 and 4. Give every page an order to avoid interleaving.
func (p Page) Order() int {
	if p.SortOrder != nil {
		return *p.SortOrder
	}
	return int(p.ID)
}

// Category groups pages in the menu.
type Category struct {
	ID        int64
	Name      string
	SortOrder int
}

// Item is one menu entry.
type Item struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Path       string `json:"path"`
	Icon       string `json:"icon,omitempty"`
	Order      int    `json:"order"`
	CategoryID *int64 `json:"categoryId,omitempty"`
}

// Section is a category together with its visible items.
type Section struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Order int    `json:"order"`
	Items []Item `json:"items"`
}

// Tree is the grouped menu. Uncategorized items stay at the top level.
type Tree struct {
	Categories []Section `json:"categories"`
	Items      []Item    `json:"items"`
}

// PageOrder sets the sort order of one page.
type PageOrder struct {
	ID    int64 `json:"id" validate:"required,gt=0"`
	Order int   `json:"order" validate:"gte=0,max=2147483647"`
}

// OrderChange records a page's order before and after a reorder.
type OrderChange struct {
	PageID   int64 `json:"pageId"`
	Previous *int  `json:"previous"`
	Order    int   `json:"order"`
}

// Changed reports whether the stored order moved.
func (c OrderChange) Changed() bool {
	return c.Previous == nil || *c.Previous != c.Order
}
