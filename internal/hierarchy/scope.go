package hierarchy

import "sort"

// Scope is the union of subtrees a user may see. The zero value is empty.
type Scope struct {
	all   bool
	nodes map[Level]map[int64]struct{}
}

// Everything is the unrestricted scope held by admins.
func Everything() Scope {
	return Scope{all: true}
}

// NewScope builds the union of the subtrees rooted at each assignment.
func NewScope(assignments []Assignment) Scope {
	s := Scope{nodes: make(map[Level]map[int64]struct{})}
	for _, a := range assignments {
		if s.nodes[a.Level] == nil {
			s.nodes[a.Level] = make(map[int64]struct{})
		}
		s.nodes[a.Level][a.NodeID] = struct{}{}
	}
	return s
}

// All reports whether the scope is unrestricted.
func (s Scope) All() bool { return s.all }

// Empty reports whether nothing is visible.
func (s Scope) Empty() bool {
	if s.all {
		return false
	}
	for _, ids := range s.nodes {
		if len(ids) > 0 {
			return false
		}
	}
	return true
}

// Roots returns the assigned node ids at level, sorted.
func (s Scope) Roots(level Level) []int64 {
	ids := make([]int64, 0, len(s.nodes[level]))
	for id := range s.nodes[level] {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Contains reports whether a node is visible given its ancestor chain (the node itself
// included).
func (s Scope) Contains(chain []Node) bool {
	if s.all {
		return true
	}
	for _, n := range chain {
		if _, ok := s.nodes[n.Level][n.ID]; ok {
			return true
		}
	}
	return false
}
