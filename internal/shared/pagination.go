package shared

const (
	// DefaultPageLimit is used when a listing request omits limit.
	DefaultPageLimit = 50
	// MaxPageLimit caps listing requests.
	MaxPageLimit = 200
)

// Pagination contains metadata for offset based listings.
type Pagination struct {
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	HasNext    bool `json:"hasNext"`
	NextOffset int  `json:"nextOffset,omitempty"`
}

// ClampLimit applies the default and maximum page sizes.
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultPageLimit
	}
	if limit > MaxPageLimit {
		return MaxPageLimit
	}
	return limit
}

// NewPagination computes pagination metadata. fetched is the number of rows returned
// by a query that asked for limit+1 rows.
func NewPagination(limit, offset, fetched int) Pagination {
	p := Pagination{Limit: limit, Offset: offset, HasNext: fetched > limit}
	if p.HasNext {
		p.NextOffset = offset + limit
	}
	return p
}
