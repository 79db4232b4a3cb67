// Package pages manages the catalogue of navigable pages permissions refer to.
package pages

import "time"

// Page is a stored page.
type Page struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Path       string    `json:"path"`
	Icon       string    `json:"icon,omitempty"`
	SortOrder  *int      `json:"sortOrder,omitempty"`
	CategoryID *int64    `json:"categoryId,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// CreateInput describes a new page. Path may be a pattern such as /users/{id}.
type CreateInput struct {
	Name       string `json:"name" validate:"required,max=128"`
	Path       string `json:"path" validate:"required,startswith=/,max=255"`
	Icon       string `json:"icon" validate:"max=64"`
	SortOrder  *int   `json:"sortOrder" validate:"omitempty,gte=0"`
	CategoryID *int64 `json:"categoryId" validate:"omitempty,gt=0"`
}
