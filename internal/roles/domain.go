// Package roles manages the role catalogue permissions are granted to.
package roles

import "time"

// Role represents a role for management.
type Role struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CreateInput describes a new role.
type CreateInput struct {
	Name        string `json:"name" validate:"required,max=64"`
	Description string `json:"description" validate:"max=255"`
}

// RenameInput changes a role's name.
type RenameInput struct {
	Name string `json:"name" validate:"required,max=64"`
}
