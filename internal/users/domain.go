package users

import "time"

// User represents an account as seen by administrators.
type User struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"displayName"`
	RoleID      int64     `json:"roleId"`
	RoleName    string    `json:"role"`
	IsActive    bool      `json:"isActive"`
	OrgUnitID   *int64    `json:"orgUnitId,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
