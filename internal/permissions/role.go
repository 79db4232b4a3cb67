// Package permissions decides which pages and actions a role may reach and manages the
// role/page permission matrix.
package permissions

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// AdminRole is the superuser role. It is allowed every page and action regardless of
// matrix contents.
const AdminRole = "admin"

// NormalizeRole trims and lower-cases a role name. Roles are stored with inconsistent
// casing, so every comparison goes through here.
func NormalizeRole(role string) string {
	return cases.Lower(language.Und).String(strings.TrimSpace(role))
}

// IsAdminRole reports whether role is the superuser role in any casing.
func IsAdminRole(role string) bool {
	return NormalizeRole(role) == AdminRole
}
