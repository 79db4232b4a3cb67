package permissions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"":                 "/",
		"/":                "/",
		"dashboard":        "/dashboard",
		"/dashboard/":      "/dashboard",
		" /users/42?x=1 ":  "/users/42",
		"/users/42#top":    "/users/42",
		"/settings//":      "/settings",
		"/Settings/Pages/": "/Settings/Pages",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizePath(in), in)
	}
}

func TestMatchPattern(t *testing.T) {
	ok, wilds := MatchPattern("/users/{id}/activities", "/users/42/activities")
	assert.True(t, ok)
	assert.Equal(t, 1, wilds)

	ok, wilds = MatchPattern("/classes/[classId]/students/{studentId}", "/classes/7/students/9")
	assert.True(t, ok)
	assert.Equal(t, 2, wilds)

	ok, _ = MatchPattern("/users/{id}/activities", "/users/42/activities/extra")
	assert.False(t, ok)
	ok, _ = MatchPattern("/users/{id}/activities", "/users/abc/sessions")
	assert.False(t, ok)
	ok, _ = MatchPattern("/users/{id}", "/users")
	assert.False(t, ok)
}

func TestIsPattern(t *testing.T) {
	assert.True(t, IsPattern("/users/{id}"))
	assert.True(t, IsPattern("/users/[id]/x"))
	assert.False(t, IsPattern("/users/id"))
	assert.False(t, IsPattern("/users/{"))
}

func TestNormalizeRole(t *testing.T) {
	assert.Equal(t, "admin", NormalizeRole("  ADMIN "))
	assert.True(t, IsAdminRole("Admin"))
	assert.False(t, IsAdminRole("administrator"))
}
