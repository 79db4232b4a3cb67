package menu

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/observa-edu/observa/internal/permissions"
	"github.com/observa-edu/observa/internal/platform/httpx"
	"github.com/observa-edu/observa/internal/shared"
)

type adminGuard struct{}

func (adminGuard) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := shared.PrincipalFromContext(r.Context())
		if !permissions.IsAdminRole(p.Role) {
			httpx.RespondError(w, nil, shared.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// callerRoles resolves only the caller, and user 30 for admins.
type callerRoles struct{}

func (callerRoles) RoleFor(_ context.Context, caller shared.Principal, userID int64) (string, error) {
	if userID == 0 || userID == caller.UserID {
		if caller.Tier == shared.TierParticipant {
			return shared.ParticipantRole, nil
		}
		return caller.Role, nil
	}
	if !permissions.IsAdminRole(caller.Role) {
		return "", shared.ErrForbidden
	}
	return "teacher", nil
}

func newTestRouter(repo *memoryRepo, log *recordingAudit, p shared.Principal) http.Handler {
	h := NewHandler(nil, newComposer(repo), NewService(repo, log, nil), callerRoles{}, adminGuard{})
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(shared.ContextWithPrincipal(req.Context(), p)))
		})
	})
	h.MountRoutes(r)
	h.MountParticipantRoutes(r)
	return r
}

func TestHandlerReorderRequiresAdmin(t *testing.T) {
	repo := newMemoryRepo()
	log := &recordingAudit{}
	body := `{"pageOrders":[{"id":5,"order":1},{"id":2,"order":2}]}`

	teacher := newTestRouter(repo, log, shared.Principal{UserID: 20, Role: "teacher", Tier: shared.TierStaff})
	rr := httptest.NewRecorder()
	teacher.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/menu-order", strings.NewReader(body)))
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Empty(t, log.entries)

	router := newTestRouter(repo, log, admin)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/menu-order", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `{"updated":2,"changed":2}`, rr.Body.String())
	assert.Len(t, log.entries, 1)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPut, "/menu-order", strings.NewReader(`{"pageOrders":[{"id":404,"order":1}]}`)))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestHandlerUserPages(t *testing.T) {
	router := newTestRouter(newMemoryRepo(), &recordingAudit{}, admin)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/permissions/user-pages?userId=30", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"path":"/dashboard/teacher"`)
	assert.NotContains(t, rr.Body.String(), "/reports")

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/permissions/user-pages?userId=x", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	teacher := newTestRouter(newMemoryRepo(), &recordingAudit{}, shared.Principal{UserID: 20, Role: "teacher", Tier: shared.TierStaff})
	rr = httptest.NewRecorder()
	teacher.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/permissions/user-pages?userId=30", nil))
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestHandlerParticipantMenu(t *testing.T) {
	participant := shared.Principal{Role: shared.ParticipantRole, Tier: shared.TierParticipant}
	router := newTestRouter(newMemoryRepo(), &recordingAudit{}, participant)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/participant/menu", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"categories":[],"items":[{"id":1,"name":"Dashboard","path":"/participant/home","icon":"home","order":1}]}`, rr.Body.String())
}
