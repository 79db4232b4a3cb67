package access

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/observa-edu/observa/internal/platform/httpx"
	"github.com/observa-edu/observa/internal/shared"
)

const cookieName = "observa_session"

func newTestRouter() (http.Handler, *shared.CSRFManager) {
	f, _ := newTestFacade()
	csrf := shared.NewCSRFManager("secret")
	m := Middleware{Facade: f, CSRF: csrf, CookieName: cookieName}

	whoami := func(w http.ResponseWriter, r *http.Request) {
		p, _ := shared.PrincipalFromContext(r.Context())
		httpx.JSON(w, http.StatusOK, map[string]any{"role": p.Role, "tier": p.Tier})
	}

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(m.RequireSession)
		r.Get("/me", whoami)
		r.Post("/me", whoami)
		r.With(m.RequirePage("/students", "edit")).Post("/students", whoami)
		r.With(m.RequireAdmin).Get("/admin", whoami)
	})
	r.Group(func(r chi.Router) {
		r.Use(m.RequireParticipant)
		r.With(m.RequirePage("/survey", "")).Get("/survey", whoami)
		r.With(m.RequirePage("/dashboard", "")).Get("/participant-dashboard", whoami)
	})
	return r, csrf
}

func do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func bearer(method, target, token string) *http.Request {
	req := httptest.NewRequest(method, target, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func TestRequireSessionDistinguishesUnauthenticatedFromForbidden(t *testing.T) {
	router, _ := newTestRouter()

	rr := do(router, httptest.NewRequest(http.MethodGet, "/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "unauthenticated")

	rr = do(router, bearer(http.MethodGet, "/me", "tok-expired"))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "session_expired")

	rr = do(router, bearer(http.MethodGet, "/me", "tok-inactive"))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Body.String(), "account_inactive")

	rr = do(router, bearer(http.MethodGet, "/admin", "tok-teacher"))
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = do(router, bearer(http.MethodGet, "/admin", "tok-admin"))
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = do(router, bearer(http.MethodGet, "/me", "broken"))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestRequirePage(t *testing.T) {
	router, _ := newTestRouter()

	rr := do(router, bearer(http.MethodPost, "/students", "tok-teacher"))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"role":"teacher","tier":"staff"}`, rr.Body.String())
}

func TestCookieMutationsRequireCSRF(t *testing.T) {
	router, csrf := newTestRouter()
	cookie := &http.Cookie{Name: cookieName, Value: "tok-teacher"}

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.AddCookie(cookie)
	assert.Equal(t, http.StatusOK, do(router, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/me", nil)
	req.AddCookie(cookie)
	assert.Equal(t, http.StatusForbidden, do(router, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/me", nil)
	req.AddCookie(cookie)
	req.Header.Set(shared.CSRFHeader, csrf.Token("tok-admin"))
	assert.Equal(t, http.StatusForbidden, do(router, req).Code)

	req = httptest.NewRequest(http.MethodPost, "/me", nil)
	req.AddCookie(cookie)
	req.Header.Set(shared.CSRFHeader, csrf.Token("tok-teacher"))
	assert.Equal(t, http.StatusOK, do(router, req).Code)

	// Bearer tokens are not ambient credentials.
	assert.Equal(t, http.StatusOK, do(router, bearer(http.MethodPost, "/me", "tok-teacher")).Code)
}

func TestRequireParticipant(t *testing.T) {
	router, _ := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/survey", nil)
	assert.Equal(t, http.StatusUnauthorized, do(router, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/survey", nil)
	req.Header.Set(ParticipantHeader, "PX2026ab")
	rr := do(router, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"role":"participant","tier":"participant"}`, rr.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/participant-dashboard", nil)
	req.Header.Set(ParticipantHeader, "PX2026ab")
	assert.Equal(t, http.StatusForbidden, do(router, req).Code)
}
