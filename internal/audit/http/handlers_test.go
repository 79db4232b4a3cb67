package audithttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/observa-edu/observa/internal/audit"
	"github.com/observa-edu/observa/internal/platform/httpx"
	"github.com/observa-edu/observa/internal/shared"
)

type stubReader struct {
	page       audit.Page
	entries    []audit.Entry
	lastFilter audit.Filter
}

func (s *stubReader) List(ctx context.Context, f audit.Filter) (audit.Page, error) {
	s.lastFilter = f
	return s.page, nil
}

func (s *stubReader) Export(ctx context.Context, f audit.Filter) ([]audit.Entry, error) {
	s.lastFilter = f
	return s.entries, nil
}

type roleGuard struct{}

func (roleGuard) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, _ := shared.PrincipalFromContext(r.Context())
		if p.Role != "admin" {
			httpx.RespondError(w, nil, shared.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func newAuditRouter(t *testing.T, reader *stubReader, role string) http.Handler {
	t.Helper()
	handler := NewHandler(nil, reader, roleGuard{})
	handler.now = func() time.Time { return time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			p := shared.Principal{UserID: 1, Role: role, Tier: shared.TierStaff}
			next.ServeHTTP(w, req.WithContext(shared.ContextWithPrincipal(req.Context(), p)))
		})
	})
	handler.MountRoutes(r)
	return r
}

func TestListRequiresAdmin(t *testing.T) {
	router := newAuditRouter(t, &stubReader{}, "teacher")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/permissions/audit", nil))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestListParsesFilters(t *testing.T) {
	reader := &stubReader{page: audit.Page{
		Entries:    []audit.Entry{{ID: 9, Action: audit.ActionPermissionChanged, Summary: "role teacher: /students allowed"}},
		Pagination: shared.Pagination{Limit: 10, HasNext: true, NextOffset: 10},
	}}
	router := newAuditRouter(t, reader, "admin")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/permissions/audit?roleId=2&pageId=11&action=permission_changed&limit=10", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	f := reader.lastFilter
	if f.RoleID == nil || *f.RoleID != 2 || f.PageID == nil || *f.PageID != 11 {
		t.Fatalf("unexpected id filters: %+v", f)
	}
	if f.Action != audit.ActionPermissionChanged || f.Limit != 10 {
		t.Fatalf("unexpected filter: %+v", f)
	}

	var body audit.Page
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Entries) != 1 || !body.Pagination.HasNext || body.Pagination.NextOffset != 10 {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestListRejectsInvalidFilters(t *testing.T) {
	router := newAuditRouter(t, &stubReader{}, "admin")
	for _, query := range []string{"roleId=abc", "pageId=-1", "action=deleted_everything", "limit=-5", "offset=x"} {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/permissions/audit?"+query, nil))
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", query, rr.Code)
		}
	}
}

func TestExportWritesCSV(t *testing.T) {
	roleID := int64(2)
	reader := &stubReader{entries: []audit.Entry{{
		ID:          3,
		ActorUserID: 1,
		ActorRole:   "admin",
		Action:      audit.ActionRoleCreated,
		RoleID:      &roleID,
		Summary:     "role coordinator created",
		OccurredAt:  time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}}}
	router := newAuditRouter(t, reader, "admin")

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/permissions/audit/export.csv?roleId=2", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("unexpected content type %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "audit-20260315.csv") {
		t.Fatalf("unexpected disposition %q", cd)
	}
	lines := strings.Split(strings.TrimSpace(rr.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], "role coordinator created") || !strings.Contains(lines[1], "2026-03-14T09:30:00Z") {
		t.Fatalf("unexpected row %q", lines[1])
	}
}

func TestExportIsRateLimited(t *testing.T) {
	router := newAuditRouter(t, &stubReader{}, "admin")
	var last int
	for i := 0; i < rateLimit+1; i++ {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/permissions/audit/export.csv", nil))
		last = rr.Code
	}
	if last != http.StatusTooManyRequests {
		t.Fatalf("expected 429 after %d exports, got %d", rateLimit, last)
	}
}
