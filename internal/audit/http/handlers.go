// Package audithttp serves the audit trail over HTTP.
package audithttp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/observa-edu/observa/internal/audit"
	"github.com/observa-edu/observa/internal/platform/httpx"
	"github.com/observa-edu/observa/internal/shared"
)

// Reader defines the read contract for audit data.
type Reader interface {
	List(ctx context.Context, f audit.Filter) (audit.Page, error)
	Export(ctx context.Context, f audit.Filter) ([]audit.Entry, error)
}

// Guard is the access middleware the handler mounts behind.
type Guard interface {
	RequireAdmin(next http.Handler) http.Handler
}

// Handler serves audit listings.
type Handler struct {
	logger  *slog.Logger
	service Reader
	guard   Guard
	now     func() time.Time
}

// NewHandler creates an audit handler.
func NewHandler(logger *slog.Logger, service Reader, guard Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: guard, now: time.Now}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	page, err := h.service.List(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, page)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	entries, err := h.service.Export(r.Context(), filter)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	csvBytes, err := audit.WriteCSV(entries)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	filename := fmt.Sprintf("audit-%s.csv", h.now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if _, err := w.Write(csvBytes); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

func parseFilter(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	var f audit.Filter
	var err error
	if f.RoleID, err = optionalID(q.Get("roleId"), "roleId"); err != nil {
		return audit.Filter{}, err
	}
	if f.PageID, err = optionalID(q.Get("pageId"), "pageId"); err != nil {
		return audit.Filter{}, err
	}
	if raw := strings.TrimSpace(q.Get("action")); raw != "" {
		f.Action = audit.Action(raw)
		if !f.Action.Valid() {
			return audit.Filter{}, fmt.Errorf("%w: unknown action %q", shared.ErrValidation, raw)
		}
	}
	if f.Limit, err = optionalInt(q.Get("limit"), "limit"); err != nil {
		return audit.Filter{}, err
	}
	if f.Offset, err = optionalInt(q.Get("offset"), "offset"); err != nil {
		return audit.Filter{}, err
	}
	return f, nil
}

func optionalID(raw, field string) (*int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("%w: %s must be a positive integer", shared.ErrValidation, field)
	}
	return &id, nil
}

func optionalInt(raw, field string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", shared.ErrValidation, field)
	}
	return n, nil
}
