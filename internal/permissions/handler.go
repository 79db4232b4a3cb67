package permissions

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/observa-edu/observa/internal/platform/httpx"
	"github.com/observa-edu/observa/internal/shared"
)

// IdempotencyHeader carries the client-chosen key for retried upserts.
const IdempotencyHeader = "Idempotency-Key"

// Guard is the access middleware the handler mounts behind.
type Guard interface {
	RequireAdmin(next http.Handler) http.Handler
	RequirePage(path, action string) func(http.Handler) http.Handler
}

// MatrixService is the business contract used by the handler.
type MatrixService interface {
	Matrix(ctx context.Context) (Matrix, error)
	Set(ctx context.Context, actor shared.Principal, in SetInput) (SetResult, error)
	BulkSet(ctx context.Context, actor shared.Principal, inputs []CellInput) (BulkResult, error)
	Check(ctx context.Context, caller shared.Principal, userID int64, path, action string) (bool, error)
}

// Handler exposes the permission matrix over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   MatrixService
	guard     Guard
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service MatrixService, guard Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: guard, validator: httpx.NewValidator()}
}

// MountRoutes registers permission routes. The router must already require a session.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/permissions/check", h.handleCheck)
	r.With(h.guard.RequireAdmin).Get("/permissions/matrix", h.handleMatrix)
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequirePage(ManagePath, "edit"))
		r.Put("/permissions", h.handleSet)
		r.Put("/permissions/actions", h.handleSetAction)
		r.Put("/permissions/bulk", h.handleBulk)
	})
}

type setRequest struct {
	Role      string `json:"role" validate:"required"`
	PageID    int64  `json:"pageId" validate:"required,gt=0"`
	IsAllowed *bool  `json:"isAllowed" validate:"required"`
}

type setActionRequest struct {
	Role      string `json:"role" validate:"required"`
	PageID    int64  `json:"pageId" validate:"required,gt=0"`
	Action    string `json:"action" validate:"required,max=64"`
	IsAllowed *bool  `json:"isAllowed" validate:"required"`
}

type bulkRequest struct {
	Cells []bulkCell `json:"cells" validate:"required,min=1,max=500,dive"`
}

type bulkCell struct {
	RoleID    int64  `json:"roleId" validate:"required,gt=0"`
	PageID    int64  `json:"pageId" validate:"required,gt=0"`
	Action    string `json:"action" validate:"max=64"`
	IsAllowed *bool  `json:"isAllowed" validate:"required"`
}

func (h *Handler) handleMatrix(w http.ResponseWriter, r *http.Request) {
	matrix, err := h.service.Matrix(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, matrix)
}

func (h *Handler) handleSet(w http.ResponseWriter, r *http.Request) {
	var req setRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	h.set(w, r, SetInput{Role: req.Role, PageID: req.PageID, IsAllowed: *req.IsAllowed})
}

func (h *Handler) handleSetAction(w http.ResponseWriter, r *http.Request) {
	var req setActionRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	h.set(w, r, SetInput{Role: req.Role, PageID: req.PageID, Action: req.Action, IsAllowed: *req.IsAllowed})
}

func (h *Handler) set(w http.ResponseWriter, r *http.Request, in SetInput) {
	actor, _ := shared.PrincipalFromContext(r.Context())
	in.IdempotencyKey = strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	result, err := h.service.Set(r.Context(), actor, in)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleBulk(w http.ResponseWriter, r *http.Request) {
	var req bulkRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	inputs := make([]CellInput, 0, len(req.Cells))
	for _, c := range req.Cells {
		inputs = append(inputs, CellInput{RoleID: c.RoleID, PageID: c.PageID, Action: c.Action, Allowed: *c.IsAllowed})
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	result, err := h.service.BulkSet(r.Context(), actor, inputs)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleCheck(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	path := strings.TrimSpace(query.Get("pagePath"))
	if path == "" {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "Validation Failed", "pagePath is required")
		return
	}
	userID, err := optionalID(query.Get("userId"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "Validation Failed", "userId must be a positive integer")
		return
	}
	caller, _ := shared.PrincipalFromContext(r.Context())
	allowed, err := h.service.Check(r.Context(), caller, userID, path, query.Get("action"))
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]bool{"hasAccess": allowed})
}

func optionalID(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, strconv.ErrSyntax
	}
	return id, nil
}
