package roles

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/observa-edu/observa/internal/platform/httpx"
	"github.com/observa-edu/observa/internal/shared"
)

// Guard is the access middleware the handler mounts behind.
type Guard interface {
	RequireAdmin(next http.Handler) http.Handler
}

// RoleService is the business contract used by the handler.
type RoleService interface {
	ListRoles(ctx context.Context) ([]Role, error)
	CreateRole(ctx context.Context, actor shared.Principal, in CreateInput) (Result, error)
	RenameRole(ctx context.Context, actor shared.Principal, id int64, in RenameInput) (Result, error)
	DeleteRole(ctx context.Context, actor shared.Principal, id int64) (Result, error)
}

// Handler manages role management endpoints.
type Handler struct {
	logger    *slog.Logger
	service   RoleService
	guard     Guard
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service RoleService, guard Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: guard, validator: httpx.NewValidator()}
}

// MountRoutes registers role routes. All of them are admin only.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAdmin)
		r.Get("/roles", h.listRoles)
		r.Post("/roles", h.createRole)
		r.Patch("/roles/{id}", h.renameRole)
		r.Delete("/roles/{id}", h.deleteRole)
	})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.Bind(r, h.validator, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	result, err := h.service.CreateRole(r.Context(), actor, in)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) renameRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	var in RenameInput
	if err := httpx.Bind(r, h.validator, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	result, err := h.service.RenameRole(r.Context(), actor, id, in)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	result, err := h.service.DeleteRole(r.Context(), actor, id)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) roleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "validation_error", "Validation Failed", "role id must be a positive integer")
		return 0, false
	}
	return id, true
}
