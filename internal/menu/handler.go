package menu

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

// Guard is the access middleware the handler mounts behind.
type Guard interface {
	RequireAdmin(next http.Handler) http.Handler
}

// RoleResolver returns the role menu lookups for userID run under (0 means the caller).
type RoleResolver interface {
	RoleFor(ctx context.Context, caller shared.Principal, userID int64) (string, error)
}

// MenuComposer builds menus for a role.
type MenuComposer interface {
	Items(ctx context.Context, role string) ([]Item, error)
	Tree(ctx context.Context, role string) (Tree, error)
}

// Reorderer applies menu ordering.
type Reorderer interface {
	Reorder(ctx context.Context, actor shared.Principal, orders []PageOrder) (ReorderResult, error)
}

// Handler exposes menu endpoints.
type Handler struct {
	logger    *slog.Logger
	composer  MenuComposer
	reorder   Reorderer
	roles     RoleResolver
	guard     Guard
	validator *validator.Validate
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, composer MenuComposer, reorder Reorderer, roles RoleResolver, guard Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, composer: composer, reorder: reorder, roles: roles, guard: guard, validator: httpx.NewValidator()}
}

// MountRoutes registers staff menu routes. The router must already require a session.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/menu", h.handleTree)
	r.Get("/permissions/user-pages", h.handleUserPages)
	r.With(h.guard.RequireAdmin).Put("/menu-order", h.handleReorder)
}

// MountParticipantRoutes registers the participant menu. The router must already require
// a participant principal.
func (h *Handler) MountParticipantRoutes(r chi.Router) {
	r.Get("/participant/menu", h.handleTree)
}

func (h *Handler) handleTree(w http.ResponseWriter, r *http.Request) {
	caller, _ := shared.PrincipalFromContext(r.Context())
	role, err := h.roles.RoleFor(r.Context(), caller, 0)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	tree, err := h.composer.Tree(r.Context(), role)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tree)
}

func (h *Handler) handleUserPages(w http.ResponseWriter, r *http.Request) {
	var userID int64
	if raw := strings.TrimSpace(r.URL.Query().Get("userId")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			httpx.Problem(w, http.StatusBadRequest, "validation_error", "Validation Failed", "userId must be a positive integer")
			return
		}
		userID = id
	}
	caller, _ := shared.PrincipalFromContext(r.Context())
	role, err := h.roles.RoleFor(r.Context(), caller, userID)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	items, err := h.composer.Items(r.Context(), role)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"pages": items})
}

type reorderRequest struct {
	PageOrders []PageOrder `json:"pageOrders" validate:"required,min=1,dive"`
}

func (h *Handler) handleReorder(w http.ResponseWriter, r *http.Request) {
	var req reorderRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	result, err := h.reorder.Reorder(r.Context(), actor, req.PageOrders)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}
