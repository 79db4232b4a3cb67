package pages

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/observa-edu/observa/internal/platform/httpx"
	"github.com/observa-edu/observa/internal/shared"
)

// Guard is the access middleware the handler mounts behind.
type Guard interface {
	RequireAdmin(next http.Handler) http.Handler
}

// PageService is the business contract used by the handler.
type PageService interface {
	ListPages(ctx context.Context) ([]Page, error)
	CreatePage(ctx context.Context, actor shared.Principal, in CreateInput) (CreateResult, error)
}

// Handler manages page endpoints.
type Handler struct {
	logger    *slog.Logger
	service   PageService
	guard     Guard
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service PageService, guard Guard) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, guard: guard, validator: httpx.NewValidator()}
}

// MountRoutes registers page routes, admin only.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAdmin)
		r.Get("/pages", h.listPages)
		r.Post("/pages", h.createPage)
	})
}

func (h *Handler) listPages(w http.ResponseWriter, r *http.Request) {
	pages, err := h.service.ListPages(r.Context())
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"pages": pages})
}

func (h *Handler) createPage(w http.ResponseWriter, r *http.Request) {
	var in CreateInput
	if err := httpx.Bind(r, h.validator, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	actor, _ := shared.PrincipalFromContext(r.Context())
	result, err := h.service.CreatePage(r.Context(), actor, in)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}
