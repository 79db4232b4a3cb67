package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/observa-edu/observa/internal/access"
	audithttp "github.com/observa-edu/observa/internal/audit/http"
	"github.com/observa-edu/observa/internal/auth"
	"github.com/observa-edu/observa/internal/hierarchy"
	"github.com/observa-edu/observa/internal/menu"
	"github.com/observa-edu/observa/internal/observability"
	"github.com/observa-edu/observa/internal/pages"
	"github.com/observa-edu/observa/internal/permissions"
	"github.com/observa-edu/observa/internal/platform/httpx"
	"github.com/observa-edu/observa/internal/roles"
	"github.com/observa-edu/observa/internal/users"
	"github.com/observa-edu/observa/jobs"
)

// APIPrefix is where every JSON endpoint is mounted.
const APIPrefix = "/api"

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Access  access.Middleware
	Metrics *observability.Metrics

	AuthHandler        *auth.Handler
	PermissionsHandler *permissions.Handler
	HierarchyHandler   *hierarchy.Handler
	MenuHandler        *menu.Handler
	AuditHandler       *audithttp.Handler
	RolesHandler       *roles.Handler
	PagesHandler       *pages.Handler
	UsersHandler       *users.Handler
	JobHandler         *jobs.Handler

	// Ready reports backing store health for /healthz. Nil means always ready.
	Ready func(r *http.Request) error
}

// NewRouter constructs the chi.Router with Observa defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}
	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if params.Ready != nil {
			if err := params.Ready(req); err != nil {
				if params.Logger != nil {
					params.Logger.Warn("readiness check failed", slog.Any("error", err))
				}
				httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route(APIPrefix, func(api chi.Router) {
		if params.AuthHandler != nil {
			params.AuthHandler.MountPublic(api)
		}

		api.Group(func(r chi.Router) {
			r.Use(params.Access.RequireSession)
			if params.AuthHandler != nil {
				params.AuthHandler.MountRoutes(r)
			}
			if params.PermissionsHandler != nil {
				params.PermissionsHandler.MountRoutes(r)
			}
			if params.HierarchyHandler != nil {
				params.HierarchyHandler.MountRoutes(r)
			}
			if params.MenuHandler != nil {
				params.MenuHandler.MountRoutes(r)
			}
			if params.AuditHandler != nil {
				params.AuditHandler.MountRoutes(r)
			}
			if params.RolesHandler != nil {
				params.RolesHandler.MountRoutes(r)
			}
			if params.PagesHandler != nil {
				params.PagesHandler.MountRoutes(r)
			}
			if params.UsersHandler != nil {
				params.UsersHandler.MountRoutes(r)
			}
			if params.JobHandler != nil {
				r.Group(func(r chi.Router) {
					r.Use(params.Access.RequireAdmin)
					params.JobHandler.MountRoutes(r)
				})
			}
		})

		if params.MenuHandler != nil {
			api.Group(func(r chi.Router) {
				r.Use(params.Access.RequireParticipant)
				params.MenuHandler.MountParticipantRoutes(r)
			})
		}

		api.NotFound(func(w http.ResponseWriter, _ *http.Request) {
			httpx.Problem(w, http.StatusNotFound, "not_found", "Not Found", "no such endpoint")
		})
	})

	return r
}
