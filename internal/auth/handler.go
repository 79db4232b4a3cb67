package auth

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"

	"github.com/observa-edu/observa/internal/platform/httpx"
	"github.com/observa-edu/observa/internal/session"
	"github.com/observa-edu/observa/internal/shared"
)

// LoginService is the business contract used by the handler.
type LoginService interface {
	Login(ctx context.Context, in LoginInput) (LoginResult, error)
	Logout(ctx context.Context, token string) error
	CSRFToken(token string) string
}

// CookieConfig controls the session cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger     *slog.Logger
	service    LoginService
	cookie     CookieConfig
	loginLimit int
	validator  *validator.Validate
}

// NewHandler constructs a Handler instance. loginLimit caps login attempts per client IP
// per minute.
func NewHandler(logger *slog.Logger, service LoginService, cookie CookieConfig, loginLimit int) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if loginLimit <= 0 {
		loginLimit = 5
	}
	return &Handler{logger: logger, service: service, cookie: cookie, loginLimit: loginLimit, validator: httpx.NewValidator()}
}

// MountPublic registers the unauthenticated login route.
func (h *Handler) MountPublic(r chi.Router) {
	r.With(httprate.LimitByIP(h.loginLimit, time.Minute)).Post("/auth/login", h.handleLogin)
}

// MountRoutes registers session routes. The router must already require a session.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/auth/logout", h.handleLogout)
	r.Get("/auth/me", h.handleMe)
	r.Get("/auth/csrf", h.handleCSRF)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in LoginInput
	if err := httpx.DecodeJSON(r, &in); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	result, err := h.service.Login(r.Context(), in)
	if err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	session.SetCookie(w, h.cookie.Name, result.Token, result.ExpiresAt, h.cookie.Secure)
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	p, _ := shared.PrincipalFromContext(r.Context())
	if err := h.service.Logout(r.Context(), p.SessionToken); err != nil {
		httpx.RespondError(w, h.logger, err)
		return
	}
	session.ClearCookie(w, h.cookie.Name, h.cookie.Secure)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	p, _ := shared.PrincipalFromContext(r.Context())
	httpx.JSON(w, http.StatusOK, p)
}

func (h *Handler) handleCSRF(w http.ResponseWriter, r *http.Request) {
	p, _ := shared.PrincipalFromContext(r.Context())
	httpx.JSON(w, http.StatusOK, map[string]string{"csrfToken": h.service.CSRFToken(p.SessionToken)})
}
