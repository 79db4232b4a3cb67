package access

import (
	"log/slog"
	"net/http"

	"github.com/observa-edu/observa/internal/platform/httpx"
	"github.com/observa-edu/observa/internal/session"
	"github.com/observa-edu/observa/internal/shared"
)

// ParticipantHeader carries the participant code for participant-tier requests.
const ParticipantHeader = "X-Participant-Code"

// Middleware wires access checks for HTTP handlers.
type Middleware struct {
	Facade     *Facade
	CSRF       *shared.CSRFManager
	CookieName string
	Logger     *slog.Logger
}

// RequireSession authenticates the request and stores the principal in context.
// Cookie-authenticated mutations must also carry a valid CSRF header.
func (m Middleware) RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, source := session.TokenFromRequest(r, m.CookieName)
		principal, err := m.Facade.Authenticate(r.Context(), token)
		if err != nil {
			httpx.RespondError(w, m.Logger, err)
			return
		}
		if source == session.SourceCookie && !safeMethod(r.Method) && m.CSRF != nil {
			if err := m.CSRF.VerifyToken(token, r.Header.Get(shared.CSRFHeader)); err != nil {
				httpx.RespondError(w, m.Logger, err)
				return
			}
		}
		principal.RemoteAddr = r.RemoteAddr
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
	})
}

// RequireParticipant admits participant-tier callers identified by ParticipantHeader.
func (m Middleware) RequireParticipant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := m.Facade.Participant(r.Header.Get(ParticipantHeader))
		if err != nil {
			httpx.RespondError(w, m.Logger, err)
			return
		}
		principal.RemoteAddr = r.RemoteAddr
		next.ServeHTTP(w, r.WithContext(shared.ContextWithPrincipal(r.Context(), principal)))
	})
}

// RequirePage ensures the principal may perform action on path. It must run after
// RequireSession or RequireParticipant.
func (m Middleware) RequirePage(path, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, ok := shared.PrincipalFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, m.Logger, shared.ErrUnauthenticated)
				return
			}
			if err := m.Facade.Authorize(r.Context(), principal, path, action); err != nil {
				httpx.RespondError(w, m.Logger, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin ensures the principal holds the admin role.
func (m Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, ok := shared.PrincipalFromContext(r.Context())
		if !ok {
			httpx.RespondError(w, m.Logger, shared.ErrUnauthenticated)
			return
		}
		if err := m.Facade.AuthorizeAdmin(principal); err != nil {
			httpx.RespondError(w, m.Logger, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func safeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}
