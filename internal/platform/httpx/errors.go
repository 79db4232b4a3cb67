package httpx

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/observa-edu/observa/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Unauthenticated kinds are checked before Forbidden so a caller can always tell
// "log in again" apart from "you lack permission".
func RespondError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, shared.ErrSessionExpired):
		Problem(w, http.StatusUnauthorized, "session_expired", "Unauthorized", "session expired")
	case errors.Is(err, shared.ErrAccountInactive):
		Problem(w, http.StatusUnauthorized, "account_inactive", "Unauthorized", "account inactive")
	case errors.Is(err, shared.ErrUnauthenticated), errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "unauthenticated", "Unauthorized", "authentication required")
	case errors.Is(err, shared.ErrForbidden), errors.Is(err, shared.ErrCSRFTokenMissing), errors.Is(err, shared.ErrCSRFTokenMismatch):
		Problem(w, http.StatusForbidden, "forbidden", "Forbidden", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "not_found", "Not Found", err.Error())
	case errors.Is(err, shared.ErrConflict):
		Problem(w, http.StatusConflict, "conflict", "Conflict", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "validation_error", "Validation Failed", err.Error())
	default:
		if logger != nil {
			logger.Error("internal error", slog.Any("error", err))
		}
		Problem(w, http.StatusInternalServerError, "internal_error", "Internal Error", "")
	}
}
