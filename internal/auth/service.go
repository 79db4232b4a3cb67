package auth

import (
	"context"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/observa-edu/observa/internal/platform/httpx"
	"github.com/observa-edu/observa/internal/session"
	"github.com/observa-edu/observa/internal/shared"
)

// Service wraps authentication business rules.
type Service struct {
	verifier CredentialVerifier
	sessions session.Store
	csrf     *shared.CSRFManager
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService constructs a new Service.
func NewService(verifier CredentialVerifier, sessions session.Store, csrf *shared.CSRFManager, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{verifier: verifier, sessions: sessions, csrf: csrf, validate: httpx.NewValidator(), logger: logger}
}

// Login verifies credentials and issues a fresh session token. Any token previously
// issued to the same user stops resolving.
func (s *Service) Login(ctx context.Context, in LoginInput) (LoginResult, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := httpx.Validate(s.validate, in); err != nil {
		return LoginResult{}, err
	}
	creds, err := s.verifier.Verify(ctx, in.Email, in.Password)
	if err != nil {
		return LoginResult{}, err
	}
	if !creds.IsActive {
		return LoginResult{}, shared.ErrAccountInactive
	}
	rec, err := s.sessions.Issue(ctx, creds.UserID)
	if err != nil {
		return LoginResult{}, err
	}
	s.logger.Info("login", slog.Int64("user_id", creds.UserID))
	return LoginResult{
		Token:     rec.Token,
		UserID:    creds.UserID,
		ExpiresAt: rec.ExpiresAt,
		CSRFToken: s.csrf.Token(rec.Token),
	}, nil
}

// Logout revokes the token. Revoking an unknown token is not an error.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.sessions.Revoke(ctx, token)
}

// CSRFToken returns the CSRF token bound to a session token.
func (s *Service) CSRFToken(token string) string {
	return s.csrf.Token(token)
}
