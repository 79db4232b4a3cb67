package auth

import (
	"context"
	"errors"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"

	"github.com/observa-edu/observa/internal/shared"
)

// CredentialVerifier checks an email/password pair and returns the account it belongs to.
type CredentialVerifier interface {
	Verify(ctx context.Context, email, password string) (Credentials, error)
}

// BcryptVerifier verifies bcrypt password hashes stored in the user table.
type BcryptVerifier struct {
	repo Repository
}

// NewBcryptVerifier constructs a verifier.
func NewBcryptVerifier(repo Repository) *BcryptVerifier {
	return &BcryptVerifier{repo: repo}
}

var (
	dummyOnce sync.Once
	dummyHash []byte
)

// Verify returns shared.ErrInvalidCredentials for an unknown email or a wrong password.
// Unknown emails still pay for one hash comparison.
func (v *BcryptVerifier) Verify(ctx context.Context, email, password string) (Credentials, error) {
	creds, err := v.repo.FindByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			dummyOnce.Do(func() {
				dummyHash, _ = bcrypt.GenerateFromPassword([]byte("observa-dummy-password"), bcrypt.DefaultCost)
			})
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return Credentials{}, shared.ErrInvalidCredentials
		}
		return Credentials{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(creds.PasswordHash), []byte(password)); err != nil {
		return Credentials{}, shared.ErrInvalidCredentials
	}
	return creds, nil
}

// HashPassword hashes a password for storage.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
