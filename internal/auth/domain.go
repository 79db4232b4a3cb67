// Package auth verifies credentials and issues the opaque session tokens the access layer
// validates.
package auth

import "time"

// Credentials is the stored login material of an account.
type Credentials struct {
	UserID       int64
	PasswordHash string
	IsActive     bool
}

// LoginInput is a login attempt.
type LoginInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginResult is returned after a successful login.
type LoginResult struct {
	Token     string    `json:"token"`
	UserID    int64     `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	CSRFToken string    `json:"csrfToken"`
}
