package users

import (
	"context"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

// SessionRevoker ends live sessions of a deactivated user.
type SessionRevoker interface {
	RevokeUser(ctx context.Context, userID int64) error
}

// Service handles user business logic.
type Service struct {
	repo     RepositoryPort
	sessions SessionRevoker
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, sessions SessionRevoker) *Service {
	return &Service{repo: repo, sessions: sessions}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []User{}
	}
	return users, nil
}

// GetUser returns one user.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// SetActive activates or deactivates an account. Deactivating also revokes the user's session.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) (User, error) {
	if err := s.repo.SetActive(ctx, id, active); err != nil {
		return User{}, err
	}
	if !active && s.sessions != nil {
		if err := s.sessions.RevokeUser(ctx, id); err != nil {
			return User{}, err
		}
	}
	return s.repo.GetUser(ctx, id)
}
