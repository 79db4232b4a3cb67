// Package session resolves opaque session tokens to the user they were issued for.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/observa-edu/observa/internal/shared"
)

// ErrNotFound is returned when a token does not resolve to a stored session.
var ErrNotFound = errors.New("session not found")

// Record is what a token resolves to.
type Record struct {
	Token       string
	UserID      int64
	Role        string
	DisplayName string
	Active      bool
	ExpiresAt   time.Time
}

// Expired reports whether the record expiry is not after now.
func (r Record) Expired(now time.Time) bool {
	return !r.ExpiresAt.After(now)
}

// Store resolves and issues session tokens.
//
// Tokens are single-value and last-write-wins: Issue for a user invalidates any token
// previously issued to that user, so a user has at most one resolvable token.
type Store interface {
	Lookup(ctx context.Context, token string) (Record, error)
	Issue(ctx context.Context, userID int64) (Record, error)
	Revoke(ctx context.Context, token string) error
}

// UserInfo is the account state a session record is joined with.
type UserInfo struct {
	Role        string
	DisplayName string
	Active      bool
}

// Directory loads account state for a session's user.
type Directory interface {
	SessionUser(ctx context.Context, userID int64) (UserInfo, error)
}

// RedisStore keeps tokens in Redis and reads role and active flag from the Directory
// on every lookup, so deactivation and role changes apply to live sessions.
type RedisStore struct {
	client *redis.Client
	dir    Directory
	ttl    time.Duration
	grace  time.Duration
	now    func() time.Time
}

type payload struct {
	UserID    int64     `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	IssuedAt  time.Time `json:"issued_at"`
}

// NewRedisStore constructs a RedisStore. Expired records are retained for grace so that
// lookups can report expiry instead of an unknown token.
func NewRedisStore(client *redis.Client, dir Directory, ttl, grace time.Duration) *RedisStore {
	return &RedisStore{client: client, dir: dir, ttl: ttl, grace: grace, now: time.Now}
}

// Lookup resolves token to its record. Expiry is reported in the record, not as an error.
func (s *RedisStore) Lookup(ctx context.Context, token string) (Record, error) {
	if token == "" {
		return Record{}, ErrNotFound
	}
	raw, err := s.client.Get(ctx, tokenKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("%w: session lookup: %v", shared.ErrStorageUnavailable, err)
	}
	var stored payload
	if err := json.Unmarshal(raw, &stored); err != nil {
		return Record{}, fmt.Errorf("decode session: %w", err)
	}
	info, err := s.dir.SessionUser(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return Record{}, ErrNotFound
		}
		return Record{}, err
	}
	return Record{
		Token:       token,
		UserID:      stored.UserID,
		Role:        info.Role,
		DisplayName: info.DisplayName,
		Active:      info.Active,
		ExpiresAt:   stored.ExpiresAt,
	}, nil
}

// Issue creates a new token for userID and deletes the token it replaces.
func (s *RedisStore) Issue(ctx context.Context, userID int64) (Record, error) {
	token := uuid.NewString()
	now := s.now()
	stored := payload{UserID: userID, ExpiresAt: now.Add(s.ttl), IssuedAt: now}
	data, err := json.Marshal(stored)
	if err != nil {
		return Record{}, err
	}
	keep := s.ttl + s.grace
	if err := s.client.Set(ctx, tokenKey(token), data, keep).Err(); err != nil {
		return Record{}, fmt.Errorf("%w: store session: %v", shared.ErrStorageUnavailable, err)
	}
	previous, err := s.client.SetArgs(ctx, userKey(userID), token, redis.SetArgs{Get: true, TTL: keep}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		_ = s.client.Del(ctx, tokenKey(token)).Err()
		return Record{}, fmt.Errorf("%w: bind session: %v", shared.ErrStorageUnavailable, err)
	}
	if previous != "" && previous != token {
		if err := s.client.Del(ctx, tokenKey(previous)).Err(); err != nil {
			return Record{}, fmt.Errorf("%w: revoke previous session: %v", shared.ErrStorageUnavailable, err)
		}
	}
	return Record{Token: token, UserID: userID, ExpiresAt: stored.ExpiresAt}, nil
}

// Revoke deletes token. Unknown tokens are ignored.
func (s *RedisStore) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	raw, err := s.client.GetDel(ctx, tokenKey(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: revoke session: %v", shared.ErrStorageUnavailable, err)
	}
	var stored payload
	if err := json.Unmarshal(raw, &stored); err != nil {
		return nil
	}
	current, err := s.client.Get(ctx, userKey(stored.UserID)).Result()
	if err == nil && current == token {
		return s.client.Del(ctx, userKey(stored.UserID)).Err()
	}
	return nil
}

// RevokeUser deletes whatever token is currently bound to userID.
func (s *RedisStore) RevokeUser(ctx context.Context, userID int64) error {
	token, err := s.client.GetDel(ctx, userKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: revoke user sessions: %v", shared.ErrStorageUnavailable, err)
	}
	if err := s.client.Del(ctx, tokenKey(token)).Err(); err != nil {
		return fmt.Errorf("%w: revoke user sessions: %v", shared.ErrStorageUnavailable, err)
	}
	return nil
}

func tokenKey(token string) string {
	return "session:" + token
}

func userKey(userID int64) string {
	return fmt.Sprintf("session:user:%d", userID)
}
