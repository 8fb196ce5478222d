// Package session manages server-side login sessions. A session binds an
// opaque random token to a user id; the same token value is what signed
// refresh tokens embed as their session id. Sessions are revoked in place
// (record retained) and physically deleted lazily once expired.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/otp-auth-api/internal/domain"
)

// tokenBytes gives 256 bits of entropy, URL-safe encoded.
const tokenBytes = 32

// Repository is the persistence surface the session engine needs.
type Repository interface {
	Put(ctx context.Context, s *domain.Session) error
	Get(ctx context.Context, token string) (*domain.Session, error)
	Revoke(ctx context.Context, token string, at time.Time) (bool, error)
	RevokeByUser(ctx context.Context, userID int64, at time.Time) error
	DeleteExpired(ctx context.Context, now time.Time) error
}

type Service interface {
	// Create opens a session for userID and returns its opaque token.
	Create(ctx context.Context, userID int64) (string, error)
	// Revoke stamps the session revoked and reports whether a live session
	// was actually revoked (false for unknown or already-revoked tokens).
	Revoke(ctx context.Context, token string) (bool, error)
	// RevokeAll revokes every live session owned by userID.
	RevokeAll(ctx context.Context, userID int64) error
	// Resolve returns the owning user id for a live session. Unknown, revoked
	// and expired tokens are indistinguishable: all yield ErrUnauthorized.
	Resolve(ctx context.Context, token string) (int64, error)
}

type service struct {
	repo Repository
	ttl  time.Duration
}

func NewService(repo Repository, ttl time.Duration) Service {
	return &service{repo: repo, ttl: ttl}
}

func (s *service) Create(ctx context.Context, userID int64) (string, error) {
	now := time.Now().UTC()
	s.sweep(ctx, now)

	token, err := newToken()
	if err != nil {
		return "", err
	}
	sess := &domain.Session{
		Token:     token,
		UserID:    userID,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl).Unix(),
	}
	if err := s.repo.Put(ctx, sess); err != nil {
		return "", err
	}
	return token, nil
}

func (s *service) Revoke(ctx context.Context, token string) (bool, error) {
	now := time.Now().UTC()
	s.sweep(ctx, now)
	return s.repo.Revoke(ctx, token, now)
}

func (s *service) RevokeAll(ctx context.Context, userID int64) error {
	now := time.Now().UTC()
	s.sweep(ctx, now)
	return s.repo.RevokeByUser(ctx, userID, now)
}

func (s *service) Resolve(ctx context.Context, token string) (int64, error) {
	now := time.Now().UTC()
	s.sweep(ctx, now)

	sess, err := s.repo.Get(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return 0, fmt.Errorf("session not found: %w", domain.ErrUnauthorized)
		}
		return 0, err
	}
	if !sess.Valid(now) {
		return 0, fmt.Errorf("session revoked or expired: %w", domain.ErrUnauthorized)
	}
	return sess.UserID, nil
}

func (s *service) sweep(ctx context.Context, now time.Time) {
	if err := s.repo.DeleteExpired(ctx, now); err != nil {
		slog.Warn("session expiry sweep failed", "err", err)
	}
}

func newToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
