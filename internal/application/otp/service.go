// Package otp implements one-time passcode issuance and verification.
//
// Invariant: at most one live code exists per (identifier, purpose) pair.
// Codes are consumed on successful verification, deleted when found expired,
// and superseded by any newer request for the same key. Expired records are
// swept lazily at the start of each operation; there is no background timer.
package otp

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/otp-auth-api/internal/domain"
	"github.com/otp-auth-api/internal/pkg/identifier"
)

// debugBypassCode is accepted for non-email identifiers when debug mode is
// enabled. Test/staging escape hatch only; the flag must stay off in
// production and this path is outside any security guarantees.
const debugBypassCode = "123456"

// Repository is the persistence surface the OTP engine needs.
type Repository interface {
	Put(ctx context.Context, o *domain.OtpCode) error
	Get(ctx context.Context, identifier, purpose string) (*domain.OtpCode, error)
	Delete(ctx context.Context, identifier, purpose string) error
	DeleteExpired(ctx context.Context, now time.Time) error
}

type Service interface {
	// Request issues a fresh code for (identifier, purpose), superseding any
	// live one. It fails only on store unavailability.
	Request(ctx context.Context, rawIdentifier, purpose string) (*domain.OtpCode, error)
	// Verify reports whether code matches the live record. A wrong guess does
	// not consume the stored code; a right one does.
	Verify(ctx context.Context, rawIdentifier, purpose, code string) (bool, error)
}

type Config struct {
	CodeLength int
	TTL        time.Duration
	Debug      bool
}

type service struct {
	repo Repository
	cfg  Config
}

func NewService(repo Repository, cfg Config) Service {
	return &service{repo: repo, cfg: cfg}
}

func (s *service) Request(ctx context.Context, rawIdentifier, purpose string) (*domain.OtpCode, error) {
	if !domain.ValidPurpose(purpose) {
		return nil, fmt.Errorf("unknown otp purpose %q: %w", purpose, domain.ErrBadRequest)
	}
	now := time.Now().UTC()
	s.sweep(ctx, now)

	code, err := s.generateCode()
	if err != nil {
		return nil, err
	}
	record := &domain.OtpCode{
		Identifier: identifier.Normalize(rawIdentifier),
		Purpose:    purpose,
		Code:       code,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.cfg.TTL).Unix(),
	}
	// Put overwrites the (identifier, purpose) item, so any previous code
	// stops verifying the moment this one is stored.
	if err := s.repo.Put(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *service) Verify(ctx context.Context, rawIdentifier, purpose, code string) (bool, error) {
	now := time.Now().UTC()
	normalized := identifier.Normalize(rawIdentifier)
	cleanCode := strings.TrimSpace(code)

	if s.cfg.Debug && cleanCode == debugBypassCode && !identifier.IsEmail(normalized) {
		s.sweep(ctx, now)
		if err := s.repo.Delete(ctx, normalized, purpose); err != nil {
			slog.Warn("failed to clear otp record on debug bypass", "err", err)
		}
		return true, nil
	}

	s.sweep(ctx, now)
	record, err := s.repo.Get(ctx, normalized, purpose)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	if record.Expired(now) {
		if err := s.repo.Delete(ctx, normalized, purpose); err != nil {
			slog.Warn("failed to delete expired otp record", "err", err)
		}
		return false, nil
	}
	if subtle.ConstantTimeCompare([]byte(record.Code), []byte(cleanCode)) != 1 {
		// Record retained: a wrong guess must not consume the valid code.
		return false, nil
	}
	// One-time use: the consume must land before reporting success.
	if err := s.repo.Delete(ctx, normalized, purpose); err != nil {
		return false, err
	}
	return true, nil
}

// sweep lazily clears globally expired records. Failures are logged, not
// fatal; the per-record expiry check still guards correctness.
func (s *service) sweep(ctx context.Context, now time.Time) {
	if err := s.repo.DeleteExpired(ctx, now); err != nil {
		slog.Warn("otp expiry sweep failed", "err", err)
	}
}

// generateCode draws uniformly from [0, 10^length) and zero-pads.
func (s *service) generateCode() (string, error) {
	bound := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(s.cfg.CodeLength)), nil)
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return "", fmt.Errorf("generate otp code: %w", err)
	}
	return fmt.Sprintf("%0*d", s.cfg.CodeLength, n), nil
}
