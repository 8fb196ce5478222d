// Package auth composes the OTP, session and token engines into the
// request-level flows: login (OTP verify → session create → token issue),
// refresh (token decode → session resolve), logout (session revoke) and
// authorize (the capability check behind every protected endpoint).
// It keeps no persisted state of its own.
package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/otp-auth-api/internal/domain"
	"github.com/otp-auth-api/internal/infrastructure/smtp"
	"github.com/otp-auth-api/internal/infrastructure/sns"
	"github.com/otp-auth-api/internal/infrastructure/token"
	"github.com/otp-auth-api/internal/pkg/identifier"
)

// OtpEngine is the slice of the OTP service the orchestrator uses.
type OtpEngine interface {
	Request(ctx context.Context, rawIdentifier, purpose string) (*domain.OtpCode, error)
	Verify(ctx context.Context, rawIdentifier, purpose, code string) (bool, error)
}

// SessionEngine is the slice of the session service the orchestrator uses.
type SessionEngine interface {
	Create(ctx context.Context, userID int64) (string, error)
	Revoke(ctx context.Context, token string) (bool, error)
	RevokeAll(ctx context.Context, userID int64) error
	Resolve(ctx context.Context, token string) (int64, error)
}

// TokenEngine signs and decodes the stateless access/refresh tokens.
type TokenEngine interface {
	IssueAccess(userID int64, sessionID string) (string, error)
	IssueRefresh(userID int64, sessionID string) (string, error)
	DecodeAccess(raw string) (*token.Data, error)
	DecodeRefresh(raw string) (*token.Data, error)
	AccessTTL() time.Duration
	RefreshTTL() time.Duration
}

// UserProvisioner resolves an identifier to its owning account.
type UserProvisioner interface {
	EnsureForIdentifier(ctx context.Context, rawIdentifier string) (*domain.User, bool, error)
}

type Service interface {
	RequestOTP(ctx context.Context, rawIdentifier, purpose string) (*OTPIssued, error)
	VerifyOTP(ctx context.Context, rawIdentifier, purpose, code string) (*LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, userID int64) error
	// Authorize validates an access token against the live session and
	// returns the authenticated user id.
	Authorize(ctx context.Context, accessToken string) (int64, error)
}

// OTPIssued reports a successful OTP request. Code is set only in debug mode.
type OTPIssued struct {
	ExpiresIn time.Duration
	Code      string
}

// LoginResult carries everything the login response needs.
type LoginResult struct {
	User         *domain.User
	UserExisted  bool
	AccessToken  string
	RefreshToken string
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
}

type RefreshResult struct {
	AccessToken string
	AccessTTL   time.Duration
}

// ServiceDeps wires the orchestrator's collaborators.
type ServiceDeps struct {
	OTP       OtpEngine
	Sessions  SessionEngine
	Tokens    TokenEngine
	Users     UserProvisioner
	Mailer    smtp.Mailer
	SMSSender sns.SMSSender

	OTPTTL             time.Duration
	OTPDebug           bool
	DefaultCountryCode string
	EmailSubject       string
}

type service struct {
	deps ServiceDeps
}

func NewService(deps ServiceDeps) Service {
	return &service{deps: deps}
}

func (s *service) RequestOTP(ctx context.Context, rawIdentifier, purpose string) (*OTPIssued, error) {
	record, err := s.deps.OTP.Request(ctx, rawIdentifier, purpose)
	if err != nil {
		return nil, err
	}

	if identifier.IsEmail(rawIdentifier) {
		to := strings.TrimSpace(rawIdentifier)
		body := otpEmailBody(record.Code, purpose, s.deps.OTPTTL)
		if err := s.deps.Mailer.SendEmail(to, s.deps.EmailSubject, body); err != nil {
			return nil, err
		}
	} else {
		to, err := identifier.E164(record.Identifier, s.deps.DefaultCountryCode)
		if err != nil {
			return nil, err
		}
		if s.deps.SMSSender == nil {
			return nil, fmt.Errorf("SMS transport unavailable: %w", domain.ErrDelivery)
		}
		body := otpSMSBody(record.Code, purpose, s.deps.OTPTTL)
		if err := s.deps.SMSSender.SendSMS(ctx, to, body); err != nil {
			return nil, err
		}
	}

	issued := &OTPIssued{ExpiresIn: s.deps.OTPTTL}
	if s.deps.OTPDebug {
		issued.Code = record.Code
	}
	return issued, nil
}

func (s *service) VerifyOTP(ctx context.Context, rawIdentifier, purpose, code string) (*LoginResult, error) {
	ok, err := s.deps.OTP.Verify(ctx, rawIdentifier, purpose, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("invalid or expired OTP: %w", domain.ErrBadRequest)
	}
	u, existed, err := s.deps.Users.EnsureForIdentifier(ctx, rawIdentifier)
	if err != nil {
		return nil, err
	}
	sessionToken, err := s.deps.Sessions.Create(ctx, u.UserID)
	if err != nil {
		return nil, err
	}
	accessToken, err := s.deps.Tokens.IssueAccess(u.UserID, sessionToken)
	if err != nil {
		return nil, err
	}
	refreshToken, err := s.deps.Tokens.IssueRefresh(u.UserID, sessionToken)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		User:         u,
		UserExisted:  existed,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		AccessTTL:    s.deps.Tokens.AccessTTL(),
		RefreshTTL:   s.deps.Tokens.RefreshTTL(),
	}, nil
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	data, err := s.deps.Tokens.DecodeRefresh(refreshToken)
	if err != nil {
		return nil, err
	}
	userID, err := s.deps.Sessions.Resolve(ctx, data.SessionID)
	if err != nil {
		return nil, err
	}
	if userID != data.UserID {
		return nil, fmt.Errorf("session user mismatch: %w", domain.ErrUnauthorized)
	}
	accessToken, err := s.deps.Tokens.IssueAccess(data.UserID, data.SessionID)
	if err != nil {
		return nil, err
	}
	return &RefreshResult{AccessToken: accessToken, AccessTTL: s.deps.Tokens.AccessTTL()}, nil
}

func (s *service) Logout(ctx context.Context, refreshToken string) error {
	data, err := s.deps.Tokens.DecodeRefresh(refreshToken)
	if err != nil {
		return err
	}
	revoked, err := s.deps.Sessions.Revoke(ctx, data.SessionID)
	if err != nil {
		return err
	}
	if !revoked {
		// Unknown or already-revoked session: the only validity signal a
		// logout caller gets.
		return fmt.Errorf("invalid session token: %w", domain.ErrUnauthorized)
	}
	return nil
}

func (s *service) LogoutAll(ctx context.Context, userID int64) error {
	return s.deps.Sessions.RevokeAll(ctx, userID)
}

func (s *service) Authorize(ctx context.Context, accessToken string) (int64, error) {
	data, err := s.deps.Tokens.DecodeAccess(accessToken)
	if err != nil {
		return 0, err
	}
	userID, err := s.deps.Sessions.Resolve(ctx, data.SessionID)
	if err != nil {
		return 0, err
	}
	if userID != data.UserID {
		return 0, fmt.Errorf("session user mismatch: %w", domain.ErrUnauthorized)
	}
	return userID, nil
}

func otpEmailBody(code, purpose string, ttl time.Duration) string {
	return fmt.Sprintf(
		"Your one-time code is %s.\n\nIt expires in %d minute(s).\nRequested for %s.\n\nIf you did not request this code, you can ignore this email.",
		code, ttlMinutes(ttl), purposeLabel(purpose),
	)
}

func otpSMSBody(code, purpose string, ttl time.Duration) string {
	return fmt.Sprintf(
		"Your one-time code is %s. It expires in %d minute(s). Requested for %s.",
		code, ttlMinutes(ttl), purposeLabel(purpose),
	)
}

func ttlMinutes(ttl time.Duration) int {
	m := int(ttl.Minutes())
	if m < 1 {
		return 1
	}
	return m
}

func purposeLabel(purpose string) string {
	if purpose == domain.PurposeOnboarding {
		return domain.PurposeOnboarding
	}
	return domain.PurposeLogin
}
