// Package token signs and verifies the stateless access and refresh JWTs.
// It keeps no persistent state: a token is valid iff its signature, type and
// expiry check out. Whether the embedded session is still alive is the
// session engine's concern.
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/otp-auth-api/internal/config"
	"github.com/otp-auth-api/internal/domain"
	"github.com/otp-auth-api/internal/pkg/id"
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

// Claims holds the JWT payload fields. Access tokens carry the session token
// in "sid"; refresh tokens carry it in "jti" (RegisteredClaims.ID). Both
// reference the same session-engine value.
type Claims struct {
	Type      string `json:"type"`
	SessionID string `json:"sid,omitempty"`
	jwt.RegisteredClaims
}

// Data is a decoded, validated token payload.
type Data struct {
	UserID    int64
	SessionID string
}

// Provider signs and verifies HMAC JWTs with a shared secret.
type Provider struct {
	secret     []byte
	method     jwt.SigningMethod
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewProvider(cfg *config.Config) *Provider {
	return &Provider{
		secret:     []byte(cfg.JWTSecret),
		method:     jwt.GetSigningMethod(cfg.JWTAlgorithm),
		accessTTL:  time.Duration(cfg.AccessTokenExpireMinutes) * time.Minute,
		refreshTTL: time.Duration(cfg.RefreshTokenExpireDays) * 24 * time.Hour,
	}
}

// AccessTTL returns the configured access token lifetime.
func (p *Provider) AccessTTL() time.Duration { return p.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (p *Provider) RefreshTTL() time.Duration { return p.refreshTTL }

// IssueAccess signs a short-lived access token for userID bound to sessionID.
func (p *Provider) IssueAccess(userID int64, sessionID string) (string, error) {
	if err := p.checkConfig(); err != nil {
		return "", err
	}
	now := time.Now().UTC()
	claims := Claims{
		Type:      typeAccess,
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ID:        id.New(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.accessTTL)),
		},
	}
	return jwt.NewWithClaims(p.method, claims).SignedString(p.secret)
}

// IssueRefresh signs a long-lived refresh token. The session token rides in
// the jti claim.
func (p *Provider) IssueRefresh(userID int64, sessionID string) (string, error) {
	if err := p.checkConfig(); err != nil {
		return "", err
	}
	now := time.Now().UTC()
	claims := Claims{
		Type: typeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(p.refreshTTL)),
		},
	}
	return jwt.NewWithClaims(p.method, claims).SignedString(p.secret)
}

// DecodeAccess validates an access token and returns its payload.
func (p *Provider) DecodeAccess(tokenStr string) (*Data, error) {
	claims, err := p.decode(tokenStr, typeAccess)
	if err != nil {
		return nil, err
	}
	if claims.SessionID == "" {
		return nil, fmt.Errorf("access token is missing session id: %w", domain.ErrUnauthorized)
	}
	userID, err := parseSubject(claims)
	if err != nil {
		return nil, err
	}
	return &Data{UserID: userID, SessionID: claims.SessionID}, nil
}

// DecodeRefresh validates a refresh token and returns its payload.
func (p *Provider) DecodeRefresh(tokenStr string) (*Data, error) {
	claims, err := p.decode(tokenStr, typeRefresh)
	if err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, fmt.Errorf("refresh token is missing session id: %w", domain.ErrUnauthorized)
	}
	userID, err := parseSubject(claims)
	if err != nil {
		return nil, err
	}
	return &Data{UserID: userID, SessionID: claims.ID}, nil
}

// decode performs the shared validation steps. Every failure wraps
// domain.ErrUnauthorized so callers surface a single generic error class,
// while the wrapped message stays distinguishable for logging.
func (p *Provider) decode(tokenStr, expectedType string) (*Claims, error) {
	if tokenStr == "" {
		return nil, fmt.Errorf("token is missing: %w", domain.ErrUnauthorized)
	}
	if err := p.checkConfig(); err != nil {
		return nil, err
	}
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return p.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("token has expired: %w", domain.ErrUnauthorized)
		}
		return nil, fmt.Errorf("invalid token: %w", domain.ErrUnauthorized)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims: %w", domain.ErrUnauthorized)
	}
	if claims.Type != expectedType {
		return nil, fmt.Errorf("invalid token type: %w", domain.ErrUnauthorized)
	}
	return claims, nil
}

func (p *Provider) checkConfig() error {
	if len(p.secret) == 0 {
		return fmt.Errorf("JWT secret is not configured: %w", domain.ErrConfiguration)
	}
	if p.method == nil {
		return fmt.Errorf("unknown JWT signing algorithm: %w", domain.ErrConfiguration)
	}
	return nil
}

func parseSubject(claims *Claims) (int64, error) {
	if claims.Subject == "" {
		return 0, fmt.Errorf("token subject is missing: %w", domain.ErrUnauthorized)
	}
	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid token subject: %w", domain.ErrUnauthorized)
	}
	return userID, nil
}
