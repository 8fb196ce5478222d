package auth

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/otp-auth-api/internal/domain"
	"github.com/otp-auth-api/internal/infrastructure/token"
)

// --- mocks ---

type mockOtp struct{ mock.Mock }

func (m *mockOtp) Request(ctx context.Context, rawIdentifier, purpose string) (*domain.OtpCode, error) {
	args := m.Called(ctx, rawIdentifier, purpose)
	if o, _ := args.Get(0).(*domain.OtpCode); o != nil {
		return o, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockOtp) Verify(ctx context.Context, rawIdentifier, purpose, code string) (bool, error) {
	args := m.Called(ctx, rawIdentifier, purpose, code)
	return args.Bool(0), args.Error(1)
}

type mockSessions struct{ mock.Mock }

func (m *mockSessions) Create(ctx context.Context, userID int64) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}
func (m *mockSessions) Revoke(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}
func (m *mockSessions) RevokeAll(ctx context.Context, userID int64) error {
	return m.Called(ctx, userID).Error(0)
}
func (m *mockSessions) Resolve(ctx context.Context, token string) (int64, error) {
	args := m.Called(ctx, token)
	return args.Get(0).(int64), args.Error(1)
}

type mockTokens struct{ mock.Mock }

func (m *mockTokens) IssueAccess(userID int64, sessionID string) (string, error) {
	args := m.Called(userID, sessionID)
	return args.String(0), args.Error(1)
}
func (m *mockTokens) IssueRefresh(userID int64, sessionID string) (string, error) {
	args := m.Called(userID, sessionID)
	return args.String(0), args.Error(1)
}
func (m *mockTokens) DecodeAccess(raw string) (*token.Data, error) {
	args := m.Called(raw)
	if d, _ := args.Get(0).(*token.Data); d != nil {
		return d, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockTokens) DecodeRefresh(raw string) (*token.Data, error) {
	args := m.Called(raw)
	if d, _ := args.Get(0).(*token.Data); d != nil {
		return d, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockTokens) AccessTTL() time.Duration  { return 15 * time.Minute }
func (m *mockTokens) RefreshTTL() time.Duration { return 30 * 24 * time.Hour }

type mockUsers struct{ mock.Mock }

func (m *mockUsers) EnsureForIdentifier(ctx context.Context, rawIdentifier string) (*domain.User, bool, error) {
	args := m.Called(ctx, rawIdentifier)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Bool(1), args.Error(2)
	}
	return nil, args.Bool(1), args.Error(2)
}

type fakeMailer struct {
	to, subject, body string
	err               error
}

func (f *fakeMailer) SendEmail(to, subject, body string) error {
	f.to, f.subject, f.body = to, subject, body
	return f.err
}

type fakeSMS struct {
	to, message string
	err         error
}

func (f *fakeSMS) SendSMS(_ context.Context, to, message string) error {
	f.to, f.message = to, message
	return f.err
}

// --- helpers ---

type testDeps struct {
	otp      *mockOtp
	sessions *mockSessions
	tokens   *mockTokens
	users    *mockUsers
	mailer   *fakeMailer
	sms      *fakeSMS
}

func newTestSvc(debug bool) (Service, *testDeps) {
	d := &testDeps{
		otp:      &mockOtp{},
		sessions: &mockSessions{},
		tokens:   &mockTokens{},
		users:    &mockUsers{},
		mailer:   &fakeMailer{},
		sms:      &fakeSMS{},
	}
	svc := NewService(ServiceDeps{
		OTP:                d.otp,
		Sessions:           d.sessions,
		Tokens:             d.tokens,
		Users:              d.users,
		Mailer:             d.mailer,
		SMSSender:          d.sms,
		OTPTTL:             5 * time.Minute,
		OTPDebug:           debug,
		DefaultCountryCode: "+1",
		EmailSubject:       "Your login code",
	})
	return svc, d
}

func otpRecord(identifier, purpose string) *domain.OtpCode {
	now := time.Now().UTC()
	return &domain.OtpCode{
		Identifier: identifier,
		Purpose:    purpose,
		Code:       "482913",
		CreatedAt:  now,
		ExpiresAt:  now.Add(5 * time.Minute).Unix(),
	}
}

// --- RequestOTP ---

func TestRequestOTP_EmailIdentifierGoesToMailer(t *testing.T) {
	svc, d := newTestSvc(false)
	d.otp.On("Request", mock.Anything, "alice@example.com", domain.PurposeLogin).
		Return(otpRecord("alice@example.com", domain.PurposeLogin), nil)

	issued, err := svc.RequestOTP(context.Background(), "alice@example.com", domain.PurposeLogin)

	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", d.mailer.to)
	assert.Equal(t, "Your login code", d.mailer.subject)
	assert.Contains(t, d.mailer.body, "482913")
	assert.Contains(t, d.mailer.body, "5 minute(s)")
	assert.Empty(t, d.sms.to)
	assert.Equal(t, 5*time.Minute, issued.ExpiresIn)
	assert.Empty(t, issued.Code)
}

func TestRequestOTP_PhoneIdentifierGoesToSMS(t *testing.T) {
	svc, d := newTestSvc(false)
	d.otp.On("Request", mock.Anything, "5551234567", domain.PurposeOnboarding).
		Return(otpRecord("5551234567", domain.PurposeOnboarding), nil)

	_, err := svc.RequestOTP(context.Background(), "5551234567", domain.PurposeOnboarding)

	require.NoError(t, err)
	assert.Equal(t, "+15551234567", d.sms.to)
	assert.Contains(t, d.sms.message, "482913")
	assert.Empty(t, d.mailer.to)
}

func TestRequestOTP_DebugEchoesCode(t *testing.T) {
	svc, d := newTestSvc(true)
	d.otp.On("Request", mock.Anything, "alice@example.com", domain.PurposeLogin).
		Return(otpRecord("alice@example.com", domain.PurposeLogin), nil)

	issued, err := svc.RequestOTP(context.Background(), "alice@example.com", domain.PurposeLogin)

	require.NoError(t, err)
	assert.Equal(t, "482913", issued.Code)
}

func TestRequestOTP_DeliveryFailureSurfaces(t *testing.T) {
	svc, d := newTestSvc(false)
	d.otp.On("Request", mock.Anything, "alice@example.com", domain.PurposeLogin).
		Return(otpRecord("alice@example.com", domain.PurposeLogin), nil)
	d.mailer.err = fmt.Errorf("smtp send failed: %w", domain.ErrDelivery)

	_, err := svc.RequestOTP(context.Background(), "alice@example.com", domain.PurposeLogin)

	assert.ErrorIs(t, err, domain.ErrDelivery)
}

func TestRequestOTP_NoSMSSenderIsDeliveryError(t *testing.T) {
	d := &testDeps{otp: &mockOtp{}, mailer: &fakeMailer{}}
	svc := NewService(ServiceDeps{
		OTP:                d.otp,
		Mailer:             d.mailer,
		SMSSender:          nil,
		OTPTTL:             5 * time.Minute,
		DefaultCountryCode: "+1",
		EmailSubject:       "Your login code",
	})
	d.otp.On("Request", mock.Anything, "2025550123", domain.PurposeLogin).
		Return(otpRecord("2025550123", domain.PurposeLogin), nil)

	_, err := svc.RequestOTP(context.Background(), "2025550123", domain.PurposeLogin)

	assert.ErrorIs(t, err, domain.ErrDelivery)
}

func TestRequestOTP_UnknownPurposePropagates(t *testing.T) {
	svc, d := newTestSvc(false)
	d.otp.On("Request", mock.Anything, "alice@example.com", "password-reset").
		Return(nil, errors.New("unknown otp purpose: bad request"))

	_, err := svc.RequestOTP(context.Background(), "alice@example.com", "password-reset")

	require.Error(t, err)
	assert.Empty(t, d.mailer.to)
}

// --- VerifyOTP ---

func TestVerifyOTP_IssuesSessionAndTokens(t *testing.T) {
	svc, d := newTestSvc(false)
	u := &domain.User{UserID: 42, Role: domain.RoleOnboardedUser}

	d.otp.On("Verify", mock.Anything, "alice@example.com", domain.PurposeLogin, "482913").Return(true, nil)
	d.users.On("EnsureForIdentifier", mock.Anything, "alice@example.com").Return(u, true, nil)
	d.sessions.On("Create", mock.Anything, int64(42)).Return("session-token", nil)
	d.tokens.On("IssueAccess", int64(42), "session-token").Return("access-jwt", nil)
	d.tokens.On("IssueRefresh", int64(42), "session-token").Return("refresh-jwt", nil)

	result, err := svc.VerifyOTP(context.Background(), "alice@example.com", domain.PurposeLogin, "482913")

	require.NoError(t, err)
	assert.Equal(t, int64(42), result.User.UserID)
	assert.True(t, result.UserExisted)
	assert.Equal(t, "access-jwt", result.AccessToken)
	assert.Equal(t, "refresh-jwt", result.RefreshToken)
	assert.Equal(t, 15*time.Minute, result.AccessTTL)
	assert.Equal(t, 30*24*time.Hour, result.RefreshTTL)
}

func TestVerifyOTP_WrongCode(t *testing.T) {
	svc, d := newTestSvc(false)
	d.otp.On("Verify", mock.Anything, "alice@example.com", domain.PurposeLogin, "000000").Return(false, nil)

	_, err := svc.VerifyOTP(context.Background(), "alice@example.com", domain.PurposeLogin, "000000")

	assert.ErrorIs(t, err, domain.ErrBadRequest)
	d.sessions.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestVerifyOTP_TokenConfigErrorSurfaces(t *testing.T) {
	svc, d := newTestSvc(false)
	u := &domain.User{UserID: 42, Role: domain.RoleOnboardedUser}

	d.otp.On("Verify", mock.Anything, "alice@example.com", domain.PurposeLogin, "482913").Return(true, nil)
	d.users.On("EnsureForIdentifier", mock.Anything, "alice@example.com").Return(u, true, nil)
	d.sessions.On("Create", mock.Anything, int64(42)).Return("session-token", nil)
	d.tokens.On("IssueAccess", int64(42), "session-token").
		Return("", fmt.Errorf("JWT secret is not configured: %w", domain.ErrConfiguration))

	_, err := svc.VerifyOTP(context.Background(), "alice@example.com", domain.PurposeLogin, "482913")

	assert.ErrorIs(t, err, domain.ErrConfiguration)
}

// --- Refresh ---

func TestRefresh_IssuesNewAccessToken(t *testing.T) {
	svc, d := newTestSvc(false)
	d.tokens.On("DecodeRefresh", "refresh-jwt").Return(&token.Data{UserID: 42, SessionID: "session-token"}, nil)
	d.sessions.On("Resolve", mock.Anything, "session-token").Return(int64(42), nil)
	d.tokens.On("IssueAccess", int64(42), "session-token").Return("new-access", nil)

	result, err := svc.Refresh(context.Background(), "refresh-jwt")

	require.NoError(t, err)
	assert.Equal(t, "new-access", result.AccessToken)
	assert.Equal(t, 15*time.Minute, result.AccessTTL)
}

func TestRefresh_SessionUserMismatch(t *testing.T) {
	svc, d := newTestSvc(false)
	d.tokens.On("DecodeRefresh", "refresh-jwt").Return(&token.Data{UserID: 42, SessionID: "session-token"}, nil)
	d.sessions.On("Resolve", mock.Anything, "session-token").Return(int64(7), nil)

	_, err := svc.Refresh(context.Background(), "refresh-jwt")

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	d.tokens.AssertNotCalled(t, "IssueAccess", mock.Anything, mock.Anything)
}

func TestRefresh_DeadSession(t *testing.T) {
	svc, d := newTestSvc(false)
	d.tokens.On("DecodeRefresh", "refresh-jwt").Return(&token.Data{UserID: 42, SessionID: "session-token"}, nil)
	d.sessions.On("Resolve", mock.Anything, "session-token").
		Return(int64(0), fmt.Errorf("session is not valid: %w", domain.ErrUnauthorized))

	_, err := svc.Refresh(context.Background(), "refresh-jwt")

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

// --- Logout / Authorize ---

func TestLogout_RevokesSession(t *testing.T) {
	svc, d := newTestSvc(false)
	d.tokens.On("DecodeRefresh", "refresh-jwt").Return(&token.Data{UserID: 42, SessionID: "session-token"}, nil)
	d.sessions.On("Revoke", mock.Anything, "session-token").Return(true, nil)

	require.NoError(t, svc.Logout(context.Background(), "refresh-jwt"))
}

func TestLogout_AlreadyRevoked(t *testing.T) {
	svc, d := newTestSvc(false)
	d.tokens.On("DecodeRefresh", "refresh-jwt").Return(&token.Data{UserID: 42, SessionID: "session-token"}, nil)
	d.sessions.On("Revoke", mock.Anything, "session-token").Return(false, nil)

	err := svc.Logout(context.Background(), "refresh-jwt")

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestAuthorize_ReturnsUserID(t *testing.T) {
	svc, d := newTestSvc(false)
	d.tokens.On("DecodeAccess", "access-jwt").Return(&token.Data{UserID: 42, SessionID: "session-token"}, nil)
	d.sessions.On("Resolve", mock.Anything, "session-token").Return(int64(42), nil)

	userID, err := svc.Authorize(context.Background(), "access-jwt")

	require.NoError(t, err)
	assert.Equal(t, int64(42), userID)
}

func TestAuthorize_SessionUserMismatch(t *testing.T) {
	svc, d := newTestSvc(false)
	d.tokens.On("DecodeAccess", "access-jwt").Return(&token.Data{UserID: 42, SessionID: "session-token"}, nil)
	d.sessions.On("Resolve", mock.Anything, "session-token").Return(int64(7), nil)

	_, err := svc.Authorize(context.Background(), "access-jwt")

	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestLogoutAll_DelegatesToSessions(t *testing.T) {
	svc, d := newTestSvc(false)
	d.sessions.On("RevokeAll", mock.Anything, int64(42)).Return(nil)

	require.NoError(t, svc.LogoutAll(context.Background(), 42))
	d.sessions.AssertCalled(t, "RevokeAll", mock.Anything, int64(42))
}
