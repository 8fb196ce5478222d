package user

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/otp-auth-api/internal/domain"
)

// --- mocks ---

type mockRepo struct{ mock.Mock }

func (m *mockRepo) NextID(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}
func (m *mockRepo) Put(ctx context.Context, u *domain.User) error {
	return m.Called(ctx, u).Error(0)
}
func (m *mockRepo) Get(ctx context.Context, userID int64) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockRepo) GetByPhone(ctx context.Context, phone string) (*domain.User, error) {
	args := m.Called(ctx, phone)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockRepo) Update(ctx context.Context, userID int64, updates map[string]interface{}) error {
	return m.Called(ctx, userID, updates).Error(0)
}
func (m *mockRepo) List(ctx context.Context) ([]domain.User, error) {
	args := m.Called(ctx)
	if us, _ := args.Get(0).([]domain.User); us != nil {
		return us, args.Error(1)
	}
	return nil, args.Error(1)
}

type mockOtpVerifier struct{ mock.Mock }

func (m *mockOtpVerifier) Verify(ctx context.Context, rawIdentifier, purpose, code string) (bool, error) {
	args := m.Called(ctx, rawIdentifier, purpose, code)
	return args.Bool(0), args.Error(1)
}

// --- helpers ---

func str(s string) *string { return &s }

func newSvc(repo *mockRepo, otp *mockOtpVerifier) Service {
	return NewService(repo, otp, Config{
		SeedEmail:     "admin@example.com",
		SeedFirstName: "Site",
		SeedLastName:  "Admin",
	})
}

func createReq() domain.CreateUserRequest {
	return domain.CreateUserRequest{
		FirstName:   "Alice",
		LastName:    str("Smith"),
		PhoneNumber: "5551234567",
		Address:     "1 Main St",
		Permissions: domain.PermissionFlags{SalesMarketing: true},
		OtpCode:     str("482913"),
	}
}

// --- EnsureForIdentifier ---

func TestEnsureForIdentifier_NewEmailUser(t *testing.T) {
	repo, otp := &mockRepo{}, &mockOtpVerifier{}
	repo.On("GetByEmail", mock.Anything, "alice@example.com").Return(nil, domain.ErrNotFound)
	repo.On("NextID", mock.Anything).Return(int64(7), nil)
	repo.On("Put", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)

	u, existed, err := newSvc(repo, otp).EnsureForIdentifier(context.Background(), "Alice@Example.com")

	require.NoError(t, err)
	assert.False(t, existed)
	assert.Equal(t, int64(7), u.UserID)
	assert.Equal(t, "alice@example.com", *u.Email)
	assert.Equal(t, domain.RoleOnboardedUser, u.Role)
	assert.Nil(t, u.OnboardedAt)
}

func TestEnsureForIdentifier_SeedEmailBecomesAdmin(t *testing.T) {
	repo, otp := &mockRepo{}, &mockOtpVerifier{}
	repo.On("GetByEmail", mock.Anything, "admin@example.com").Return(nil, domain.ErrNotFound)
	repo.On("NextID", mock.Anything).Return(int64(1), nil)
	repo.On("Put", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)

	u, _, err := newSvc(repo, otp).EnsureForIdentifier(context.Background(), "admin@example.com")

	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, u.Role)
	assert.Equal(t, "Site", *u.FirstName)
	assert.Equal(t, "Admin", *u.LastName)
}

func TestEnsureForIdentifier_ExistingEmailUser(t *testing.T) {
	repo, otp := &mockRepo{}, &mockOtpVerifier{}
	existing := &domain.User{UserID: 7, Email: str("alice@example.com"), Role: domain.RoleOnboardedUser}
	repo.On("GetByEmail", mock.Anything, "alice@example.com").Return(existing, nil)

	u, existed, err := newSvc(repo, otp).EnsureForIdentifier(context.Background(), "alice@example.com")

	require.NoError(t, err)
	assert.True(t, existed)
	assert.Equal(t, int64(7), u.UserID)
	repo.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestEnsureForIdentifier_NewPhoneUser(t *testing.T) {
	repo, otp := &mockRepo{}, &mockOtpVerifier{}
	repo.On("GetByPhone", mock.Anything, "5551234567").Return(nil, domain.ErrNotFound)
	repo.On("NextID", mock.Anything).Return(int64(3), nil)
	repo.On("Put", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)

	u, existed, err := newSvc(repo, otp).EnsureForIdentifier(context.Background(), "(555) 123-4567")

	require.NoError(t, err)
	assert.False(t, existed)
	assert.Equal(t, "5551234567", *u.PhoneNumber)
	assert.True(t, u.PhoneProvided)
	assert.True(t, u.PhoneVerified)
}

func TestEnsureForIdentifier_PhoneLoginMarksVerified(t *testing.T) {
	repo, otp := &mockRepo{}, &mockOtpVerifier{}
	existing := &domain.User{
		UserID:        7,
		PhoneNumber:   str("5551234567"),
		Role:          domain.RoleOnboardedUser,
		PhoneProvided: true,
	}
	repo.On("GetByPhone", mock.Anything, "5551234567").Return(existing, nil)
	repo.On("Update", mock.Anything, int64(7), mock.MatchedBy(func(m map[string]interface{}) bool {
		v, ok := m["phone_verified"].(bool)
		return ok && v
	})).Return(nil)

	u, existed, err := newSvc(repo, otp).EnsureForIdentifier(context.Background(), "5551234567")

	require.NoError(t, err)
	assert.True(t, existed)
	assert.True(t, u.PhoneVerified)
}

func TestEnsureForIdentifier_RejectsBadPhone(t *testing.T) {
	repo, otp := &mockRepo{}, &mockOtpVerifier{}
	svc := newSvc(repo, otp)

	for _, raw := range []string{"555123", "0555123456", "555123456789"} {
		_, _, err := svc.EnsureForIdentifier(context.Background(), raw)
		assert.ErrorIs(t, err, domain.ErrBadRequest, "identifier %q", raw)
	}
}

// --- Create ---

func TestCreate_OnboardsUser(t *testing.T) {
	repo, otp := &mockRepo{}, &mockOtpVerifier{}
	otp.On("Verify", mock.Anything, "5551234567", domain.PurposeOnboarding, "482913").Return(true, nil)
	repo.On("GetByPhone", mock.Anything, "5551234567").Return(nil, domain.ErrNotFound)
	repo.On("NextID", mock.Anything).Return(int64(9), nil)
	repo.On("Put", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)

	u, err := newSvc(repo, otp).Create(context.Background(), createReq())

	require.NoError(t, err)
	assert.Equal(t, "Alice", *u.FirstName)
	assert.True(t, u.PhoneVerified)
	require.NotNil(t, u.OnboardedAt, "first name + address + permission flag completes onboarding")
}

func TestCreate_WrongOTP(t *testing.T) {
	repo, otp := &mockRepo{}, &mockOtpVerifier{}
	otp.On("Verify", mock.Anything, "5551234567", domain.PurposeOnboarding, "482913").Return(false, nil)

	_, err := newSvc(repo, otp).Create(context.Background(), createReq())

	assert.ErrorIs(t, err, domain.ErrBadRequest)
	repo.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
}

func TestCreate_OTPRequiredWhenConfigured(t *testing.T) {
	repo, otp := &mockRepo{}, &mockOtpVerifier{}
	svc := NewService(repo, otp, Config{RequireOnboardingOTP: true})

	req := createReq()
	req.OtpCode = nil
	_, err := svc.Create(context.Background(), req)

	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestCreate_RequiresAPermission(t *testing.T) {
	repo, otp := &mockRepo{}, &mockOtpVerifier{}
	otp.On("Verify", mock.Anything, "5551234567", domain.PurposeOnboarding, "482913").Return(true, nil)

	req := createReq()
	req.Permissions = domain.PermissionFlags{}
	_, err := newSvc(repo, otp).Create(context.Background(), req)

	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestCreate_PhoneConflict(t *testing.T) {
	repo, otp := &mockRepo{}, &mockOtpVerifier{}
	otp.On("Verify", mock.Anything, "5551234567", domain.PurposeOnboarding, "482913").Return(true, nil)
	repo.On("GetByPhone", mock.Anything, "5551234567").
		Return(&domain.User{UserID: 3, PhoneNumber: str("5551234567")}, nil)

	_, err := newSvc(repo, otp).Create(context.Background(), createReq())

	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestCreate_EmailConflict(t *testing.T) {
	repo, otp := &mockRepo{}, &mockOtpVerifier{}
	otp.On("Verify", mock.Anything, "5551234567", domain.PurposeOnboarding, "482913").Return(true, nil)
	repo.On("GetByEmail", mock.Anything, "alice@example.com").
		Return(&domain.User{UserID: 3, Email: str("alice@example.com")}, nil)

	req := createReq()
	req.Email = str("Alice@Example.com")
	_, err := newSvc(repo, otp).Create(context.Background(), req)

	assert.ErrorIs(t, err, domain.ErrConflict)
}

// --- Update ---

func TestUpdate_PhoneChangeResetsVerification(t *testing.T) {
	repo, otp := &mockRepo{}, &mockOtpVerifier{}
	existing := &domain.User{
		UserID:        7,
		PhoneNumber:   str("5551234567"),
		PhoneProvided: true,
		PhoneVerified: true,
		Role:          domain.RoleOnboardedUser,
	}
	repo.On("Get", mock.Anything, int64(7)).Return(existing, nil)
	repo.On("GetByPhone", mock.Anything, "5559876543").Return(nil, domain.ErrNotFound)

	var saved *domain.User
	repo.On("Put", mock.Anything, mock.AnythingOfType("*domain.User")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*domain.User) }).
		Return(nil)

	_, err := newSvc(repo, otp).Update(context.Background(), 7, domain.UpdateUserRequest{
		FirstName:   "Alice",
		PhoneNumber: str("5559876543"),
		Address:     str("1 Main St"),
		Permissions: domain.PermissionFlags{SalesMarketing: true},
	})

	require.NoError(t, err)
	assert.Equal(t, "5559876543", *saved.PhoneNumber)
	assert.False(t, saved.PhoneVerified)
	assert.True(t, saved.PhoneProvided)
}

func TestUpdate_CompletingProfileSetsOnboardedAt(t *testing.T) {
	repo, otp := &mockRepo{}, &mockOtpVerifier{}
	existing := &domain.User{UserID: 7, PhoneNumber: str("5551234567"), Role: domain.RoleOnboardedUser}
	repo.On("Get", mock.Anything, int64(7)).Return(existing, nil)

	var saved *domain.User
	repo.On("Put", mock.Anything, mock.AnythingOfType("*domain.User")).
		Run(func(args mock.Arguments) { saved = args.Get(1).(*domain.User) }).
		Return(nil)

	_, err := newSvc(repo, otp).Update(context.Background(), 7, domain.UpdateUserRequest{
		FirstName:   "Alice",
		PhoneNumber: str("5551234567"),
		Address:     str("1 Main St"),
		Permissions: domain.PermissionFlags{ViewAdminPanel: true},
	})

	require.NoError(t, err)
	require.NotNil(t, saved.OnboardedAt)
}

// --- EnsureRoles ---

func TestEnsureRoles_PromotesSeedAdmin(t *testing.T) {
	repo, otp := &mockRepo{}, &mockOtpVerifier{}
	repo.On("List", mock.Anything).Return([]domain.User{
		{UserID: 1, Email: str("admin@example.com"), Role: domain.RoleOnboardedUser},
		{UserID: 2, Email: str("bob@example.com"), Role: domain.RoleOnboardedUser},
	}, nil)
	repo.On("Update", mock.Anything, int64(1), mock.MatchedBy(func(m map[string]interface{}) bool {
		return m["role"] == domain.RoleAdmin
	})).Return(nil)

	err := newSvc(repo, otp).EnsureRoles(context.Background())

	require.NoError(t, err)
	repo.AssertNumberOfCalls(t, "Update", 1)
}
