// Package user implements the profile collaborator: passwordless account
// provisioning keyed by email or phone, onboarding, and the seed-admin
// bootstrap. The onboarding gate is: first name, address, and at least one
// permission flag.
package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/otp-auth-api/internal/domain"
	"github.com/otp-auth-api/internal/pkg/identifier"
)

// Repository is the persistence surface the user service needs.
type Repository interface {
	NextID(ctx context.Context) (int64, error)
	Put(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID int64) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByPhone(ctx context.Context, phone string) (*domain.User, error)
	Update(ctx context.Context, userID int64, updates map[string]interface{}) error
	List(ctx context.Context) ([]domain.User, error)
}

// OtpVerifier gates onboarding phone numbers with a one-time code.
type OtpVerifier interface {
	Verify(ctx context.Context, rawIdentifier, purpose, code string) (bool, error)
}

type Config struct {
	SeedEmail            string
	SeedFirstName        string
	SeedLastName         string
	RequireOnboardingOTP bool
}

type Service interface {
	// EnsureForIdentifier returns the account owning the identifier, creating
	// a minimal one when none exists. The bool reports whether it existed.
	EnsureForIdentifier(ctx context.Context, rawIdentifier string) (*domain.User, bool, error)
	Create(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error)
	Update(ctx context.Context, userID int64, req domain.UpdateUserRequest) (*domain.User, error)
	Get(ctx context.Context, userID int64) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	// EnsureRoles re-derives roles and seed-profile fields across all users.
	// Startup-only maintenance sweep.
	EnsureRoles(ctx context.Context) error
}

type service struct {
	repo Repository
	otp  OtpVerifier
	cfg  Config
}

func NewService(repo Repository, otp OtpVerifier, cfg Config) Service {
	return &service{repo: repo, otp: otp, cfg: cfg}
}

func (s *service) EnsureForIdentifier(ctx context.Context, rawIdentifier string) (*domain.User, bool, error) {
	now := time.Now().UTC()

	if identifier.IsEmail(rawIdentifier) {
		email := identifier.Normalize(rawIdentifier)
		u, err := s.repo.GetByEmail(ctx, email)
		if err == nil {
			return s.refreshExisting(ctx, u, false)
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, false, err
		}
		u = &domain.User{
			Email:     &email,
			Role:      s.roleForEmail(&email),
			CreatedAt: now,
			UpdatedAt: now,
		}
		s.applySeedProfile(u)
		if err := s.insert(ctx, u); err != nil {
			return nil, false, err
		}
		return u, false, nil
	}

	phone, err := nationalPhone(rawIdentifier)
	if err != nil {
		return nil, false, err
	}
	u, err := s.repo.GetByPhone(ctx, phone)
	if err == nil {
		return s.refreshExisting(ctx, u, true)
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, false, err
	}
	u = &domain.User{
		PhoneNumber:   &phone,
		Role:          domain.RoleOnboardedUser,
		PhoneProvided: true,
		PhoneVerified: true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.insert(ctx, u); err != nil {
		return nil, false, err
	}
	return u, false, nil
}

// refreshExisting reconciles role, seed profile and phone bookkeeping on a
// found account. viaPhone marks the phone as verified; the caller just
// proved control of it with an OTP.
func (s *service) refreshExisting(ctx context.Context, u *domain.User, viaPhone bool) (*domain.User, bool, error) {
	updates := map[string]interface{}{}
	if role := s.roleForEmail(u.Email); u.Role != role {
		u.Role = role
		updates["role"] = role
	}
	if s.applySeedProfile(u) {
		updates["first_name"] = u.FirstName
		updates["last_name"] = u.LastName
	}
	if provided := u.PhoneNumber != nil && *u.PhoneNumber != ""; u.PhoneProvided != provided {
		u.PhoneProvided = provided
		updates["phone_provided"] = provided
	}
	if viaPhone && u.PhoneNumber != nil && !u.PhoneVerified {
		u.PhoneVerified = true
		updates["phone_verified"] = true
	}
	if len(updates) > 0 {
		if err := s.repo.Update(ctx, u.UserID, updates); err != nil {
			return nil, false, err
		}
	}
	return u, true, nil
}

func (s *service) Create(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	phone, err := nationalPhone(req.PhoneNumber)
	if err != nil {
		return nil, err
	}
	if req.OtpCode != nil && *req.OtpCode != "" {
		ok, err := s.otp.Verify(ctx, phone, domain.PurposeOnboarding, *req.OtpCode)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("invalid or expired OTP: %w", domain.ErrBadRequest)
		}
	} else if s.cfg.RequireOnboardingOTP {
		return nil, fmt.Errorf("OTP is required to create a user: %w", domain.ErrBadRequest)
	}
	if !req.Permissions.Any() {
		return nil, fmt.Errorf("at least one permission must be selected: %w", domain.ErrBadRequest)
	}

	var email *string
	if req.Email != nil && *req.Email != "" {
		e := identifier.Normalize(*req.Email)
		if _, err := s.repo.GetByEmail(ctx, e); err == nil {
			return nil, fmt.Errorf("email already in use: %w", domain.ErrConflict)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		email = &e
	}
	if _, err := s.repo.GetByPhone(ctx, phone); err == nil {
		return nil, fmt.Errorf("phone number already in use: %w", domain.ErrConflict)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	perms := req.Permissions
	u := &domain.User{
		Email:         email,
		FirstName:     cleanRequired(req.FirstName),
		LastName:      cleanOptional(req.LastName),
		CountryCode:   normalizedCountry(req.CountryCode),
		PhoneNumber:   &phone,
		Address:       cleanRequired(req.Address),
		JobTitle:      cleanOptional(req.JobTitle),
		Permissions:   &perms,
		Role:          s.roleForEmail(email),
		PhoneProvided: true,
		PhoneVerified: req.OtpCode != nil && *req.OtpCode != "",
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if u.Onboarded() {
		u.OnboardedAt = &now
	}
	if err := s.insert(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *service) Update(ctx context.Context, userID int64, req domain.UpdateUserRequest) (*domain.User, error) {
	u, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	if req.Email != nil && *req.Email != "" {
		email := identifier.Normalize(*req.Email)
		if u.Email == nil || *u.Email != email {
			if other, err := s.repo.GetByEmail(ctx, email); err == nil && other.UserID != userID {
				return nil, fmt.Errorf("email already in use: %w", domain.ErrConflict)
			} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return nil, err
			}
			u.Email = &email
			u.Role = s.roleForEmail(u.Email)
		}
	}

	if req.PhoneNumber != nil && *req.PhoneNumber != "" {
		phone, err := nationalPhone(*req.PhoneNumber)
		if err != nil {
			return nil, err
		}
		if u.PhoneNumber == nil || *u.PhoneNumber != phone {
			if other, err := s.repo.GetByPhone(ctx, phone); err == nil && other.UserID != userID {
				return nil, fmt.Errorf("phone number already in use: %w", domain.ErrConflict)
			} else if err != nil && !errors.Is(err, domain.ErrNotFound) {
				return nil, err
			}
			u.PhoneNumber = &phone
			u.PhoneVerified = false
		}
		u.CountryCode = normalizedCountry(req.CountryCode)
	} else {
		u.PhoneNumber = nil
		u.CountryCode = nil
		u.PhoneVerified = false
	}

	u.FirstName = cleanRequired(req.FirstName)
	u.LastName = cleanOptional(req.LastName)
	if req.Address != nil {
		u.Address = cleanOptional(req.Address)
	}
	u.JobTitle = cleanOptional(req.JobTitle)
	perms := req.Permissions
	u.Permissions = &perms
	u.PhoneProvided = u.PhoneNumber != nil && *u.PhoneNumber != ""
	if u.Role == "" {
		u.Role = s.roleForEmail(u.Email)
	}
	s.applySeedProfile(u)
	if u.Onboarded() && u.OnboardedAt == nil {
		u.OnboardedAt = &now
	}
	u.UpdatedAt = now

	if err := s.repo.Put(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

func (s *service) Get(ctx context.Context, userID int64) (*domain.User, error) {
	return s.repo.Get(ctx, userID)
}

func (s *service) List(ctx context.Context) ([]domain.User, error) {
	return s.repo.List(ctx)
}

func (s *service) EnsureRoles(ctx context.Context) error {
	users, err := s.repo.List(ctx)
	if err != nil {
		return err
	}
	for i := range users {
		u := &users[i]
		updates := map[string]interface{}{}
		if role := s.roleForEmail(u.Email); u.Role != role {
			u.Role = role
			updates["role"] = role
		}
		if s.applySeedProfile(u) {
			updates["first_name"] = u.FirstName
			updates["last_name"] = u.LastName
		}
		if provided := u.PhoneNumber != nil && *u.PhoneNumber != ""; u.PhoneProvided != provided {
			u.PhoneProvided = provided
			updates["phone_provided"] = provided
		}
		if len(updates) == 0 {
			continue
		}
		if err := s.repo.Update(ctx, u.UserID, updates); err != nil {
			return err
		}
	}
	return nil
}

func (s *service) insert(ctx context.Context, u *domain.User) error {
	id, err := s.repo.NextID(ctx)
	if err != nil {
		return err
	}
	u.UserID = id
	return s.repo.Put(ctx, u)
}

func (s *service) roleForEmail(email *string) string {
	if s.cfg.SeedEmail == "" || email == nil {
		return domain.RoleOnboardedUser
	}
	if strings.ToLower(strings.TrimSpace(*email)) == s.cfg.SeedEmail {
		return domain.RoleAdmin
	}
	return domain.RoleOnboardedUser
}

// applySeedProfile fills missing name fields on the seed-admin account from
// configuration. Reports whether anything changed.
func (s *service) applySeedProfile(u *domain.User) bool {
	if s.cfg.SeedEmail == "" || u.Email == nil {
		return false
	}
	if strings.ToLower(strings.TrimSpace(*u.Email)) != s.cfg.SeedEmail {
		return false
	}
	changed := false
	if s.cfg.SeedFirstName != "" && (u.FirstName == nil || *u.FirstName == "") {
		fn := s.cfg.SeedFirstName
		u.FirstName = &fn
		changed = true
	}
	if s.cfg.SeedLastName != "" && (u.LastName == nil || *u.LastName == "") {
		ln := s.cfg.SeedLastName
		u.LastName = &ln
		changed = true
	}
	return changed
}

// nationalPhone validates a 10-digit national number used as an account key.
func nationalPhone(raw string) (string, error) {
	digits := identifier.Digits(raw)
	if len(digits) != 10 {
		return "", fmt.Errorf("phone number must be 10 digits: %w", domain.ErrBadRequest)
	}
	if strings.HasPrefix(digits, "0") {
		return "", fmt.Errorf("phone number cannot start with 0: %w", domain.ErrBadRequest)
	}
	return digits, nil
}

func normalizedCountry(cc *string) *string {
	if cc == nil {
		return nil
	}
	n := identifier.NormalizeCountryCode(*cc)
	if n == "" {
		return nil
	}
	return &n
}

func cleanRequired(s string) *string {
	c := strings.TrimSpace(s)
	if c == "" {
		return nil
	}
	return &c
}

func cleanOptional(s *string) *string {
	if s == nil {
		return nil
	}
	c := strings.TrimSpace(*s)
	if c == "" {
		return nil
	}
	return &c
}
