package domain

import "time"

// User roles.
const (
	RoleAdmin         = "admin"
	RoleOnboardedUser = "onboarded_user"
)

// PermissionFlags are the coarse capability toggles selected at onboarding.
type PermissionFlags struct {
	SalesMarketing    bool `json:"sales_marketing" dynamodbav:"sales_marketing"`
	ProjectManagement bool `json:"project_management" dynamodbav:"project_management"`
	AccessOtherUsers  bool `json:"access_other_users" dynamodbav:"access_other_users"`
	ViewAdminPanel    bool `json:"view_admin_panel" dynamodbav:"view_admin_panel"`
}

// Any reports whether at least one flag is set.
func (p PermissionFlags) Any() bool {
	return p.SalesMarketing || p.ProjectManagement || p.AccessOtherUsers || p.ViewAdminPanel
}

type User struct {
	UserID        int64            `json:"id" dynamodbav:"user_id"`
	Email         *string          `json:"email,omitempty" dynamodbav:"email"`
	FirstName     *string          `json:"first_name,omitempty" dynamodbav:"first_name"`
	LastName      *string          `json:"last_name,omitempty" dynamodbav:"last_name"`
	CountryCode   *string          `json:"country_code,omitempty" dynamodbav:"country_code"`
	PhoneNumber   *string          `json:"phone_number,omitempty" dynamodbav:"phone_number"`
	Address       *string          `json:"address,omitempty" dynamodbav:"address"`
	JobTitle      *string          `json:"job_title,omitempty" dynamodbav:"job_title"`
	Permissions   *PermissionFlags `json:"permissions,omitempty" dynamodbav:"permissions"`
	Role          string           `json:"role" dynamodbav:"role"`
	PhoneProvided bool             `json:"phone_provided" dynamodbav:"phone_provided"`
	PhoneVerified bool             `json:"phone_verified" dynamodbav:"phone_verified"`
	CreatedAt     time.Time        `json:"created_at" dynamodbav:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at" dynamodbav:"updated_at"`
	OnboardedAt   *time.Time       `json:"onboarded_at,omitempty" dynamodbav:"onboarded_at"`
}

// Onboarded reports whether the profile satisfies the onboarding gate:
// a first name, an address, and at least one permission flag.
func (u *User) Onboarded() bool {
	return strPresent(u.FirstName) && strPresent(u.Address) &&
		u.Permissions != nil && u.Permissions.Any()
}

func strPresent(s *string) bool {
	return s != nil && *s != ""
}

type CreateUserRequest struct {
	FirstName   string          `json:"first_name" validate:"required,min=1,max=50"`
	LastName    *string         `json:"last_name" validate:"omitempty,max=50"`
	PhoneNumber string          `json:"phone_number" validate:"required,min=10,max=32"`
	CountryCode *string         `json:"country_code"`
	Address     string          `json:"address" validate:"required,min=1,max=255"`
	JobTitle    *string         `json:"job_title" validate:"omitempty,max=100"`
	Permissions PermissionFlags `json:"permissions"`
	Email       *string         `json:"email" validate:"omitempty,email"`
	OtpCode     *string         `json:"otp_code"`
}

type UpdateUserRequest struct {
	FirstName   string          `json:"first_name" validate:"required,min=1,max=50"`
	LastName    *string         `json:"last_name" validate:"omitempty,max=50"`
	PhoneNumber *string         `json:"phone_number" validate:"omitempty,min=10,max=32"`
	CountryCode *string         `json:"country_code"`
	Address     *string         `json:"address" validate:"omitempty,max=255"`
	JobTitle    *string         `json:"job_title" validate:"omitempty,max=100"`
	Permissions PermissionFlags `json:"permissions"`
	Email       *string         `json:"email" validate:"omitempty,email"`
}
