package domain

import "time"

// OTP purposes scope code uniqueness: one live code per (identifier, purpose).
const (
	PurposeLogin      = "login"
	PurposeOnboarding = "onboarding"
)

// ValidPurpose reports whether p is a known OTP purpose.
func ValidPurpose(p string) bool {
	return p == PurposeLogin || p == PurposeOnboarding
}

// OtpCode is a one-time passcode keyed by (identifier, purpose).
// PK: identifier, SK: purpose.
// ExpiresAt is a Unix timestamp used as DynamoDB TTL.
type OtpCode struct {
	Identifier string    `json:"identifier" dynamodbav:"identifier"`
	Purpose    string    `json:"purpose" dynamodbav:"purpose"`
	Code       string    `json:"-" dynamodbav:"code"`
	CreatedAt  time.Time `json:"created" dynamodbav:"created_at"`
	ExpiresAt  int64     `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
}

// Expired reports whether the code is past its TTL at the given instant.
func (o *OtpCode) Expired(now time.Time) bool {
	return o.ExpiresAt <= now.Unix()
}
