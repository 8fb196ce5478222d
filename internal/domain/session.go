package domain

import "time"

// Session binds an opaque random token to a user. The token doubles as the
// session id embedded in signed refresh tokens.
// PK: token. ExpiresAt is a Unix timestamp used as DynamoDB TTL.
type Session struct {
	Token     string     `json:"id" dynamodbav:"token"`
	UserID    int64      `json:"user_id" dynamodbav:"user_id"`
	CreatedAt time.Time  `json:"created" dynamodbav:"created_at"`
	ExpiresAt int64      `json:"expires_at" dynamodbav:"expires_at"` // TTL (Unix seconds)
	RevokedAt *time.Time `json:"revoked_at,omitempty" dynamodbav:"revoked_at"`
}

// Valid reports whether the session is usable: not revoked and not expired.
func (s *Session) Valid(now time.Time) bool {
	return s.RevokedAt == nil && s.ExpiresAt > now.Unix()
}
