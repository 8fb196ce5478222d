// Package identifier normalizes the email/phone strings used as OTP and
// login keys. Normalization is idempotent: applying it twice yields the
// same value.
package identifier

import (
	"fmt"
	"strings"

	"github.com/otp-auth-api/internal/domain"
)

// IsEmail reports whether the raw identifier is email-shaped.
func IsEmail(raw string) bool {
	return strings.Contains(raw, "@")
}

// Normalize canonicalizes an identifier: emails are trimmed and lowercased,
// anything else is reduced to its digits.
func Normalize(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if strings.Contains(cleaned, "@") {
		return strings.ToLower(cleaned)
	}
	return Digits(cleaned)
}

// Digits strips every non-digit rune.
func Digits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeCountryCode reduces a country code to "+<digits>", or "" when no
// digits remain.
func NormalizeCountryCode(cc string) string {
	d := Digits(cc)
	if d == "" {
		return ""
	}
	return "+" + d
}

// E164 converts a phone number to +<digits> form. Ten-digit national numbers
// get defaultCountryCode prepended; the result must be 10-15 digits.
func E164(phone, defaultCountryCode string) (string, error) {
	digits := Digits(strings.TrimSpace(phone))
	if digits == "" {
		return "", fmt.Errorf("phone number is missing: %w", domain.ErrBadRequest)
	}
	if len(digits) == 10 {
		cc := Digits(defaultCountryCode)
		if cc == "" {
			return "", fmt.Errorf("default country code is not configured: %w", domain.ErrConfiguration)
		}
		digits = cc + digits
	}
	if len(digits) < 10 || len(digits) > 15 {
		return "", fmt.Errorf("phone number must include a valid country code: %w", domain.ErrBadRequest)
	}
	return "+" + digits, nil
}
