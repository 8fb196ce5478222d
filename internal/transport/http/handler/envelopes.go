package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/otp-auth-api/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OtpEnvelope wraps OTP request responses. Otp is populated only in debug mode.
type OtpEnvelope struct {
	Message          string `json:"message"`
	ExpiresInSeconds int    `json:"expires_in_seconds"`
	Otp              string `json:"otp,omitempty"`
}

// LoginEnvelope wraps OTP verify (login) responses.
type LoginEnvelope struct {
	Message                 string `json:"message"`
	Verified                bool   `json:"verified"`
	Role                    string `json:"role"`
	IsAdmin                 bool   `json:"is_admin"`
	UserExists              bool   `json:"user_exists"`
	UserOnboarded           bool   `json:"user_onboarded"`
	UserID                  int64  `json:"user_id"`
	AccessToken             string `json:"access_token"`
	RefreshToken            string `json:"refresh_token"`
	TokenType               string `json:"token_type"`
	ExpiresInSeconds        int    `json:"expires_in_seconds"`
	RefreshExpiresInSeconds int    `json:"refresh_expires_in_seconds"`
}

// RefreshEnvelope wraps token refresh responses.
type RefreshEnvelope struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	ExpiresInSeconds int    `json:"expires_in_seconds"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// httpError maps a service error to its HTTP status and a client-safe
// message. Validation and conflict errors carry their reason; everything
// else is collapsed to a generic message so internals never leak.
func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, reason(err, domain.ErrBadRequest))
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "invalid or expired token")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, reason(err, domain.ErrNotFound))
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, reason(err, domain.ErrConflict))
	case errors.Is(err, domain.ErrDelivery):
		writeError(w, http.StatusBadGateway, "failed to deliver OTP")
	case errors.Is(err, domain.ErrConfiguration):
		writeError(w, http.StatusInternalServerError, "server configuration error")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// reason strips the trailing sentinel text from a wrapped error so the
// client sees "code is required" rather than "code is required: bad request".
func reason(err error, sentinel error) string {
	msg := err.Error()
	msg = strings.TrimSuffix(msg, ": "+sentinel.Error())
	if msg == "" || msg == sentinel.Error() {
		return sentinel.Error()
	}
	return msg
}
