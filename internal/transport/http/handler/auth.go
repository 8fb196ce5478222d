package handler

import (
	"encoding/json"
	"net/http"

	"github.com/otp-auth-api/internal/application/auth"
	"github.com/otp-auth-api/internal/domain"
	"github.com/otp-auth-api/internal/pkg/validate"
	"github.com/otp-auth-api/internal/transport/http/middleware"
)

// AuthHandler handles the OTP login, refresh and logout endpoints.
type AuthHandler struct {
	svc auth.Service
}

func NewAuthHandler(svc auth.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

type otpRequest struct {
	Identifier string `json:"identifier" validate:"required,min=3,max=255"`
	Purpose    string `json:"purpose" validate:"required"`
}

type otpVerifyRequest struct {
	Identifier string `json:"identifier" validate:"required,min=3,max=255"`
	Purpose    string `json:"purpose" validate:"required"`
	Code       string `json:"code" validate:"required,min=4,max=12"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

func (h *AuthHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req otpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	issued, err := h.svc.RequestOTP(r.Context(), req.Identifier, req.Purpose)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, OtpEnvelope{
		Message:          "OTP sent",
		ExpiresInSeconds: int(issued.ExpiresIn.Seconds()),
		Otp:              issued.Code,
	})
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req otpVerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.svc.VerifyOTP(r.Context(), req.Identifier, req.Purpose, req.Code)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LoginEnvelope{
		Message:                 "OTP verified",
		Verified:                true,
		Role:                    result.User.Role,
		IsAdmin:                 result.User.Role == domain.RoleAdmin,
		UserExists:              result.UserExisted,
		UserOnboarded:           result.User.OnboardedAt != nil,
		UserID:                  result.User.UserID,
		AccessToken:             result.AccessToken,
		RefreshToken:            result.RefreshToken,
		TokenType:               "bearer",
		ExpiresInSeconds:        int(result.AccessTTL.Seconds()),
		RefreshExpiresInSeconds: int(result.RefreshTTL.Seconds()),
	})
}

func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		writeError(w, http.StatusBadRequest, "refresh_token required")
		return
	}
	result, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, RefreshEnvelope{
		AccessToken:      result.AccessToken,
		TokenType:        "bearer",
		ExpiresInSeconds: int(result.AccessTTL.Seconds()),
	})
}

// Logout revokes the session named by the Bearer refresh token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing or invalid authorization header")
		return
	}
	if err := h.svc.Logout(r.Context(), token); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "logged out"})
}

// LogoutAll revokes every live session of the authenticated user.
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.svc.LogoutAll(r.Context(), userID); err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "logged out everywhere"})
}
