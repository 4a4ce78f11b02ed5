package handlers

import (
	"context"
	"errors"
	"net/http"

	"recharge-wallet/internal/models"
	"recharge-wallet/internal/services"

	"github.com/rs/zerolog"
)

type OTPAuthenticator interface {
	RequestOTP(ctx context.Context, req models.OTPRequest) error
	VerifyOTP(ctx context.Context, req models.OTPVerifyRequest) (*models.AuthResponse, error)
}

type AuthHandler struct {
	users  OTPAuthenticator
	logger zerolog.Logger
}

func NewAuthHandler(users OTPAuthenticator, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		users:  users,
		logger: logger,
	}
}

func (h *AuthHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req models.OTPRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.users.RequestOTP(r.Context(), req); err != nil {
		if errors.Is(err, services.ErrInvalidPhone) {
			respondWithError(w, http.StatusBadRequest, "invalid_phone", err.Error())
			return
		}
		h.logger.Error().Err(err).Msg("OTP request failed")
		respondWithError(w, http.StatusInternalServerError, "otp_failed", "Failed to send code")
		return
	}

	respondWithJSON(w, http.StatusAccepted, map[string]string{
		"message": "Code sent",
	})
}

func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req models.OTPVerifyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	resp, err := h.users.VerifyOTP(r.Context(), req)
	switch {
	case errors.Is(err, services.ErrInvalidPhone):
		respondWithError(w, http.StatusBadRequest, "invalid_phone", err.Error())
	case errors.Is(err, services.ErrInvalidOTP):
		respondWithError(w, http.StatusUnauthorized, "authentication_failed", err.Error())
	case errors.Is(err, services.ErrOTPAttemptsExceeded):
		respondWithError(w, http.StatusTooManyRequests, "too_many_attempts", err.Error())
	case err != nil:
		h.logger.Error().Err(err).Msg("OTP verification failed")
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Failed to verify code")
	default:
		respondWithJSON(w, http.StatusOK, resp)
	}
}
