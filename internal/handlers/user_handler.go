package handlers

import (
	"context"
	"errors"
	"net/http"

	"recharge-wallet/internal/ledger"
	"recharge-wallet/internal/middleware"
	"recharge-wallet/internal/models"

	"github.com/rs/zerolog"
)

type UserReader interface {
	GetUser(ctx context.Context, userID int64) (*models.User, error)
}

type UserHandler struct {
	users  UserReader
	logger zerolog.Logger
}

func NewUserHandler(users UserReader, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		users:  users,
		logger: logger,
	}
}

func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}
	h.writeUser(w, r, userID)
}

// GetUser is the admin lookup of any account.
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userID")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "invalid_user_id", "Invalid user ID")
		return
	}
	h.writeUser(w, r, userID)
}

func (h *UserHandler) writeUser(w http.ResponseWriter, r *http.Request, userID int64) {
	user, err := h.users.GetUser(r.Context(), userID)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		respondWithError(w, http.StatusNotFound, "user_not_found", "User not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to fetch user")
		respondWithError(w, http.StatusInternalServerError, "fetch_failed", "Failed to fetch user")
		return
	}
	respondWithJSON(w, http.StatusOK, user)
}
