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

type BalanceReader interface {
	GetBalance(ctx context.Context, userID int64) (*models.Balance, error)
	ReconcileBalance(ctx context.Context, userID int64) (*models.BalanceCheck, error)
}

type BalanceHandler struct {
	balances BalanceReader
	logger   zerolog.Logger
}

func NewBalanceHandler(balances BalanceReader, logger zerolog.Logger) *BalanceHandler {
	return &BalanceHandler{
		balances: balances,
		logger:   logger,
	}
}

func (h *BalanceHandler) GetCurrentBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	balance, err := h.balances.GetBalance(r.Context(), userID)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		respondWithError(w, http.StatusNotFound, "account_not_found", "Account not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to fetch balance")
		respondWithError(w, http.StatusInternalServerError, "fetch_failed", "Failed to fetch balance")
		return
	}

	respondWithJSON(w, http.StatusOK, balance)
}

func (h *BalanceHandler) ReconcileBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(r, "userID")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "invalid_user_id", "Invalid user ID")
		return
	}

	check, err := h.balances.ReconcileBalance(r.Context(), userID)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		respondWithError(w, http.StatusNotFound, "account_not_found", "Account not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Int64("user_id", userID).Msg("Failed to reconcile balance")
		respondWithError(w, http.StatusInternalServerError, "reconcile_failed", "Failed to reconcile balance")
		return
	}

	respondWithJSON(w, http.StatusOK, check)
}
