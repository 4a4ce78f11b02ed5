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

type WalletTransactions interface {
	Credit(ctx context.Context, req models.CreditRequest) (*models.Transaction, error)
	Debit(ctx context.Context, req models.DebitRequest) (*models.Transaction, error)
	GetUserTransactions(ctx context.Context, userID int64, limit, offset int) ([]*models.Transaction, error)
}

type TransactionHandler struct {
	transactions WalletTransactions
	logger       zerolog.Logger
}

func NewTransactionHandler(transactions WalletTransactions, logger zerolog.Logger) *TransactionHandler {
	return &TransactionHandler{
		transactions: transactions,
		logger:       logger,
	}
}

func (h *TransactionHandler) Credit(w http.ResponseWriter, r *http.Request) {
	var req models.CreditRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID <= 0 {
		respondWithError(w, http.StatusBadRequest, "invalid_user_id", "user_id is required")
		return
	}

	transaction, err := h.transactions.Credit(r.Context(), req)
	if err != nil {
		h.writeLedgerError(w, err, "Credit transaction failed")
		return
	}

	respondWithJSON(w, http.StatusCreated, transaction)
}

func (h *TransactionHandler) Debit(w http.ResponseWriter, r *http.Request) {
	var req models.DebitRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID <= 0 {
		respondWithError(w, http.StatusBadRequest, "invalid_user_id", "user_id is required")
		return
	}

	transaction, err := h.transactions.Debit(r.Context(), req)
	if err != nil {
		h.writeLedgerError(w, err, "Debit transaction failed")
		return
	}

	respondWithJSON(w, http.StatusCreated, transaction)
}

func (h *TransactionHandler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	limit := queryInt(r, "limit", 20)
	offset := queryInt(r, "offset", 0)

	transactions, err := h.transactions.GetUserTransactions(r.Context(), userID, limit, offset)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to fetch transaction history")
		respondWithError(w, http.StatusInternalServerError, "fetch_failed", "Failed to fetch transactions")
		return
	}

	respondWithJSON(w, http.StatusOK, transactions)
}

func (h *TransactionHandler) writeLedgerError(w http.ResponseWriter, err error, msg string) {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		respondWithError(w, http.StatusBadRequest, "invalid_amount", err.Error())
	case errors.Is(err, ledger.ErrAccountNotFound):
		respondWithError(w, http.StatusNotFound, "account_not_found", "Account not found")
	case errors.Is(err, ledger.ErrInsufficientFunds):
		respondWithError(w, http.StatusPaymentRequired, "insufficient_funds", "Insufficient wallet balance")
	default:
		h.logger.Error().Err(err).Msg(msg)
		respondWithError(w, http.StatusInternalServerError, "transaction_failed", "Transaction failed")
	}
}
