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

type RechargeSubmitter interface {
	SubmitRecharge(ctx context.Context, req models.RechargeRequest) (*models.RechargeResult, error)
	GetRecharge(ctx context.Context, userID, transactionID int64) (*models.Recharge, error)
}

// ReconciliationTrigger requests an out-of-band sweep.
type ReconciliationTrigger interface {
	EnqueueReconciliationPass() bool
}

type RechargeHandler struct {
	recharges  RechargeSubmitter
	reconciler ReconciliationTrigger
	logger     zerolog.Logger
}

func NewRechargeHandler(recharges RechargeSubmitter, reconciler ReconciliationTrigger, logger zerolog.Logger) *RechargeHandler {
	return &RechargeHandler{
		recharges:  recharges,
		reconciler: reconciler,
		logger:     logger,
	}
}

var outcomeStatus = map[models.RechargeOutcome]int{
	models.RechargeConfirmed:         http.StatusOK,
	models.RechargePending:           http.StatusAccepted,
	models.RechargeInvalidRequest:    http.StatusBadRequest,
	models.RechargeInsufficientFunds: http.StatusPaymentRequired,
	models.RechargeUnknownOperator:   http.StatusNotFound,
	models.RechargeOperatorInactive:  http.StatusConflict,
	models.RechargeDeclined:          http.StatusUnprocessableEntity,
}

func (h *RechargeHandler) SubmitRecharge(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	var req models.RechargeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.UserID = userID

	result, err := h.recharges.SubmitRecharge(r.Context(), req)
	if err != nil {
		h.logger.Error().Err(err).
			Int64("user_id", userID).
			Str("request_id", middleware.GetRequestID(r)).
			Msg("Recharge failed")
		respondWithError(w, http.StatusInternalServerError, "recharge_failed", "Recharge could not be processed")
		return
	}

	status, ok := outcomeStatus[result.Outcome]
	if !ok {
		status = http.StatusInternalServerError
	}
	respondWithJSON(w, status, result)
}

func (h *RechargeHandler) GetRecharge(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized", "User not authenticated")
		return
	}

	transactionID, ok := pathID(r, "transactionID")
	if !ok {
		respondWithError(w, http.StatusBadRequest, "invalid_transaction_id", "Invalid transaction ID")
		return
	}

	recharge, err := h.recharges.GetRecharge(r.Context(), userID, transactionID)
	if errors.Is(err, ledger.ErrRechargeNotFound) {
		respondWithError(w, http.StatusNotFound, "recharge_not_found", "Recharge not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Int64("transaction_id", transactionID).Msg("Failed to fetch recharge")
		respondWithError(w, http.StatusInternalServerError, "fetch_failed", "Failed to fetch recharge")
		return
	}

	respondWithJSON(w, http.StatusOK, recharge)
}

func (h *RechargeHandler) TriggerReconciliation(w http.ResponseWriter, r *http.Request) {
	queued := h.reconciler.EnqueueReconciliationPass()
	respondWithJSON(w, http.StatusAccepted, map[string]bool{
		"queued": queued,
	})
}
