package handlers

import (
	"context"
	"errors"
	"net/http"

	"recharge-wallet/internal/ledger"
	"recharge-wallet/internal/models"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
)

type Directory interface {
	SyncOperators(ctx context.Context) (*models.SyncReport, error)
	SyncBanks(ctx context.Context) (*models.SyncReport, error)
	ListOperators(ctx context.Context, activeOnly bool) ([]*models.Operator, error)
	ListBanks(ctx context.Context) ([]*models.Bank, error)
	SetOperatorActive(ctx context.Context, code string, active bool) error
}

type DirectoryHandler struct {
	directory Directory
	logger    zerolog.Logger
}

func NewDirectoryHandler(directory Directory, logger zerolog.Logger) *DirectoryHandler {
	return &DirectoryHandler{
		directory: directory,
		logger:    logger,
	}
}

func (h *DirectoryHandler) ListOperators(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("all") != "true"
	operators, err := h.directory.ListOperators(r.Context(), activeOnly)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list operators")
		respondWithError(w, http.StatusInternalServerError, "fetch_failed", "Failed to fetch operators")
		return
	}
	if operators == nil {
		operators = []*models.Operator{}
	}
	respondWithJSON(w, http.StatusOK, operators)
}

func (h *DirectoryHandler) ListBanks(w http.ResponseWriter, r *http.Request) {
	banks, err := h.directory.ListBanks(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to list banks")
		respondWithError(w, http.StatusInternalServerError, "fetch_failed", "Failed to fetch banks")
		return
	}
	if banks == nil {
		banks = []*models.Bank{}
	}
	respondWithJSON(w, http.StatusOK, banks)
}

func (h *DirectoryHandler) SyncOperators(w http.ResponseWriter, r *http.Request) {
	report, err := h.directory.SyncOperators(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Operator sync failed")
		respondWithError(w, http.StatusBadGateway, "sync_failed", "Operator sync failed")
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}

func (h *DirectoryHandler) SyncBanks(w http.ResponseWriter, r *http.Request) {
	report, err := h.directory.SyncBanks(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Bank sync failed")
		respondWithError(w, http.StatusBadGateway, "sync_failed", "Bank sync failed")
		return
	}
	respondWithJSON(w, http.StatusOK, report)
}

type operatorStatusRequest struct {
	Active *bool `json:"active"`
}

func (h *DirectoryHandler) SetOperatorStatus(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]

	var req operatorStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Active == nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "active is required")
		return
	}

	err := h.directory.SetOperatorActive(r.Context(), code, *req.Active)
	if errors.Is(err, ledger.ErrOperatorNotFound) {
		respondWithError(w, http.StatusNotFound, "operator_not_found", "Operator not found")
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("operator_code", code).Msg("Failed to update operator")
		respondWithError(w, http.StatusInternalServerError, "update_failed", "Failed to update operator")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"operator_code": code,
		"is_active":     *req.Active,
	})
}
