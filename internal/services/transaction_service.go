package services

import (
	"context"
	"errors"

	"recharge-wallet/internal/ledger"
	"recharge-wallet/internal/models"

	"github.com/rs/zerolog"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// TransactionService handles administrative wallet movements and history reads.
type TransactionService struct {
	ledger WalletLedger
	logger zerolog.Logger
}

func NewTransactionService(l WalletLedger, logger zerolog.Logger) *TransactionService {
	return &TransactionService{
		ledger: l,
		logger: logger,
	}
}

func (s *TransactionService) Credit(ctx context.Context, req models.CreditRequest) (*models.Transaction, error) {
	if !req.Amount.IsPositive() {
		return nil, ledger.ErrInvalidAmount
	}

	t, err := s.ledger.Credit(ctx, req)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", req.UserID).Msg("Error crediting wallet")
		return nil, err
	}

	s.logger.Info().
		Int64("transaction_id", t.ID).
		Int64("user_id", req.UserID).
		Str("amount", req.Amount.StringFixed(2)).
		Msg("Wallet credited")
	return t, nil
}

func (s *TransactionService) Debit(ctx context.Context, req models.DebitRequest) (*models.Transaction, error) {
	if !req.Amount.IsPositive() {
		return nil, ledger.ErrInvalidAmount
	}

	t, err := s.ledger.Debit(ctx, req)
	if err != nil {
		if !errors.Is(err, ledger.ErrInsufficientFunds) {
			s.logger.Error().Err(err).Int64("user_id", req.UserID).Msg("Error debiting wallet")
		}
		return nil, err
	}

	s.logger.Info().
		Int64("transaction_id", t.ID).
		Int64("user_id", req.UserID).
		Str("amount", req.Amount.StringFixed(2)).
		Msg("Wallet debited")
	return t, nil
}

func (s *TransactionService) GetUserTransactions(ctx context.Context, userID int64, limit, offset int) ([]*models.Transaction, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	if offset < 0 {
		offset = 0
	}

	transactions, err := s.ledger.ListTransactions(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	if transactions == nil {
		transactions = []*models.Transaction{}
	}
	return transactions, nil
}
