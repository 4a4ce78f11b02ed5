package services

import (
	"context"

	"recharge-wallet/internal/models"

	"github.com/rs/zerolog"
)

type BalanceService struct {
	ledger WalletLedger
	logger zerolog.Logger
}

func NewBalanceService(l WalletLedger, logger zerolog.Logger) *BalanceService {
	return &BalanceService{
		ledger: l,
		logger: logger,
	}
}

func (s *BalanceService) GetBalance(ctx context.Context, userID int64) (*models.Balance, error) {
	return s.ledger.GetBalance(ctx, userID)
}

// ReconcileBalance compares the stored balance with the one implied by the user's
// transaction rows. A mismatch is reported, never corrected.
func (s *BalanceService) ReconcileBalance(ctx context.Context, userID int64) (*models.BalanceCheck, error) {
	current, err := s.ledger.GetBalance(ctx, userID)
	if err != nil {
		return nil, err
	}

	expected, pending, err := s.ledger.ExpectedBalance(ctx, userID)
	if err != nil {
		return nil, err
	}

	check := &models.BalanceCheck{
		UserID:   userID,
		Stored:   current.Amount,
		Expected: expected,
		Pending:  pending,
		InSync:   current.Amount.Equal(expected),
	}

	if !check.InSync {
		s.logger.Warn().
			Int64("user_id", userID).
			Str("current_balance", current.Amount.StringFixed(2)).
			Str("calculated_balance", expected.StringFixed(2)).
			Str("pending", pending.StringFixed(2)).
			Msg("Balance discrepancy detected")
	}

	return check, nil
}
