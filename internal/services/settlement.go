package services

import (
	"context"
	"time"

	"recharge-wallet/internal/aggregator"
	"recharge-wallet/internal/events"
	"recharge-wallet/internal/ledger"
	"recharge-wallet/internal/models"

	"github.com/rs/zerolog"
)

// settler moves a Pending recharge to its terminal status and announces it. It is
// shared by the synchronous path and the sweeper, which may race on the same row;
// the ledger's forward-only check makes the loser a no-op.
type settler struct {
	ledger StatusWriter
	events events.Publisher
	logger zerolog.Logger
}

func (s settler) settle(ctx context.Context, rec models.PendingRecharge, status models.TransactionStatus, res aggregator.Result, source string) (bool, error) {
	applied, err := s.ledger.UpdateStatus(ctx, ledger.StatusUpdate{
		TransactionID: rec.TransactionID,
		RechargeID:    rec.RechargeID,
		Status:        status,
		ProviderTxnID: res.ProviderTransactionID,
		APIResponse:   res.Raw,
	})
	if err != nil || !applied {
		return applied, err
	}

	evt := models.SettlementEvent{
		TransactionID: rec.TransactionID,
		RechargeID:    rec.RechargeID,
		UserID:        rec.UserID,
		ReferenceID:   rec.ReferenceID,
		Amount:        rec.Amount,
		Status:        status,
		Refunded:      status == models.TransactionStatusFailed,
		Source:        source,
		SettledAt:     time.Now().UTC(),
	}
	if err := s.events.PublishSettlement(ctx, evt); err != nil {
		s.logger.Warn().Err(err).
			Int64("transaction_id", rec.TransactionID).
			Msg("Failed to publish settlement event (non-critical)")
	}
	return true, nil
}
