package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"recharge-wallet/internal/models"

	"github.com/shopspring/decimal"
)

type StatusUpdate struct {
	TransactionID int64
	RechargeID    int64
	Status        models.TransactionStatus
	ProviderTxnID string
	APIResponse   []byte
}

// UpdateStatus moves a Pending recharge transaction to Success or Failed in its own
// atomic unit. Failed also credits the amount back as a Success Wallet_Credit whose
// refund_of points at the failed row. A transaction that is already terminal is left
// alone and applied is false.
func (s *Store) UpdateStatus(ctx context.Context, upd StatusUpdate) (applied bool, err error) {
	if !upd.Status.IsTerminal() {
		return false, ErrNotTerminal
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var (
		userID      int64
		amount      decimal.Decimal
		current     string
		referenceID sql.NullString
	)
	err = tx.QueryRowContext(ctx,
		"SELECT user_id, amount, status, reference_id FROM transactions WHERE id = ? FOR UPDATE",
		upd.TransactionID,
	).Scan(&userID, &amount, &current, &referenceID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, ErrTransactionNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to lock transaction: %w", err)
	}

	if models.TransactionStatus(current) != models.TransactionStatusPending {
		s.logger.Debug().
			Int64("transaction_id", upd.TransactionID).
			Str("current_status", current).
			Str("requested_status", string(upd.Status)).
			Msg("Status already terminal, skipping update")
		return false, nil
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE transactions SET status = ? WHERE id = ? AND status = ?",
		string(upd.Status), upd.TransactionID, string(models.TransactionStatusPending),
	)
	if err != nil {
		return false, fmt.Errorf("failed to update transaction status: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE recharges
		 SET status = ?, provider_txn_id = COALESCE(?, provider_txn_id), api_response = COALESCE(?, api_response)
		 WHERE id = ? AND transaction_id = ?`,
		string(upd.Status), nullString(upd.ProviderTxnID), nullString(string(upd.APIResponse)),
		upd.RechargeID, upd.TransactionID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update recharge status: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return false, fmt.Errorf("failed to read recharge update result: %w", err)
	} else if n != 1 {
		return false, fmt.Errorf("recharge %d does not belong to transaction %d: %w", upd.RechargeID, upd.TransactionID, ErrRechargeNotFound)
	}

	if upd.Status == models.TransactionStatusFailed {
		ltx := &sqlTx{tx: tx}
		if err := ltx.Credit(ctx, userID, amount); err != nil {
			return false, fmt.Errorf("failed to refund: %w", err)
		}
		_, err = ltx.RecordTransaction(ctx, NewTransaction{
			UserID:      userID,
			Type:        models.TransactionTypeWalletCredit,
			Amount:      amount,
			Status:      models.TransactionStatusSuccess,
			Description: fmt.Sprintf("Refund for failed recharge transaction %d", upd.TransactionID),
			ReferenceID: referenceID.String,
			RefundOf:    upd.TransactionID,
		})
		if err != nil {
			return false, fmt.Errorf("failed to record refund: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit status update: %w", err)
	}

	s.logger.Info().
		Int64("transaction_id", upd.TransactionID).
		Int64("recharge_id", upd.RechargeID).
		Str("status", string(upd.Status)).
		Bool("refunded", upd.Status == models.TransactionStatusFailed).
		Msg("Recharge status updated")

	return true, nil
}

// ListPending returns recharges whose transaction is still Pending, oldest first.
// Rows flagged for manual review are excluded.
func (s *Store) ListPending(ctx context.Context, limit int) ([]models.PendingRecharge, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.id, r.transaction_id, r.user_id, r.operator_code, r.recharge_number, r.amount, r.reference_id, r.created_at
		 FROM recharges r
		 JOIN transactions t ON t.id = r.transaction_id
		 WHERE t.status = ? AND r.needs_review = FALSE
		 ORDER BY r.created_at ASC, r.id ASC
		 LIMIT ?`,
		string(models.TransactionStatusPending), limit,
	)
	if err != nil {
		s.logger.Error().Err(err).Msg("Error fetching pending recharges")
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var pending []models.PendingRecharge
	for rows.Next() {
		var p models.PendingRecharge
		err := rows.Scan(
			&p.RechargeID, &p.TransactionID, &p.UserID, &p.OperatorCode,
			&p.RechargeNumber, &p.Amount, &p.ReferenceID, &p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("error scanning pending recharge: %w", err)
		}
		pending = append(pending, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pending recharges: %w", err)
	}

	return pending, nil
}

// FlagForReview parks a still-Pending recharge for manual resolution; the sweeper
// stops picking it up.
func (s *Store) FlagForReview(ctx context.Context, rechargeID int64, reason string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE recharges SET needs_review = TRUE, review_reason = ? WHERE id = ? AND status = ?",
		reason, rechargeID, string(models.TransactionStatusPending),
	)
	if err != nil {
		return fmt.Errorf("failed to flag recharge for review: %w", err)
	}
	return nil
}

func (s *Store) GetRechargeByTransaction(ctx context.Context, userID, transactionID int64) (*models.Recharge, error) {
	var (
		r             models.Recharge
		status        string
		providerTxnID sql.NullString
		apiResponse   sql.NullString
		reviewReason  sql.NullString
	)

	err := s.db.QueryRowContext(ctx,
		`SELECT id, transaction_id, user_id, operator_code, recharge_number, amount, status, reference_id,
		        provider_txn_id, api_response, needs_review, review_reason, created_at, updated_at
		 FROM recharges WHERE transaction_id = ? AND user_id = ?`,
		transactionID, userID,
	).Scan(
		&r.ID, &r.TransactionID, &r.UserID, &r.OperatorCode, &r.RechargeNumber, &r.Amount, &status,
		&r.ReferenceID, &providerTxnID, &apiResponse, &r.NeedsReview, &reviewReason, &r.CreatedAt, &r.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRechargeNotFound
	}
	if err != nil {
		s.logger.Error().Err(err).Int64("transaction_id", transactionID).Msg("Error fetching recharge")
		return nil, fmt.Errorf("database error: %w", err)
	}

	r.Status = models.TransactionStatus(status)
	r.ProviderTxnID = stringPtr(providerTxnID)
	r.ReviewReason = stringPtr(reviewReason)
	if apiResponse.Valid {
		r.APIResponse = []byte(apiResponse.String)
	}
	return &r, nil
}
