package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"recharge-wallet/internal/models"

	"github.com/shopspring/decimal"
)

// Credit adds funds to a wallet and records a Success Wallet_Credit in one unit.
func (s *Store) Credit(ctx context.Context, req models.CreditRequest) (*models.Transaction, error) {
	var transactionID int64
	err := s.WithTx(ctx, func(tx Tx) error {
		if err := tx.Credit(ctx, req.UserID, req.Amount); err != nil {
			return err
		}
		id, err := tx.RecordTransaction(ctx, NewTransaction{
			UserID:      req.UserID,
			Type:        models.TransactionTypeWalletCredit,
			Amount:      req.Amount,
			Status:      models.TransactionStatusSuccess,
			Description: req.Description,
		})
		transactionID = id
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.GetTransactionByID(ctx, transactionID)
}

// Debit removes funds and records a Success Wallet_Debit in one unit.
func (s *Store) Debit(ctx context.Context, req models.DebitRequest) (*models.Transaction, error) {
	var transactionID int64
	err := s.WithTx(ctx, func(tx Tx) error {
		if err := tx.Reserve(ctx, req.UserID, req.Amount); err != nil {
			return err
		}
		id, err := tx.RecordTransaction(ctx, NewTransaction{
			UserID:      req.UserID,
			Type:        models.TransactionTypeWalletDebit,
			Amount:      req.Amount,
			Status:      models.TransactionStatusSuccess,
			Description: req.Description,
		})
		transactionID = id
		return err
	})
	if err != nil {
		return nil, err
	}
	return s.GetTransactionByID(ctx, transactionID)
}

func (s *Store) GetBalance(ctx context.Context, userID int64) (*models.Balance, error) {
	var balance models.Balance
	err := s.db.QueryRowContext(ctx,
		"SELECT id, wallet_balance, updated_at FROM users WHERE id = ?",
		userID,
	).Scan(&balance.UserID, &balance.Amount, &balance.LastUpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Error fetching balance")
		return nil, fmt.Errorf("database error: %w", err)
	}
	return &balance, nil
}

// ExpectedBalance derives the balance from transaction rows: Success credits minus
// debits in any status. Failed debits net to zero against their refund credit and
// Pending debits are reservations already taken from the wallet.
func (s *Store) ExpectedBalance(ctx context.Context, userID int64) (expected, pending decimal.Decimal, err error) {
	err = s.db.QueryRowContext(ctx,
		`SELECT
			COALESCE(SUM(CASE WHEN type = ? AND status = ? THEN amount ELSE 0 END), 0)
			  - COALESCE(SUM(CASE WHEN type IN (?, ?) THEN amount ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN type IN (?, ?) AND status = ? THEN amount ELSE 0 END), 0)
		 FROM transactions WHERE user_id = ?`,
		string(models.TransactionTypeWalletCredit), string(models.TransactionStatusSuccess),
		string(models.TransactionTypeRecharge), string(models.TransactionTypeWalletDebit),
		string(models.TransactionTypeRecharge), string(models.TransactionTypeWalletDebit), string(models.TransactionStatusPending),
		userID,
	).Scan(&expected, &pending)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Error calculating balance from transactions")
		return decimal.Zero, decimal.Zero, fmt.Errorf("database error: %w", err)
	}
	return expected, pending, nil
}

func (s *Store) GetTransactionByID(ctx context.Context, transactionID int64) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, type, amount, status, description, reference_id, refund_of, created_at
		 FROM transactions WHERE id = ?`,
		transactionID,
	)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		s.logger.Error().Err(err).Int64("transaction_id", transactionID).Msg("Error fetching transaction")
		return nil, fmt.Errorf("database error: %w", err)
	}
	return t, nil
}

func (s *Store) ListTransactions(ctx context.Context, userID int64, limit, offset int) ([]*models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, type, amount, status, description, reference_id, refund_of, created_at
		 FROM transactions
		 WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`,
		userID, limit, offset,
	)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", userID).Msg("Error fetching user transactions")
		return nil, fmt.Errorf("database error: %w", err)
	}
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return transactions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		t           models.Transaction
		txType      string
		status      string
		description sql.NullString
		referenceID sql.NullString
		refundOf    sql.NullInt64
	)
	err := row.Scan(&t.ID, &t.UserID, &txType, &t.Amount, &status, &description, &referenceID, &refundOf, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.Type = models.TransactionType(txType)
	t.Status = models.TransactionStatus(status)
	t.Description = stringPtr(description)
	t.ReferenceID = stringPtr(referenceID)
	t.RefundOf = int64Ptr(refundOf)
	return &t, nil
}
