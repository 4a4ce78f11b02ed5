package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"recharge-wallet/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Tx is one atomic unit of ledger work. Everything done through a Tx commits or
// rolls back together.
type Tx interface {
	Reserve(ctx context.Context, userID int64, amount decimal.Decimal) error
	Credit(ctx context.Context, userID int64, amount decimal.Decimal) error
	RecordTransaction(ctx context.Context, rec NewTransaction) (int64, error)
	RecordRecharge(ctx context.Context, rec NewRecharge) (int64, error)
}

type NewTransaction struct {
	UserID      int64
	Type        models.TransactionType
	Amount      decimal.Decimal
	Status      models.TransactionStatus
	Description string
	ReferenceID string
	RefundOf    int64
}

type NewRecharge struct {
	TransactionID  int64
	UserID         int64
	OperatorCode   string
	RechargeNumber string
	Amount         decimal.Decimal
	ReferenceID    string
}

type Store struct {
	db     *sql.DB
	logger zerolog.Logger
}

func NewStore(db *sql.DB, logger zerolog.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
	}
}

// WithTx runs fn inside a database transaction. A non-nil error from fn, or a
// panic, rolls the unit back.
func (s *Store) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) lockBalance(ctx context.Context, userID int64) (decimal.Decimal, error) {
	var balance decimal.Decimal
	err := t.tx.QueryRowContext(ctx,
		"SELECT wallet_balance FROM users WHERE id = ? FOR UPDATE",
		userID,
	).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, ErrAccountNotFound
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to lock balance: %w", err)
	}
	return balance, nil
}

// Reserve takes the account row lock, verifies the balance covers amount and
// debits it. The lock is held until the surrounding unit ends.
func (t *sqlTx) Reserve(ctx context.Context, userID int64, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	balance, err := t.lockBalance(ctx, userID)
	if err != nil {
		return err
	}
	if balance.LessThan(amount) {
		return ErrInsufficientFunds
	}

	_, err = t.tx.ExecContext(ctx,
		"UPDATE users SET wallet_balance = wallet_balance - ? WHERE id = ?",
		amount, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to debit balance: %w", err)
	}
	return nil
}

func (t *sqlTx) Credit(ctx context.Context, userID int64, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}

	if _, err := t.lockBalance(ctx, userID); err != nil {
		return err
	}

	_, err := t.tx.ExecContext(ctx,
		"UPDATE users SET wallet_balance = wallet_balance + ? WHERE id = ?",
		amount, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to credit balance: %w", err)
	}
	return nil
}

func (t *sqlTx) RecordTransaction(ctx context.Context, rec NewTransaction) (int64, error) {
	result, err := t.tx.ExecContext(ctx,
		`INSERT INTO transactions (user_id, type, amount, status, description, reference_id, refund_of)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.UserID, string(rec.Type), rec.Amount, string(rec.Status),
		nullString(rec.Description), nullString(rec.ReferenceID), nullInt64(rec.RefundOf),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get transaction ID: %w", err)
	}
	return id, nil
}

func (t *sqlTx) RecordRecharge(ctx context.Context, rec NewRecharge) (int64, error) {
	result, err := t.tx.ExecContext(ctx,
		`INSERT INTO recharges (transaction_id, user_id, operator_code, recharge_number, amount, status, reference_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.TransactionID, rec.UserID, rec.OperatorCode, rec.RechargeNumber, rec.Amount,
		string(models.TransactionStatusPending), rec.ReferenceID,
	)
	if isDuplicateKey(err) {
		return 0, ErrDuplicateReference
	}
	if err != nil {
		return 0, fmt.Errorf("failed to create recharge: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get recharge ID: %w", err)
	}
	return id, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n != 0}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	v := ni.Int64
	return &v
}
