package services

import (
	"context"
	"time"

	"recharge-wallet/internal/aggregator"
	"recharge-wallet/internal/ledger"
	"recharge-wallet/internal/models"

	"github.com/shopspring/decimal"
)

// StatusWriter applies terminal recharge statuses. Implemented by *ledger.Store.
type StatusWriter interface {
	UpdateStatus(ctx context.Context, upd ledger.StatusUpdate) (bool, error)
}

type RechargeLedger interface {
	StatusWriter
	WithTx(ctx context.Context, fn func(tx ledger.Tx) error) error
	GetOperator(ctx context.Context, ref string) (*models.Operator, error)
	GetRechargeByTransaction(ctx context.Context, userID, transactionID int64) (*models.Recharge, error)
}

type PendingLedger interface {
	StatusWriter
	ListPending(ctx context.Context, limit int) ([]models.PendingRecharge, error)
	FlagForReview(ctx context.Context, rechargeID int64, reason string) error
}

type DirectoryLedger interface {
	UpsertOperators(ctx context.Context, operators []models.Operator) (int, error)
	UpsertBanks(ctx context.Context, banks []models.Bank) (int, error)
	ListOperators(ctx context.Context, activeOnly bool) ([]*models.Operator, error)
	ListBanks(ctx context.Context) ([]*models.Bank, error)
	SetOperatorActive(ctx context.Context, code string, active bool) error
}

type WalletLedger interface {
	GetBalance(ctx context.Context, userID int64) (*models.Balance, error)
	Credit(ctx context.Context, req models.CreditRequest) (*models.Transaction, error)
	Debit(ctx context.Context, req models.DebitRequest) (*models.Transaction, error)
	ListTransactions(ctx context.Context, userID int64, limit, offset int) ([]*models.Transaction, error)
	ExpectedBalance(ctx context.Context, userID int64) (expected, pending decimal.Decimal, err error)
}

// UserStore backs phone/OTP login.
type UserStore interface {
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	EnsureUser(ctx context.Context, phone string) (*models.User, error)
	CreateOTP(ctx context.Context, phone, codeHash string, expiresAt time.Time) error
	LatestOTP(ctx context.Context, phone string) (*models.OTPCode, error)
	IncrementOTPAttempts(ctx context.Context, id int64) error
	ConsumeOTP(ctx context.Context, id int64) (bool, error)
}

// RechargeProvider is the aggregator as seen by the orchestrator and the sweeper.
type RechargeProvider interface {
	DoRecharge(ctx context.Context, operatorCode, number string, amount decimal.Decimal, referenceID string) aggregator.Result
	CheckStatus(ctx context.Context, referenceID string) aggregator.Result
}

type DirectoryProvider interface {
	GetOperators(ctx context.Context) ([]aggregator.OperatorInfo, error)
	GetBanks(ctx context.Context) ([]aggregator.BankInfo, error)
}
