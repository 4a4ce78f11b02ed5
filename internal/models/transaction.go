package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Transaction struct {
	ID          int64             `json:"id"`
	UserID      int64             `json:"user_id"`
	Type        TransactionType   `json:"type"`
	Amount      decimal.Decimal   `json:"amount"`
	Status      TransactionStatus `json:"status"`
	Description *string           `json:"description,omitempty"`
	ReferenceID *string           `json:"reference_id,omitempty"`
	RefundOf    *int64            `json:"refund_of,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

type TransactionType string

const (
	TransactionTypeRecharge     TransactionType = "Recharge"
	TransactionTypeWalletCredit TransactionType = "Wallet_Credit"
	TransactionTypeWalletDebit  TransactionType = "Wallet_Debit"
)

// IsDebit reports whether the type takes money out of the wallet.
func (t TransactionType) IsDebit() bool {
	return t == TransactionTypeRecharge || t == TransactionTypeWalletDebit
}

type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "Pending"
	TransactionStatusSuccess TransactionStatus = "Success"
	TransactionStatusFailed  TransactionStatus = "Failed"
)

func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusSuccess || s == TransactionStatusFailed
}

type CreditRequest struct {
	UserID      int64           `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
}

type DebitRequest struct {
	UserID      int64           `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	Description string          `json:"description,omitempty"`
}
