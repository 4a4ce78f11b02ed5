package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

type Recharge struct {
	ID             int64             `json:"id"`
	TransactionID  int64             `json:"transaction_id"`
	UserID         int64             `json:"user_id"`
	OperatorCode   string            `json:"operator"`
	RechargeNumber string            `json:"recharge_number"`
	Amount         decimal.Decimal   `json:"amount"`
	Status         TransactionStatus `json:"status"`
	ReferenceID    string            `json:"reference_id"`
	ProviderTxnID  *string           `json:"provider_txn_id,omitempty"`
	APIResponse    json.RawMessage   `json:"api_response,omitempty"`
	NeedsReview    bool              `json:"needs_review"`
	ReviewReason   *string           `json:"review_reason,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

// PendingRecharge is a recharge row joined with its still-Pending parent transaction.
type PendingRecharge struct {
	RechargeID     int64
	TransactionID  int64
	UserID         int64
	OperatorCode   string
	RechargeNumber string
	Amount         decimal.Decimal
	ReferenceID    string
	CreatedAt      time.Time
}

type RechargeRequest struct {
	UserID      int64           `json:"-"`
	OperatorRef string          `json:"operator"`
	Number      string          `json:"number"`
	Amount      decimal.Decimal `json:"amount"`
	ReferenceID string          `json:"reference_id,omitempty"`
}

// RechargeOutcome is the business result of a recharge attempt. Infrastructure
// faults are reported as errors, never as an outcome.
type RechargeOutcome string

const (
	RechargeConfirmed         RechargeOutcome = "confirmed"
	RechargeDeclined          RechargeOutcome = "declined"
	RechargePending           RechargeOutcome = "pending"
	RechargeInsufficientFunds RechargeOutcome = "insufficient_funds"
	RechargeUnknownOperator   RechargeOutcome = "unknown_operator"
	RechargeOperatorInactive  RechargeOutcome = "operator_inactive"
	RechargeInvalidRequest    RechargeOutcome = "invalid_request"
)

type RechargeResult struct {
	Outcome       RechargeOutcome `json:"outcome"`
	TransactionID int64           `json:"transaction_id,omitempty"`
	RechargeID    int64           `json:"recharge_id,omitempty"`
	ReferenceID   string          `json:"reference_id,omitempty"`
	ProviderTxnID string          `json:"provider_txn_id,omitempty"`
	Message       string          `json:"message"`
}

// SettlementEvent announces a recharge reaching a terminal status.
type SettlementEvent struct {
	TransactionID int64             `json:"transaction_id"`
	RechargeID    int64             `json:"recharge_id"`
	UserID        int64             `json:"user_id"`
	ReferenceID   string            `json:"reference_id"`
	Amount        decimal.Decimal   `json:"amount"`
	Status        TransactionStatus `json:"status"`
	Refunded      bool              `json:"refunded"`
	Source        string            `json:"source"`
	SettledAt     time.Time         `json:"settled_at"`
}
