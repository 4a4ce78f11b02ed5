package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Balance struct {
	UserID        int64           `json:"user_id"`
	Amount        decimal.Decimal `json:"amount"`
	LastUpdatedAt time.Time       `json:"last_updated_at"`
}

// BalanceCheck compares the stored wallet balance with the balance implied by the
// transaction rows: successful credits minus debits in any status.
type BalanceCheck struct {
	UserID   int64           `json:"user_id"`
	Stored   decimal.Decimal `json:"stored"`
	Expected decimal.Decimal `json:"expected"`
	Pending  decimal.Decimal `json:"pending"`
	InSync   bool            `json:"in_sync"`
}
