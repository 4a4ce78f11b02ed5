package services

import (
	"context"
	"errors"
	"testing"

	"recharge-wallet/internal/ledger"
	"recharge-wallet/internal/models"

	"github.com/shopspring/decimal"
)

type fakeWalletLedger struct {
	getBalanceFunc       func(ctx context.Context, userID int64) (*models.Balance, error)
	creditFunc           func(ctx context.Context, req models.CreditRequest) (*models.Transaction, error)
	debitFunc            func(ctx context.Context, req models.DebitRequest) (*models.Transaction, error)
	listTransactionsFunc func(ctx context.Context, userID int64, limit, offset int) ([]*models.Transaction, error)
	expectedBalanceFunc  func(ctx context.Context, userID int64) (decimal.Decimal, decimal.Decimal, error)
}

func (f *fakeWalletLedger) GetBalance(ctx context.Context, userID int64) (*models.Balance, error) {
	return f.getBalanceFunc(ctx, userID)
}

func (f *fakeWalletLedger) Credit(ctx context.Context, req models.CreditRequest) (*models.Transaction, error) {
	return f.creditFunc(ctx, req)
}

func (f *fakeWalletLedger) Debit(ctx context.Context, req models.DebitRequest) (*models.Transaction, error) {
	return f.debitFunc(ctx, req)
}

func (f *fakeWalletLedger) ListTransactions(ctx context.Context, userID int64, limit, offset int) ([]*models.Transaction, error) {
	return f.listTransactionsFunc(ctx, userID, limit, offset)
}

func (f *fakeWalletLedger) ExpectedBalance(ctx context.Context, userID int64) (decimal.Decimal, decimal.Decimal, error) {
	return f.expectedBalanceFunc(ctx, userID)
}

func TestReconcileBalance(t *testing.T) {
	tests := []struct {
		name     string
		stored   string
		expected string
		inSync   bool
	}{
		{name: "in sync", stored: "70.00", expected: "70", inSync: true},
		{name: "drifted", stored: "80.00", expected: "70", inSync: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &fakeWalletLedger{
				getBalanceFunc: func(_ context.Context, userID int64) (*models.Balance, error) {
					return &models.Balance{UserID: userID, Amount: dec(tt.stored)}, nil
				},
				expectedBalanceFunc: func(context.Context, int64) (decimal.Decimal, decimal.Decimal, error) {
					return dec(tt.expected), dec("30"), nil
				},
			}
			svc := NewBalanceService(l, testLogger)

			check, err := svc.ReconcileBalance(context.Background(), 7)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if check.InSync != tt.inSync {
				t.Errorf("expected in_sync=%v, got %v", tt.inSync, check.InSync)
			}
			if !check.Pending.Equal(dec("30")) {
				t.Errorf("expected pending 30, got %s", check.Pending)
			}
		})
	}
}

func TestReconcileBalance_UnknownAccount(t *testing.T) {
	l := &fakeWalletLedger{
		getBalanceFunc: func(context.Context, int64) (*models.Balance, error) {
			return nil, ledger.ErrAccountNotFound
		},
	}
	svc := NewBalanceService(l, testLogger)

	if _, err := svc.ReconcileBalance(context.Background(), 7); !errors.Is(err, ledger.ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestTransactionService_RejectsNonPositiveAmounts(t *testing.T) {
	called := false
	l := &fakeWalletLedger{
		creditFunc: func(context.Context, models.CreditRequest) (*models.Transaction, error) {
			called = true
			return nil, nil
		},
		debitFunc: func(context.Context, models.DebitRequest) (*models.Transaction, error) {
			called = true
			return nil, nil
		},
	}
	svc := NewTransactionService(l, testLogger)

	if _, err := svc.Credit(context.Background(), models.CreditRequest{UserID: 1, Amount: decimal.Zero}); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Errorf("credit: expected ErrInvalidAmount, got %v", err)
	}
	if _, err := svc.Debit(context.Background(), models.DebitRequest{UserID: 1, Amount: dec("-1")}); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Errorf("debit: expected ErrInvalidAmount, got %v", err)
	}
	if called {
		t.Error("ledger must not be called")
	}
}

func TestTransactionService_Debit(t *testing.T) {
	l := &fakeWalletLedger{
		debitFunc: func(_ context.Context, req models.DebitRequest) (*models.Transaction, error) {
			if req.Amount.GreaterThan(dec("50")) {
				return nil, ledger.ErrInsufficientFunds
			}
			return &models.Transaction{ID: 9, UserID: req.UserID, Type: models.TransactionTypeWalletDebit, Amount: req.Amount, Status: models.TransactionStatusSuccess}, nil
		},
	}
	svc := NewTransactionService(l, testLogger)

	txn, err := svc.Debit(context.Background(), models.DebitRequest{UserID: 1, Amount: dec("20")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if txn.Type != models.TransactionTypeWalletDebit {
		t.Errorf("expected Wallet_Debit, got %s", txn.Type)
	}

	if _, err := svc.Debit(context.Background(), models.DebitRequest{UserID: 1, Amount: dec("60")}); !errors.Is(err, ledger.ErrInsufficientFunds) {
		t.Errorf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestGetUserTransactions_ClampsPaging(t *testing.T) {
	tests := []struct {
		name       string
		limit      int
		offset     int
		wantLimit  int
		wantOffset int
	}{
		{name: "defaults", limit: 0, offset: 0, wantLimit: 20, wantOffset: 0},
		{name: "capped", limit: 1000, offset: 5, wantLimit: 100, wantOffset: 5},
		{name: "negative offset", limit: 10, offset: -3, wantLimit: 10, wantOffset: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &fakeWalletLedger{
				listTransactionsFunc: func(_ context.Context, _ int64, limit, offset int) ([]*models.Transaction, error) {
					if limit != tt.wantLimit || offset != tt.wantOffset {
						t.Errorf("expected limit=%d offset=%d, got %d %d", tt.wantLimit, tt.wantOffset, limit, offset)
					}
					return nil, nil
				},
			}
			svc := NewTransactionService(l, testLogger)

			txns, err := svc.GetUserTransactions(context.Background(), 1, tt.limit, tt.offset)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if txns == nil {
				t.Error("expected empty slice, got nil")
			}
		})
	}
}
