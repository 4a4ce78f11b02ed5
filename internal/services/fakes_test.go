package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"recharge-wallet/internal/aggregator"
	"recharge-wallet/internal/ledger"
	"recharge-wallet/internal/models"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

var testLogger = zerolog.Nop()

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

type memRecharge struct {
	models.Recharge
}

// memLedger is an in-memory ledger. Every atomic unit runs under one mutex and
// restores a snapshot when it fails, which is the behaviour the services rely on
// from the SQL store.
type memLedger struct {
	mu        sync.Mutex
	balances  map[int64]decimal.Decimal
	txns      map[int64]*models.Transaction
	recharges map[int64]*memRecharge
	operators map[string]*models.Operator
	refunds   map[int64]int64
	nextID    int64
	now       func() time.Time

	updateStatusErr  error
	updateStatusErrs map[int64]error
	getOperatorErrs  []error
	listPendingErr   error
	updateStatusCall int
}

func newMemLedger() *memLedger {
	return &memLedger{
		balances:  map[int64]decimal.Decimal{},
		txns:      map[int64]*models.Transaction{},
		recharges: map[int64]*memRecharge{},
		operators: map[string]*models.Operator{},
		refunds:   map[int64]int64{},
		now:       time.Now,
	}
}

// addAccount opens a wallet funded by a single Wallet_Credit row.
func (l *memLedger) addAccount(userID int64, balance string) {
	l.balances[userID] = decimal.Zero
	if dec(balance).IsPositive() {
		l.balances[userID] = dec(balance)
		id := l.id()
		l.txns[id] = &models.Transaction{
			ID:     id,
			UserID: userID,
			Type:   models.TransactionTypeWalletCredit,
			Amount: dec(balance),
			Status: models.TransactionStatusSuccess,
		}
	}
}

func (l *memLedger) addOperator(code, name string, active bool) {
	l.nextID++
	l.operators[code] = &models.Operator{
		ID:           l.nextID,
		OperatorCode: code,
		OperatorName: name,
		ServiceType:  "Prepaid",
		IsActive:     active,
	}
}

func (l *memLedger) id() int64 {
	l.nextID++
	return l.nextID
}

type memSnapshot struct {
	balances  map[int64]decimal.Decimal
	txns      map[int64]models.Transaction
	recharges map[int64]memRecharge
	refunds   map[int64]int64
	nextID    int64
}

func (l *memLedger) snapshot() memSnapshot {
	s := memSnapshot{
		balances:  map[int64]decimal.Decimal{},
		txns:      map[int64]models.Transaction{},
		recharges: map[int64]memRecharge{},
		refunds:   map[int64]int64{},
		nextID:    l.nextID,
	}
	for k, v := range l.balances {
		s.balances[k] = v
	}
	for k, v := range l.txns {
		s.txns[k] = *v
	}
	for k, v := range l.recharges {
		s.recharges[k] = *v
	}
	for k, v := range l.refunds {
		s.refunds[k] = v
	}
	return s
}

func (l *memLedger) restore(s memSnapshot) {
	l.balances = s.balances
	l.txns = map[int64]*models.Transaction{}
	for k, v := range s.txns {
		t := v
		l.txns[k] = &t
	}
	l.recharges = map[int64]*memRecharge{}
	for k, v := range s.recharges {
		r := v
		l.recharges[k] = &r
	}
	l.refunds = s.refunds
	l.nextID = s.nextID
}

func (l *memLedger) WithTx(ctx context.Context, fn func(tx ledger.Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := l.snapshot()
	if err := fn(memTx{l: l}); err != nil {
		l.restore(snap)
		return err
	}
	return nil
}

type memTx struct {
	l *memLedger
}

func (t memTx) Reserve(_ context.Context, userID int64, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ledger.ErrInvalidAmount
	}
	bal, ok := t.l.balances[userID]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	if bal.LessThan(amount) {
		return ledger.ErrInsufficientFunds
	}
	t.l.balances[userID] = bal.Sub(amount)
	return nil
}

func (t memTx) Credit(_ context.Context, userID int64, amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ledger.ErrInvalidAmount
	}
	bal, ok := t.l.balances[userID]
	if !ok {
		return ledger.ErrAccountNotFound
	}
	t.l.balances[userID] = bal.Add(amount)
	return nil
}

func (t memTx) RecordTransaction(_ context.Context, rec ledger.NewTransaction) (int64, error) {
	if rec.RefundOf != 0 {
		if _, dup := t.l.refunds[rec.RefundOf]; dup {
			return 0, fmt.Errorf("duplicate refund_of %d", rec.RefundOf)
		}
	}
	id := t.l.id()
	txn := &models.Transaction{
		ID:        id,
		UserID:    rec.UserID,
		Type:      rec.Type,
		Amount:    rec.Amount,
		Status:    rec.Status,
		CreatedAt: t.l.now(),
	}
	if rec.Description != "" {
		d := rec.Description
		txn.Description = &d
	}
	if rec.ReferenceID != "" {
		r := rec.ReferenceID
		txn.ReferenceID = &r
	}
	if rec.RefundOf != 0 {
		r := rec.RefundOf
		txn.RefundOf = &r
		t.l.refunds[rec.RefundOf] = id
	}
	t.l.txns[id] = txn
	return id, nil
}

func (t memTx) RecordRecharge(_ context.Context, rec ledger.NewRecharge) (int64, error) {
	for _, r := range t.l.recharges {
		if r.ReferenceID == rec.ReferenceID {
			return 0, ledger.ErrDuplicateReference
		}
	}
	id := t.l.id()
	t.l.recharges[id] = &memRecharge{Recharge: models.Recharge{
		ID:             id,
		TransactionID:  rec.TransactionID,
		UserID:         rec.UserID,
		OperatorCode:   rec.OperatorCode,
		RechargeNumber: rec.RechargeNumber,
		Amount:         rec.Amount,
		Status:         models.TransactionStatusPending,
		ReferenceID:    rec.ReferenceID,
		CreatedAt:      t.l.now(),
		UpdatedAt:      t.l.now(),
	}}
	return id, nil
}

func (l *memLedger) UpdateStatus(ctx context.Context, upd ledger.StatusUpdate) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.updateStatusCall++

	if l.updateStatusErr != nil {
		return false, l.updateStatusErr
	}
	if err := l.updateStatusErrs[upd.TransactionID]; err != nil {
		return false, err
	}
	if !upd.Status.IsTerminal() {
		return false, ledger.ErrNotTerminal
	}

	txn, ok := l.txns[upd.TransactionID]
	if !ok {
		return false, ledger.ErrTransactionNotFound
	}
	if txn.Status != models.TransactionStatusPending {
		return false, nil
	}
	rec, ok := l.recharges[upd.RechargeID]
	if !ok || rec.TransactionID != upd.TransactionID {
		return false, ledger.ErrRechargeNotFound
	}

	snap := l.snapshot()
	txn.Status = upd.Status
	rec.Status = upd.Status
	if upd.ProviderTxnID != "" {
		p := upd.ProviderTxnID
		rec.ProviderTxnID = &p
	}
	if len(upd.APIResponse) > 0 {
		rec.APIResponse = upd.APIResponse
	}

	if upd.Status == models.TransactionStatusFailed {
		tx := memTx{l: l}
		err := tx.Credit(ctx, txn.UserID, txn.Amount)
		if err == nil {
			_, err = tx.RecordTransaction(ctx, ledger.NewTransaction{
				UserID:   txn.UserID,
				Type:     models.TransactionTypeWalletCredit,
				Amount:   txn.Amount,
				Status:   models.TransactionStatusSuccess,
				RefundOf: txn.ID,
			})
		}
		if err != nil {
			l.restore(snap)
			return false, err
		}
	}
	return true, nil
}

func (l *memLedger) ListPending(_ context.Context, limit int) ([]models.PendingRecharge, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.listPendingErr != nil {
		return nil, l.listPendingErr
	}

	var out []models.PendingRecharge
	for _, r := range l.recharges {
		if r.NeedsReview || l.txns[r.TransactionID].Status != models.TransactionStatusPending {
			continue
		}
		out = append(out, models.PendingRecharge{
			RechargeID:     r.ID,
			TransactionID:  r.TransactionID,
			UserID:         r.UserID,
			OperatorCode:   r.OperatorCode,
			RechargeNumber: r.RechargeNumber,
			Amount:         r.Amount,
			ReferenceID:    r.ReferenceID,
			CreatedAt:      r.CreatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].RechargeID < out[j].RechargeID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (l *memLedger) FlagForReview(_ context.Context, rechargeID int64, reason string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	r, ok := l.recharges[rechargeID]
	if !ok {
		return ledger.ErrRechargeNotFound
	}
	if r.Status == models.TransactionStatusPending {
		r.NeedsReview = true
		r.ReviewReason = &reason
	}
	return nil
}

func (l *memLedger) GetOperator(_ context.Context, ref string) (*models.Operator, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.getOperatorErrs) > 0 {
		err := l.getOperatorErrs[0]
		l.getOperatorErrs = l.getOperatorErrs[1:]
		return nil, err
	}
	op, ok := l.operators[ref]
	if !ok {
		return nil, ledger.ErrOperatorNotFound
	}
	cp := *op
	return &cp, nil
}

func (l *memLedger) GetRechargeByTransaction(_ context.Context, userID, transactionID int64) (*models.Recharge, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, r := range l.recharges {
		if r.TransactionID == transactionID && r.UserID == userID {
			cp := r.Recharge
			return &cp, nil
		}
	}
	return nil, ledger.ErrRechargeNotFound
}

func (l *memLedger) balance(userID int64) decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[userID]
}

func (l *memLedger) transaction(id int64) models.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	return *l.txns[id]
}

func (l *memLedger) rechargeByTxn(txnID int64) memRecharge {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.recharges {
		if r.TransactionID == txnID {
			return *r
		}
	}
	return memRecharge{}
}

func (l *memLedger) setRechargeCreatedAt(txnID int64, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, r := range l.recharges {
		if r.TransactionID == txnID {
			r.CreatedAt = at
		}
	}
}

func (l *memLedger) refundsFor(txnID int64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, t := range l.txns {
		if t.RefundOf != nil && *t.RefundOf == txnID {
			n++
		}
	}
	return n
}

func (l *memLedger) countTransactions(typ models.TransactionType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, t := range l.txns {
		if t.Type == typ {
			n++
		}
	}
	return n
}

// assertBalanceIdentity checks stored balance == successful credits - debits in any status.
func (l *memLedger) assertBalanceIdentity(t *testing.T, userID int64) {
	t.Helper()
	l.mu.Lock()
	defer l.mu.Unlock()

	expected := decimal.Zero
	for _, txn := range l.txns {
		if txn.UserID != userID {
			continue
		}
		switch {
		case txn.Type.IsDebit():
			expected = expected.Sub(txn.Amount)
		case txn.Status == models.TransactionStatusSuccess:
			expected = expected.Add(txn.Amount)
		}
	}
	if !l.balances[userID].Equal(expected) {
		t.Errorf("balance for user %d = %s, transactions imply %s", userID, l.balances[userID], expected)
	}
}

type fakeProvider struct {
	doRechargeFunc  func(ctx context.Context, operatorCode, number string, amount decimal.Decimal, referenceID string) aggregator.Result
	checkStatusFunc func(ctx context.Context, referenceID string) aggregator.Result

	doRechargeCalls  atomic.Int32
	checkStatusCalls atomic.Int32
}

func (p *fakeProvider) DoRecharge(ctx context.Context, operatorCode, number string, amount decimal.Decimal, referenceID string) aggregator.Result {
	p.doRechargeCalls.Add(1)
	if p.doRechargeFunc != nil {
		return p.doRechargeFunc(ctx, operatorCode, number, amount, referenceID)
	}
	return aggregator.Result{Outcome: aggregator.OutcomeConfirmed, ProviderTransactionID: "OP-" + referenceID}
}

func (p *fakeProvider) CheckStatus(ctx context.Context, referenceID string) aggregator.Result {
	p.checkStatusCalls.Add(1)
	if p.checkStatusFunc != nil {
		return p.checkStatusFunc(ctx, referenceID)
	}
	return aggregator.Result{Outcome: aggregator.OutcomeIndeterminate}
}

func confirmed() aggregator.Result {
	return aggregator.Result{Outcome: aggregator.OutcomeConfirmed, ProviderTransactionID: "OP123", Message: "Recharge successful"}
}

func declined() aggregator.Result {
	return aggregator.Result{Outcome: aggregator.OutcomeDeclined, Message: "Invalid number"}
}

func timedOut() aggregator.Result {
	return aggregator.Result{Outcome: aggregator.OutcomeIndeterminate, Message: "context deadline exceeded"}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []models.SettlementEvent
	err    error
}

func (p *recordingPublisher) PublishSettlement(_ context.Context, evt models.SettlementEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) published() []models.SettlementEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.SettlementEvent(nil), p.events...)
}

var errStorageDown = errors.New("storage unavailable")
