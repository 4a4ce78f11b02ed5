package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"recharge-wallet/internal/ledger"
	"recharge-wallet/internal/middleware"
	"recharge-wallet/internal/models"
	"recharge-wallet/internal/services"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type fakeRecharges struct {
	submitFunc func(ctx context.Context, req models.RechargeRequest) (*models.RechargeResult, error)
	getFunc    func(ctx context.Context, userID, transactionID int64) (*models.Recharge, error)
}

func (f *fakeRecharges) SubmitRecharge(ctx context.Context, req models.RechargeRequest) (*models.RechargeResult, error) {
	return f.submitFunc(ctx, req)
}

func (f *fakeRecharges) GetRecharge(ctx context.Context, userID, transactionID int64) (*models.Recharge, error) {
	return f.getFunc(ctx, userID, transactionID)
}

type fakeTrigger struct{ queued bool }

func (f fakeTrigger) EnqueueReconciliationPass() bool { return f.queued }

type fakeAuthenticator struct {
	requestErr error
	verifyErr  error
}

func (f fakeAuthenticator) RequestOTP(context.Context, models.OTPRequest) error { return f.requestErr }

func (f fakeAuthenticator) VerifyOTP(_ context.Context, req models.OTPVerifyRequest) (*models.AuthResponse, error) {
	if f.verifyErr != nil {
		return nil, f.verifyErr
	}
	return &models.AuthResponse{User: &models.User{ID: 1, Phone: req.Phone, Role: "user"}, Token: "tok"}, nil
}

type fakeDirectory struct {
	setActiveErr error
	operators    []*models.Operator
	syncErr      error
	lastActive   *bool
}

func (f *fakeDirectory) SyncOperators(context.Context) (*models.SyncReport, error) {
	if f.syncErr != nil {
		return nil, f.syncErr
	}
	return &models.SyncReport{Fetched: 3, Upserted: 2}, nil
}

func (f *fakeDirectory) SyncBanks(context.Context) (*models.SyncReport, error) {
	return nil, f.syncErr
}

func (f *fakeDirectory) ListOperators(_ context.Context, activeOnly bool) ([]*models.Operator, error) {
	var out []*models.Operator
	for _, op := range f.operators {
		if !activeOnly || op.IsActive {
			out = append(out, op)
		}
	}
	return out, nil
}

func (f *fakeDirectory) ListBanks(context.Context) ([]*models.Bank, error) { return nil, nil }

func (f *fakeDirectory) SetOperatorActive(_ context.Context, _ string, active bool) error {
	f.lastActive = &active
	return f.setActiveErr
}

type fakeWallet struct {
	err error
}

func (f fakeWallet) Credit(_ context.Context, req models.CreditRequest) (*models.Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Transaction{ID: 1, UserID: req.UserID, Amount: req.Amount, Type: models.TransactionTypeWalletCredit}, nil
}

func (f fakeWallet) Debit(_ context.Context, req models.DebitRequest) (*models.Transaction, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Transaction{ID: 2, UserID: req.UserID, Amount: req.Amount, Type: models.TransactionTypeWalletDebit}, nil
}

func (f fakeWallet) GetUserTransactions(context.Context, int64, int, int) ([]*models.Transaction, error) {
	return []*models.Transaction{}, f.err
}

func jsonRequest(method, target, body string) *http.Request {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func asUser(r *http.Request, userID int64) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), middleware.UserIDKey, userID))
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) middleware.ErrorResponse {
	t.Helper()
	var resp middleware.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return resp
}

func TestSubmitRecharge_OutcomeStatus(t *testing.T) {
	tests := []struct {
		outcome models.RechargeOutcome
		want    int
	}{
		{models.RechargeConfirmed, http.StatusOK},
		{models.RechargePending, http.StatusAccepted},
		{models.RechargeDeclined, http.StatusUnprocessableEntity},
		{models.RechargeInsufficientFunds, http.StatusPaymentRequired},
		{models.RechargeUnknownOperator, http.StatusNotFound},
		{models.RechargeOperatorInactive, http.StatusConflict},
		{models.RechargeInvalidRequest, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(string(tt.outcome), func(t *testing.T) {
			fake := &fakeRecharges{submitFunc: func(context.Context, models.RechargeRequest) (*models.RechargeResult, error) {
				return &models.RechargeResult{Outcome: tt.outcome, TransactionID: 9}, nil
			}}
			h := NewRechargeHandler(fake, fakeTrigger{}, zerolog.Nop())

			rr := httptest.NewRecorder()
			req := asUser(jsonRequest(http.MethodPost, "/api/v1/recharges", `{"operator":"AT","number":"9876543210","amount":"30"}`), 42)
			h.SubmitRecharge(rr, req)

			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rr.Code)
			}
			var res models.RechargeResult
			if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if res.Outcome != tt.outcome {
				t.Errorf("expected outcome %s in body, got %s", tt.outcome, res.Outcome)
			}
		})
	}
}

func TestSubmitRecharge_UsesAuthenticatedUser(t *testing.T) {
	var got models.RechargeRequest
	fake := &fakeRecharges{submitFunc: func(_ context.Context, req models.RechargeRequest) (*models.RechargeResult, error) {
		got = req
		return &models.RechargeResult{Outcome: models.RechargeConfirmed}, nil
	}}
	h := NewRechargeHandler(fake, fakeTrigger{}, zerolog.Nop())

	rr := httptest.NewRecorder()
	body := `{"user_id":7,"UserID":7,"operator":"AT","number":"9876543210","amount":30.5,"reference_id":"r-1"}`
	h.SubmitRecharge(rr, asUser(jsonRequest(http.MethodPost, "/api/v1/recharges", body), 42))

	if got.UserID != 42 {
		t.Errorf("expected user 42 from the token, got %d", got.UserID)
	}
	if !got.Amount.Equal(decimal.RequireFromString("30.5")) || got.OperatorRef != "AT" || got.ReferenceID != "r-1" {
		t.Errorf("unexpected request %+v", got)
	}
}

func TestSubmitRecharge_Failures(t *testing.T) {
	ok := &fakeRecharges{submitFunc: func(context.Context, models.RechargeRequest) (*models.RechargeResult, error) {
		return &models.RechargeResult{Outcome: models.RechargeConfirmed}, nil
	}}
	broken := &fakeRecharges{submitFunc: func(context.Context, models.RechargeRequest) (*models.RechargeResult, error) {
		return nil, errors.New("connection refused")
	}}

	tests := []struct {
		name     string
		svc      *fakeRecharges
		req      *http.Request
		want     int
		wantCode string
	}{
		{
			name:     "unauthenticated",
			svc:      ok,
			req:      jsonRequest(http.MethodPost, "/api/v1/recharges", `{}`),
			want:     http.StatusUnauthorized,
			wantCode: "unauthorized",
		},
		{
			name:     "malformed body",
			svc:      ok,
			req:      asUser(jsonRequest(http.MethodPost, "/api/v1/recharges", `{"amount":`), 42),
			want:     http.StatusBadRequest,
			wantCode: "invalid_request",
		},
		{
			name:     "infrastructure fault",
			svc:      broken,
			req:      asUser(jsonRequest(http.MethodPost, "/api/v1/recharges", `{"operator":"AT","number":"1","amount":"1"}`), 42),
			want:     http.StatusInternalServerError,
			wantCode: "recharge_failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewRechargeHandler(tt.svc, fakeTrigger{}, zerolog.Nop())
			rr := httptest.NewRecorder()
			h.SubmitRecharge(rr, tt.req)

			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rr.Code)
			}
			if resp := decodeError(t, rr); resp.Error != tt.wantCode {
				t.Errorf("expected error %s, got %s", tt.wantCode, resp.Error)
			}
		})
	}
}

func TestGetRecharge(t *testing.T) {
	fake := &fakeRecharges{getFunc: func(_ context.Context, userID, transactionID int64) (*models.Recharge, error) {
		if userID != 42 || transactionID != 9 {
			return nil, ledger.ErrRechargeNotFound
		}
		return &models.Recharge{ID: 1, TransactionID: 9, UserID: 42, Status: models.TransactionStatusPending}, nil
	}}
	h := NewRechargeHandler(fake, fakeTrigger{}, zerolog.Nop())

	tests := []struct {
		name string
		id   string
		user int64
		want int
	}{
		{"own recharge", "9", 42, http.StatusOK},
		{"someone else's", "9", 43, http.StatusNotFound},
		{"bad id", "abc", 42, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/recharges/"+tt.id, nil)
			req = mux.SetURLVars(asUser(req, tt.user), map[string]string{"transactionID": tt.id})
			rr := httptest.NewRecorder()
			h.GetRecharge(rr, req)

			if rr.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestTriggerReconciliation(t *testing.T) {
	for _, queued := range []bool{true, false} {
		h := NewRechargeHandler(&fakeRecharges{}, fakeTrigger{queued: queued}, zerolog.Nop())
		rr := httptest.NewRecorder()
		h.TriggerReconciliation(rr, httptest.NewRequest(http.MethodPost, "/api/v1/admin/reconciliation", nil))

		if rr.Code != http.StatusAccepted {
			t.Errorf("expected 202, got %d", rr.Code)
		}
		var body map[string]bool
		json.NewDecoder(rr.Body).Decode(&body)
		if body["queued"] != queued {
			t.Errorf("expected queued=%v, got %v", queued, body)
		}
	}
}

func TestVerifyOTP_ErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, http.StatusOK},
		{"bad phone", services.ErrInvalidPhone, http.StatusBadRequest},
		{"wrong code", services.ErrInvalidOTP, http.StatusUnauthorized},
		{"locked out", services.ErrOTPAttemptsExceeded, http.StatusTooManyRequests},
		{"storage down", errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewAuthHandler(fakeAuthenticator{verifyErr: tt.err}, zerolog.Nop())
			rr := httptest.NewRecorder()
			h.VerifyOTP(rr, jsonRequest(http.MethodPost, "/api/v1/auth/otp/verify", `{"phone":"9876543210","code":"123456"}`))

			if rr.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rr.Code)
			}
		})
	}
}

func TestRequestOTP(t *testing.T) {
	h := NewAuthHandler(fakeAuthenticator{}, zerolog.Nop())
	rr := httptest.NewRecorder()
	h.RequestOTP(rr, jsonRequest(http.MethodPost, "/api/v1/auth/otp/request", `{"phone":"9876543210"}`))
	if rr.Code != http.StatusAccepted {
		t.Errorf("expected 202, got %d", rr.Code)
	}

	h = NewAuthHandler(fakeAuthenticator{requestErr: services.ErrInvalidPhone}, zerolog.Nop())
	rr = httptest.NewRecorder()
	h.RequestOTP(rr, jsonRequest(http.MethodPost, "/api/v1/auth/otp/request", `{"phone":"12"}`))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}

func TestSetOperatorStatus(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{"deactivate", `{"active":false}`, nil, http.StatusOK},
		{"missing flag", `{}`, nil, http.StatusBadRequest},
		{"unknown operator", `{"active":true}`, ledger.ErrOperatorNotFound, http.StatusNotFound},
		{"storage error", `{"active":true}`, errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := &fakeDirectory{setActiveErr: tt.err}
			h := NewDirectoryHandler(dir, zerolog.Nop())

			req := mux.SetURLVars(jsonRequest(http.MethodPut, "/api/v1/admin/operators/AT", tt.body), map[string]string{"code": "AT"})
			rr := httptest.NewRecorder()
			h.SetOperatorStatus(rr, req)

			if rr.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rr.Code)
			}
			if tt.name == "deactivate" && (dir.lastActive == nil || *dir.lastActive) {
				t.Error("expected operator to be deactivated")
			}
		})
	}
}

func TestListOperators(t *testing.T) {
	dir := &fakeDirectory{operators: []*models.Operator{
		{OperatorCode: "AT", IsActive: true},
		{OperatorCode: "BS", IsActive: false},
	}}
	h := NewDirectoryHandler(dir, zerolog.Nop())

	for target, want := range map[string]int{"/api/v1/operators": 1, "/api/v1/operators?all=true": 2} {
		rr := httptest.NewRecorder()
		h.ListOperators(rr, httptest.NewRequest(http.MethodGet, target, nil))

		var ops []models.Operator
		if err := json.NewDecoder(rr.Body).Decode(&ops); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(ops) != want {
			t.Errorf("%s: expected %d operators, got %d", target, want, len(ops))
		}
	}
}

func TestListBanks_EmptyIsArray(t *testing.T) {
	h := NewDirectoryHandler(&fakeDirectory{}, zerolog.Nop())
	rr := httptest.NewRecorder()
	h.ListBanks(rr, httptest.NewRequest(http.MethodGet, "/api/v1/banks", nil))

	if got := strings.TrimSpace(rr.Body.String()); got != "[]" {
		t.Errorf("expected [], got %s", got)
	}
}

func TestSyncOperators_ProviderFailure(t *testing.T) {
	h := NewDirectoryHandler(&fakeDirectory{syncErr: errors.New("aggregator down")}, zerolog.Nop())
	rr := httptest.NewRecorder()
	h.SyncOperators(rr, httptest.NewRequest(http.MethodPost, "/api/v1/admin/directory/operators/sync", nil))

	if rr.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rr.Code)
	}
}

func TestWalletAdjustments(t *testing.T) {
	tests := []struct {
		name    string
		handler func(h *TransactionHandler) http.HandlerFunc
		body    string
		err     error
		want    int
	}{
		{"credit", func(h *TransactionHandler) http.HandlerFunc { return h.Credit }, `{"user_id":7,"amount":"10"}`, nil, http.StatusCreated},
		{"credit without user", func(h *TransactionHandler) http.HandlerFunc { return h.Credit }, `{"amount":"10"}`, nil, http.StatusBadRequest},
		{"credit unknown account", func(h *TransactionHandler) http.HandlerFunc { return h.Credit }, `{"user_id":7,"amount":"10"}`, ledger.ErrAccountNotFound, http.StatusNotFound},
		{"debit overdraw", func(h *TransactionHandler) http.HandlerFunc { return h.Debit }, `{"user_id":7,"amount":"10"}`, ledger.ErrInsufficientFunds, http.StatusPaymentRequired},
		{"debit zero", func(h *TransactionHandler) http.HandlerFunc { return h.Debit }, `{"user_id":7,"amount":"0"}`, ledger.ErrInvalidAmount, http.StatusBadRequest},
		{"debit storage error", func(h *TransactionHandler) http.HandlerFunc { return h.Debit }, `{"user_id":7,"amount":"1"}`, errors.New("db down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewTransactionHandler(fakeWallet{err: tt.err}, zerolog.Nop())
			rr := httptest.NewRecorder()
			tt.handler(h)(rr, jsonRequest(http.MethodPost, "/api/v1/admin/wallet", tt.body))

			if rr.Code != tt.want {
				t.Errorf("expected %d, got %d: %s", tt.want, rr.Code, rr.Body.String())
			}
		})
	}
}

func TestDecodeJSON_RejectsOversizedBody(t *testing.T) {
	h := NewAuthHandler(fakeAuthenticator{}, zerolog.Nop())
	body := `{"phone":"` + strings.Repeat("9", maxBodyBytes) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/otp/request", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()
	h.RequestOTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", rr.Code)
	}
}
