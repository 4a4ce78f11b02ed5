package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"recharge-wallet/internal/aggregator"
	"recharge-wallet/internal/events"
	"recharge-wallet/internal/ledger"
	"recharge-wallet/internal/metrics"
	"recharge-wallet/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	operatorLookupAttempts = 3
	operatorLookupBackoff  = 100 * time.Millisecond
	maxReferenceIDLength   = 64
	maxNumberLength        = 30
)

// RechargeService runs a recharge attempt through
// Initiated -> Reserved -> Submitted -> {Confirmed, Declined, Indeterminate}.
type RechargeService struct {
	ledger   RechargeLedger
	provider RechargeProvider
	settler  settler
	logger   zerolog.Logger

	lookupBackoff time.Duration
}

func NewRechargeService(l RechargeLedger, provider RechargeProvider, publisher events.Publisher, logger zerolog.Logger) *RechargeService {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	logger = logger.With().Str("component", "recharge").Logger()
	return &RechargeService{
		ledger:        l,
		provider:      provider,
		settler:       settler{ledger: l, events: publisher, logger: logger},
		logger:        logger,
		lookupBackoff: operatorLookupBackoff,
	}
}

// SubmitRecharge reserves funds, records the attempt and submits it to the provider.
// Business outcomes come back in the result; a non-nil error is an infrastructure fault.
// Once the reservation has started the attempt is detached from ctx cancellation and
// always runs to Confirmed, Declined or Pending.
func (s *RechargeService) SubmitRecharge(ctx context.Context, req models.RechargeRequest) (*models.RechargeResult, error) {
	req.OperatorRef = strings.TrimSpace(req.OperatorRef)
	req.Number = strings.TrimSpace(req.Number)
	req.ReferenceID = strings.TrimSpace(req.ReferenceID)

	if msg := validateRecharge(req); msg != "" {
		return s.outcome(&models.RechargeResult{Outcome: models.RechargeInvalidRequest, Message: msg}), nil
	}
	if req.ReferenceID == "" {
		req.ReferenceID = uuid.NewString()
	}

	op, err := s.resolveOperator(ctx, req.OperatorRef)
	if errors.Is(err, ledger.ErrOperatorNotFound) {
		return s.outcome(&models.RechargeResult{
			Outcome: models.RechargeUnknownOperator,
			Message: fmt.Sprintf("operator %q not found", req.OperatorRef),
		}), nil
	}
	if err != nil {
		return nil, fmt.Errorf("operator lookup: %w", err)
	}
	if !op.IsActive {
		return s.outcome(&models.RechargeResult{
			Outcome: models.RechargeOperatorInactive,
			Message: fmt.Sprintf("operator %s is not available", op.OperatorName),
		}), nil
	}

	ctx = context.WithoutCancel(ctx)

	rec, err := s.reserve(ctx, req, op)
	switch {
	case errors.Is(err, ledger.ErrInsufficientFunds):
		return s.outcome(&models.RechargeResult{
			Outcome:     models.RechargeInsufficientFunds,
			ReferenceID: req.ReferenceID,
			Message:     "insufficient wallet balance",
		}), nil
	case errors.Is(err, ledger.ErrDuplicateReference):
		return s.outcome(&models.RechargeResult{
			Outcome:     models.RechargeInvalidRequest,
			ReferenceID: req.ReferenceID,
			Message:     "reference_id already used",
		}), nil
	case err != nil:
		s.logger.Error().Err(err).Int64("user_id", req.UserID).Msg("Error reserving funds for recharge")
		return nil, fmt.Errorf("reserve funds: %w", err)
	}

	s.logger.Info().
		Int64("user_id", req.UserID).
		Int64("transaction_id", rec.TransactionID).
		Str("reference_id", rec.ReferenceID).
		Str("amount", req.Amount.StringFixed(2)).
		Msg("Funds reserved, submitting recharge")

	res := s.provider.DoRecharge(ctx, op.OperatorCode, req.Number, req.Amount, req.ReferenceID)

	result := &models.RechargeResult{
		TransactionID: rec.TransactionID,
		RechargeID:    rec.RechargeID,
		ReferenceID:   rec.ReferenceID,
		ProviderTxnID: res.ProviderTransactionID,
		Message:       res.Message,
	}

	switch res.Outcome {
	case aggregator.OutcomeConfirmed:
		result.Outcome = models.RechargeConfirmed
		if _, err := s.settler.settle(ctx, rec, models.TransactionStatusSuccess, res, "sync"); err != nil {
			s.deferToSweeper(rec, err)
			result.Outcome = models.RechargePending
		}
	case aggregator.OutcomeDeclined:
		result.Outcome = models.RechargeDeclined
		if _, err := s.settler.settle(ctx, rec, models.TransactionStatusFailed, res, "sync"); err != nil {
			s.deferToSweeper(rec, err)
			result.Outcome = models.RechargePending
		}
	default:
		result.Outcome = models.RechargePending
	}

	if result.Outcome == models.RechargePending {
		result.Message = "recharge initiated, status pending"
	} else if result.Message == "" {
		result.Message = "recharge " + string(result.Outcome)
	}

	return s.outcome(result), nil
}

// GetRecharge returns the recharge a user created under transactionID.
func (s *RechargeService) GetRecharge(ctx context.Context, userID, transactionID int64) (*models.Recharge, error) {
	return s.ledger.GetRechargeByTransaction(ctx, userID, transactionID)
}

func (s *RechargeService) reserve(ctx context.Context, req models.RechargeRequest, op *models.Operator) (models.PendingRecharge, error) {
	rec := models.PendingRecharge{
		UserID:         req.UserID,
		OperatorCode:   op.OperatorCode,
		RechargeNumber: req.Number,
		Amount:         req.Amount,
		ReferenceID:    req.ReferenceID,
		CreatedAt:      time.Now().UTC(),
	}

	err := s.ledger.WithTx(ctx, func(tx ledger.Tx) error {
		if err := tx.Reserve(ctx, req.UserID, req.Amount); err != nil {
			return err
		}

		transactionID, err := tx.RecordTransaction(ctx, ledger.NewTransaction{
			UserID:      req.UserID,
			Type:        models.TransactionTypeRecharge,
			Amount:      req.Amount,
			Status:      models.TransactionStatusPending,
			Description: fmt.Sprintf("%s recharge for %s", op.OperatorName, req.Number),
			ReferenceID: req.ReferenceID,
		})
		if err != nil {
			return err
		}

		rechargeID, err := tx.RecordRecharge(ctx, ledger.NewRecharge{
			TransactionID:  transactionID,
			UserID:         req.UserID,
			OperatorCode:   op.OperatorCode,
			RechargeNumber: req.Number,
			Amount:         req.Amount,
			ReferenceID:    req.ReferenceID,
		})
		if err != nil {
			return err
		}

		rec.TransactionID = transactionID
		rec.RechargeID = rechargeID
		return nil
	})
	return rec, err
}

// resolveOperator retries transient storage faults. It runs before any money moves,
// so retrying is safe here and nowhere later in the flow.
func (s *RechargeService) resolveOperator(ctx context.Context, ref string) (*models.Operator, error) {
	for attempt := 1; ; attempt++ {
		op, err := s.ledger.GetOperator(ctx, ref)
		if err == nil || !ledger.IsRetryable(err) || attempt >= operatorLookupAttempts {
			return op, err
		}

		s.logger.Warn().Err(err).Int("attempt", attempt).Str("operator", ref).Msg("Retrying operator lookup")
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(attempt) * s.lookupBackoff):
		}
	}
}

func (s *RechargeService) deferToSweeper(rec models.PendingRecharge, err error) {
	s.logger.Error().Err(err).
		Int64("transaction_id", rec.TransactionID).
		Str("reference_id", rec.ReferenceID).
		Msg("Provider answered but status update failed; leaving recharge pending for reconciliation")
}

func (s *RechargeService) outcome(r *models.RechargeResult) *models.RechargeResult {
	metrics.RechargeOutcomes.WithLabelValues(string(r.Outcome)).Inc()
	return r
}

func validateRecharge(req models.RechargeRequest) string {
	switch {
	case req.UserID <= 0:
		return "user is required"
	case req.OperatorRef == "":
		return "operator is required"
	case req.Number == "":
		return "number is required"
	case len(req.Number) > maxNumberLength:
		return "number is too long"
	case !req.Amount.IsPositive():
		return "amount must be greater than zero"
	case !req.Amount.Equal(req.Amount.Truncate(2)):
		return "amount must have at most two decimal places"
	case req.Amount.GreaterThan(decimal.New(1, 6)):
		return "amount exceeds the recharge limit"
	case len(req.ReferenceID) > maxReferenceIDLength:
		return "reference_id is too long"
	}
	return ""
}
