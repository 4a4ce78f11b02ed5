package services

import (
	"context"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"recharge-wallet/internal/aggregator"
	"recharge-wallet/internal/events"
	"recharge-wallet/internal/metrics"
	"recharge-wallet/internal/models"

	"github.com/rs/zerolog"
)

// maxReviewReasonLength matches recharges.review_reason.
const maxReviewReasonLength = 255

type ReconcilerConfig struct {
	Interval    time.Duration
	BatchSize   int
	ReviewAfter time.Duration
}

// SweepReport counts what one reconciliation pass did.
type SweepReport struct {
	Scanned    int `json:"scanned"`
	Confirmed  int `json:"confirmed"`
	Declined   int `json:"declined"`
	Unresolved int `json:"unresolved"`
	Flagged    int `json:"flagged"`
	Skipped    int `json:"skipped"`
	Errors     int `json:"errors"`
}

// Reconciler drives Pending recharges to a terminal status by polling the provider's
// status endpoint. Only an authoritative answer changes a row.
type Reconciler struct {
	ledger   PendingLedger
	provider RechargeProvider
	settler  settler
	cfg      ReconcilerConfig
	logger   zerolog.Logger
	now      func() time.Time

	trigger chan struct{}
	mu      sync.Mutex
}

func NewReconciler(l PendingLedger, provider RechargeProvider, publisher events.Publisher, cfg ReconcilerConfig, logger zerolog.Logger) *Reconciler {
	if publisher == nil {
		publisher = events.NoopPublisher{}
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.ReviewAfter <= 0 {
		cfg.ReviewAfter = 24 * time.Hour
	}
	logger = logger.With().Str("component", "reconciler").Logger()
	return &Reconciler{
		ledger:   l,
		provider: provider,
		settler:  settler{ledger: l, events: publisher, logger: logger},
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		trigger:  make(chan struct{}, 1),
	}
}

// Run sweeps on every tick and on every enqueued pass until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.logger.Info().
		Dur("interval", r.cfg.Interval).
		Int("batch_size", r.cfg.BatchSize).
		Dur("review_after", r.cfg.ReviewAfter).
		Msg("Reconciliation sweeper started")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("Reconciliation sweeper stopped")
			return
		case <-ticker.C:
		case <-r.trigger:
		}

		report, err := r.RunOnce(ctx)
		if err != nil {
			r.logger.Error().Err(err).Msg("Reconciliation pass failed")
			continue
		}
		if report.Scanned > 0 {
			r.logger.Info().
				Int("scanned", report.Scanned).
				Int("confirmed", report.Confirmed).
				Int("declined", report.Declined).
				Int("unresolved", report.Unresolved).
				Int("flagged", report.Flagged).
				Int("errors", report.Errors).
				Msg("Reconciliation pass completed")
		}
	}
}

// EnqueueReconciliationPass asks Run for an immediate pass. Requests made while one is
// already queued are coalesced; it reports whether a new pass was queued.
func (r *Reconciler) EnqueueReconciliationPass() bool {
	select {
	case r.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// RunOnce performs a single pass over at most BatchSize pending recharges. Errors on
// individual rows are counted and never abort the batch.
func (r *Reconciler) RunOnce(ctx context.Context) (SweepReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var report SweepReport

	pending, err := r.ledger.ListPending(ctx, r.cfg.BatchSize)
	if err != nil {
		return report, fmt.Errorf("list pending recharges: %w", err)
	}

	for _, rec := range pending {
		if ctx.Err() != nil {
			break
		}
		report.Scanned++
		r.resolve(ctx, rec, &report)
	}

	metrics.SweeperLastRun.SetToCurrentTime()
	return report, nil
}

func (r *Reconciler) resolve(ctx context.Context, rec models.PendingRecharge, report *SweepReport) {
	log := r.logger.With().
		Int64("transaction_id", rec.TransactionID).
		Str("reference_id", rec.ReferenceID).
		Logger()

	res := r.provider.CheckStatus(ctx, rec.ReferenceID)

	var status models.TransactionStatus
	switch res.Outcome {
	case aggregator.OutcomeConfirmed:
		status = models.TransactionStatusSuccess
	case aggregator.OutcomeDeclined:
		status = models.TransactionStatusFailed
	default:
		r.handleIndeterminate(ctx, rec, res, report)
		return
	}

	applied, err := r.settler.settle(ctx, rec, status, res, "sweeper")
	switch {
	case err != nil:
		report.Errors++
		metrics.SweeperResolutions.WithLabelValues("error").Inc()
		log.Error().Err(err).Str("status", string(status)).Msg("Error applying reconciled status")
	case !applied:
		report.Skipped++
		metrics.SweeperResolutions.WithLabelValues("skipped").Inc()
	case status == models.TransactionStatusSuccess:
		report.Confirmed++
		metrics.SweeperResolutions.WithLabelValues("confirmed").Inc()
		log.Info().Msg("Pending recharge confirmed by status check")
	default:
		report.Declined++
		metrics.SweeperResolutions.WithLabelValues("declined").Inc()
		log.Info().Msg("Pending recharge declined by status check, refunded")
	}
}

func (r *Reconciler) handleIndeterminate(ctx context.Context, rec models.PendingRecharge, res aggregator.Result, report *SweepReport) {
	age := r.now().Sub(rec.CreatedAt)
	if age < r.cfg.ReviewAfter {
		report.Unresolved++
		metrics.SweeperResolutions.WithLabelValues("unresolved").Inc()
		return
	}

	reason := fmt.Sprintf("no authoritative status after %s", age.Truncate(time.Second))
	if res.Message != "" {
		reason += ": " + res.Message
	}
	reason = truncateUTF8(reason, maxReviewReasonLength)

	if err := r.ledger.FlagForReview(ctx, rec.RechargeID, reason); err != nil {
		report.Errors++
		metrics.SweeperResolutions.WithLabelValues("error").Inc()
		r.logger.Error().Err(err).Int64("recharge_id", rec.RechargeID).Msg("Error flagging recharge for review")
		return
	}

	report.Flagged++
	metrics.SweeperResolutions.WithLabelValues("flagged").Inc()
	r.logger.Warn().
		Int64("recharge_id", rec.RechargeID).
		Str("reference_id", rec.ReferenceID).
		Str("reason", reason).
		Msg("Recharge flagged for manual review")
}

// truncateUTF8 cuts s to at most limit bytes without splitting a rune.
func truncateUTF8(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
