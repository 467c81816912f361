package app

import (
	"context"
	"fmt"
	"time"

	"github.com/cesargomez89/streampay/internal/chain"
	"github.com/cesargomez89/streampay/internal/constants"
	"github.com/cesargomez89/streampay/internal/domain"
	"github.com/cesargomez89/streampay/internal/logger"
	"github.com/cesargomez89/streampay/internal/metrics"
)

// ReconcileStore is the ledger surface used by reconciliation.
type ReconcileStore interface {
	ListOpenWithdrawals(ctx context.Context) ([]*domain.Payment, error)
	CompleteWithdrawal(ctx context.Context, paymentID string, processedAt time.Time) (*domain.Payment, error)
	FailWithdrawal(ctx context.Context, paymentID, reason string, at time.Time) error
}

// Reconciler resolves withdrawals left open by a confirmation timeout or
// a crash, using the signature recorded before submission.
type Reconciler struct {
	Repo           ReconcileStore
	Chain          chain.Client
	Logger         *logger.Logger
	metrics        *metrics.Settlement
	reservationTTL time.Duration
	now            func() time.Time
}

type ReconcilerOption func(*Reconciler)

// WithReservationTTL sets how long a reservation may sit unsigned before it
// is considered abandoned.
func WithReservationTTL(d time.Duration) ReconcilerOption {
	return func(r *Reconciler) { r.reservationTTL = d }
}

func WithReconcilerMetrics(m *metrics.Settlement) ReconcilerOption {
	return func(r *Reconciler) { r.metrics = m }
}

func WithReconcilerClock(now func() time.Time) ReconcilerOption {
	return func(r *Reconciler) { r.now = now }
}

func NewReconciler(repo ReconcileStore, client chain.Client, log *logger.Logger, opts ...ReconcilerOption) *Reconciler {
	r := &Reconciler{
		Repo:           repo,
		Chain:          client,
		Logger:         log.WithComponent("reconciler"),
		reservationTTL: constants.DefaultReservationTTL,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run makes one pass over open withdrawals:
//   - confirmed on chain: finalize and debit the balance
//   - failed on chain: mark failed
//   - unknown to the network past its last valid height: mark failed, it can never land
//   - reserved but never signed for longer than the reservation TTL: mark failed
//
// Anything else is left for a later pass. Lookup errors are counted and skipped.
func (r *Reconciler) Run(ctx context.Context) (*domain.ReconcileReport, error) {
	open, err := r.Repo.ListOpenWithdrawals(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list open withdrawals: %w", err)
	}

	report := &domain.ReconcileReport{}
	var height uint64
	heightKnown := false

	for _, p := range open {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Checked++
		log := r.Logger.WithArtist(p.ArtistID).WithPayment(p.ID)

		if p.Signature() == "" {
			if r.now().Sub(p.CreatedAt) < r.reservationTTL {
				report.Pending++
				continue
			}
			r.fail(ctx, log, p, "reservation abandoned before submission", report)
			continue
		}

		status, err := r.Chain.SignatureStatus(ctx, p.Signature())
		if err != nil {
			log.Warn("Signature lookup failed", "signature", p.Signature(), "error", err)
			report.Errors++
			continue
		}

		switch status {
		case chain.TxStatusConfirmed:
			if _, err := r.Repo.CompleteWithdrawal(ctx, p.ID, r.now()); err != nil {
				log.Error("Failed to finalize confirmed withdrawal", "signature", p.Signature(), "error", err)
				report.Errors++
				continue
			}
			log.Info("Withdrawal confirmed by reconciliation", "signature", p.Signature(), "lamports", p.Amount)
			report.Completed++
			r.metrics.RecordReconciled(metrics.OutcomeCompleted)

		case chain.TxStatusFailed:
			r.fail(ctx, log, p, "transaction failed on chain", report)

		case chain.TxStatusUnknown:
			if !heightKnown {
				h, err := r.Chain.BlockHeight(ctx)
				if err != nil {
					log.Warn("Block height lookup failed", "error", err)
					report.Errors++
					continue
				}
				height, heightKnown = h, true
			}
			if p.LastValidHeight > 0 && height > uint64(p.LastValidHeight) {
				r.fail(ctx, log, p, fmt.Sprintf("transaction expired at height %d", p.LastValidHeight), report)
				continue
			}
			report.Pending++

		default:
			report.Pending++
		}
	}

	if report.Checked > 0 {
		r.Logger.Info("Reconciliation pass finished",
			"checked", report.Checked,
			"completed", report.Completed,
			"failed", report.Failed,
			"pending", report.Pending,
			"errors", report.Errors)
	}
	return report, nil
}

func (r *Reconciler) fail(ctx context.Context, log *logger.Logger, p *domain.Payment, reason string, report *domain.ReconcileReport) {
	if err := r.Repo.FailWithdrawal(ctx, p.ID, reason, r.now()); err != nil {
		log.Error("Failed to mark withdrawal failed", "reason", reason, "error", err)
		report.Errors++
		return
	}
	log.Warn("Withdrawal failed by reconciliation", "reason", reason)
	report.Failed++
	r.metrics.RecordReconciled(metrics.OutcomeFailed)
}
