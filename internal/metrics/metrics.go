// Package metrics exposes Prometheus collectors for settlement activity.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Settlement holds the settlement collectors. All methods are safe on a nil receiver.
type Settlement struct {
	cycles           *prometheus.CounterVec
	artistsCredited  prometheus.Counter
	streamsSettled   prometheus.Counter
	lamportsCredited prometheus.Counter
	artistFailures   prometheus.Counter
	withdrawals      *prometheus.CounterVec
	withdrawLatency  prometheus.Histogram
	lamportsPaid     prometheus.Counter
	fundingBalance   prometheus.Gauge
	reconciled       *prometheus.CounterVec
}

var (
	settlementOnce sync.Once
	settlementReg  *Settlement
)

// Default returns the lazily-initialised process-wide collectors.
func Default() *Settlement {
	settlementOnce.Do(func() {
		settlementReg = New(prometheus.DefaultRegisterer)
	})
	return settlementReg
}

// New builds the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Settlement {
	m := &Settlement{
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "streampay",
			Subsystem: "aggregation",
			Name:      "cycles_total",
			Help:      "Aggregation cycles segmented by outcome.",
		}, []string{"outcome"}),
		artistsCredited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streampay",
			Subsystem: "aggregation",
			Name:      "artists_credited_total",
			Help:      "Artists credited by aggregation cycles.",
		}),
		streamsSettled: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streampay",
			Subsystem: "aggregation",
			Name:      "streams_settled_total",
			Help:      "Completed streams settled into artist earnings.",
		}),
		lamportsCredited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streampay",
			Subsystem: "aggregation",
			Name:      "lamports_credited_total",
			Help:      "Lamports credited to artist pending balances.",
		}),
		artistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streampay",
			Subsystem: "aggregation",
			Name:      "artist_failures_total",
			Help:      "Artists skipped by a cycle because their credit could not be written.",
		}),
		withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "streampay",
			Subsystem: "withdrawal",
			Name:      "requests_total",
			Help:      "Withdrawal requests segmented by outcome.",
		}, []string{"outcome"}),
		withdrawLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "streampay",
			Subsystem: "withdrawal",
			Name:      "duration_seconds",
			Help:      "Time from reservation to confirmation of successful withdrawals.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}),
		lamportsPaid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "streampay",
			Subsystem: "withdrawal",
			Name:      "lamports_paid_total",
			Help:      "Lamports transferred to artist wallets.",
		}),
		fundingBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "streampay",
			Subsystem: "withdrawal",
			Name:      "funding_balance_lamports",
			Help:      "Last observed balance of the platform funding account.",
		}),
		reconciled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "streampay",
			Subsystem: "reconcile",
			Name:      "withdrawals_total",
			Help:      "Open withdrawals resolved by reconciliation, segmented by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(
		m.cycles,
		m.artistsCredited,
		m.streamsSettled,
		m.lamportsCredited,
		m.artistFailures,
		m.withdrawals,
		m.withdrawLatency,
		m.lamportsPaid,
		m.fundingBalance,
		m.reconciled,
	)
	return m
}

// RecordCycle records a finished aggregation cycle.
func (m *Settlement) RecordCycle(outcome string, artists int, streams, lamports int64, failures int) {
	if m == nil {
		return
	}
	m.cycles.WithLabelValues(outcome).Inc()
	m.artistsCredited.Add(float64(artists))
	m.streamsSettled.Add(float64(streams))
	m.lamportsCredited.Add(float64(lamports))
	m.artistFailures.Add(float64(failures))
}

// RecordWithdrawal records the outcome of a withdrawal request. Latency and
// amount are only observed for completed withdrawals.
func (m *Settlement) RecordWithdrawal(outcome string, lamports int64, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.withdrawals.WithLabelValues(outcome).Inc()
	if outcome == OutcomeCompleted {
		m.withdrawLatency.Observe(elapsed.Seconds())
		m.lamportsPaid.Add(float64(lamports))
	}
}

// SetFundingBalance records the funding account balance.
func (m *Settlement) SetFundingBalance(lamports uint64) {
	if m == nil {
		return
	}
	m.fundingBalance.Set(float64(lamports))
}

// RecordReconciled records a withdrawal resolved by reconciliation.
func (m *Settlement) RecordReconciled(outcome string) {
	if m == nil {
		return
	}
	m.reconciled.WithLabelValues(outcome).Inc()
}

// Outcome labels.
const (
	OutcomeCompleted = "completed"
	OutcomePartial   = "partial"
	OutcomeFailed    = "failed"
	OutcomeRejected  = "rejected"
	OutcomeTimeout   = "timeout"
)
