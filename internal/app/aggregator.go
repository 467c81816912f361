package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cesargomez89/streampay/internal/constants"
	"github.com/cesargomez89/streampay/internal/domain"
	"github.com/cesargomez89/streampay/internal/logger"
	"github.com/cesargomez89/streampay/internal/metrics"
	"github.com/cesargomez89/streampay/internal/store"
)

// AggregationStore is the ledger surface used by the aggregator.
type AggregationStore interface {
	CountUnsettledByArtist(ctx context.Context, start, end time.Time) ([]store.ArtistStreamCount, error)
	SettleArtistStreams(ctx context.Context, b store.SettlementBatch) (*domain.ArtistCredit, error)
	CreateRun(ctx context.Context, run *domain.AggregationRun) error
	FinishRun(ctx context.Context, run *domain.AggregationRun) error
}

// Settings persists small pieces of state between runs.
type Settings interface {
	Time(ctx context.Context, key string) (time.Time, error)
	SetTime(ctx context.Context, key string, t time.Time) error
}

// Aggregator converts completed streams into pending artist earnings.
type Aggregator struct {
	Repo       AggregationStore
	Logger     *logger.Logger
	settings   Settings
	metrics    *metrics.Settlement
	rate       domain.Lamports
	feePercent int
	window     time.Duration
	now        func() time.Time
}

type AggregatorOption func(*Aggregator)

// WithRate sets the per-stream rate in lamports.
func WithRate(rate domain.Lamports) AggregatorOption {
	return func(a *Aggregator) { a.rate = rate }
}

// WithFeePercent sets the platform fee withheld from each credit.
func WithFeePercent(percent int) AggregatorOption {
	return func(a *Aggregator) { a.feePercent = percent }
}

// WithWindow sets the window length used by RunDefault.
func WithWindow(d time.Duration) AggregatorOption {
	return func(a *Aggregator) { a.window = d }
}

// WithSettings lets RunDefault resume from the end of the last clean cycle.
func WithSettings(s Settings) AggregatorOption {
	return func(a *Aggregator) { a.settings = s }
}

func WithAggregatorMetrics(m *metrics.Settlement) AggregatorOption {
	return func(a *Aggregator) { a.metrics = m }
}

func WithAggregatorClock(now func() time.Time) AggregatorOption {
	return func(a *Aggregator) { a.now = now }
}

func NewAggregator(repo AggregationStore, log *logger.Logger, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		Repo:   repo,
		Logger: log.WithComponent("aggregator"),
		rate:   constants.DefaultRateLamports,
		window: constants.DefaultAggregationWindow,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RunDefault aggregates the window ending now. If the previous clean cycle
// ended before the start of that window, the window is stretched back to it
// so no stream falls between cycles.
func (a *Aggregator) RunDefault(ctx context.Context) (*domain.AggregationReport, error) {
	end := a.now().UTC()
	start := end.Add(-a.window)

	if a.settings != nil {
		last, err := a.settings.Time(ctx, store.SettingLastAggregationEnd)
		switch {
		case err != nil:
			a.Logger.Warn("Failed to read last aggregation end", "error", err)
		case !last.IsZero() && last.Before(start):
			start = last
		}
	}

	return a.RunCycle(ctx, start, end)
}

// RunCycle credits every artist with completed, unsettled streams in
// [start, end). Each artist is settled in its own transaction; a failure
// for one artist is recorded in the report and the cycle moves on. Streams
// of a failed artist stay unsettled for a later cycle.
func (a *Aggregator) RunCycle(ctx context.Context, start, end time.Time) (*domain.AggregationReport, error) {
	start, end = start.UTC(), end.UTC()
	if !end.After(start) {
		return nil, &ValidationError{Field: "window", Message: "window end must be after window start"}
	}

	run := &domain.AggregationRun{
		ID:          uuid.New().String(),
		WindowStart: start,
		WindowEnd:   end,
		Status:      domain.RunStatusRunning,
		CreatedAt:   a.now().UTC(),
	}
	if err := a.Repo.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to record aggregation run: %w", err)
	}

	log := a.Logger.WithRun(run.ID)
	log.Info("Aggregation cycle started", "window_start", start, "window_end", end)

	report := &domain.AggregationReport{
		RunID:       run.ID,
		WindowStart: start,
		WindowEnd:   end,
		Payments:    []domain.ArtistCredit{},
	}

	counts, err := a.Repo.CountUnsettledByArtist(ctx, start, end)
	if err != nil {
		a.finish(ctx, run, report, err)
		return nil, fmt.Errorf("failed to select streams: %w", err)
	}

	for _, c := range counts {
		if err := ctx.Err(); err != nil {
			a.finish(ctx, run, report, err)
			return report, fmt.Errorf("aggregation cancelled: %w", err)
		}
		if c.StreamCount <= 0 {
			continue
		}

		credit, err := a.Repo.SettleArtistStreams(ctx, store.SettlementBatch{
			ArtistID:    c.ArtistID,
			WindowStart: start,
			WindowEnd:   end,
			Rate:        a.rate,
			FeePercent:  a.feePercent,
		})
		if errors.Is(err, store.ErrNothingToSettle) {
			// Claimed by an overlapping cycle between count and settle.
			log.Debug("Streams already settled", "artist_id", c.ArtistID)
			continue
		}
		if err != nil {
			log.Error("Failed to credit artist", "artist_id", c.ArtistID, "streams", c.StreamCount, "error", err)
			report.Failures = append(report.Failures, domain.ArtistFailure{
				ArtistID:    c.ArtistID,
				StreamCount: c.StreamCount,
				Error:       err.Error(),
			})
			continue
		}

		report.Add(*credit)
		log.Info("Artist credited",
			"artist_id", credit.ArtistID,
			"streams", credit.StreamCount,
			"lamports", credit.PaymentAmount,
			"fee", credit.FeeAmount,
			"payment_id", credit.PaymentID)
	}

	a.finish(ctx, run, report, nil)

	if !report.Partial() && a.settings != nil {
		if err := a.settings.SetTime(ctx, store.SettingLastAggregationEnd, end); err != nil {
			log.Warn("Failed to store last aggregation end", "error", err)
		}
	}

	log.Info("Aggregation cycle finished",
		"artists", report.ProcessedArtists,
		"streams", report.TotalStreams,
		"lamports", report.TotalAmount,
		"failures", len(report.Failures))

	return report, nil
}

func (a *Aggregator) finish(ctx context.Context, run *domain.AggregationRun, report *domain.AggregationReport, cause error) {
	run.Artists = report.ProcessedArtists
	run.Streams = report.TotalStreams
	run.Amount = report.TotalAmount
	run.Failures = len(report.Failures)

	outcome := metrics.OutcomeCompleted
	switch {
	case cause != nil:
		msg := cause.Error()
		run.Error = &msg
		run.Status = domain.RunStatusFailed
		outcome = metrics.OutcomeFailed
	case report.Partial():
		run.Status = domain.RunStatusPartial
		outcome = metrics.OutcomePartial
	default:
		run.Status = domain.RunStatusCompleted
	}

	finishedAt := a.now().UTC()
	run.FinishedAt = &finishedAt

	// The run row is bookkeeping; write it even if the caller gave up.
	if err := a.Repo.FinishRun(context.WithoutCancel(ctx), run); err != nil {
		a.Logger.Error("Failed to record run result", "run_id", run.ID, "error", err)
	}
	a.metrics.RecordCycle(outcome, report.ProcessedArtists, report.TotalStreams, int64(report.TotalAmount), len(report.Failures))
}
