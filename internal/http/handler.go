package httpapp

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cesargomez89/streampay/internal/domain"
	"github.com/cesargomez89/streampay/internal/logger"
	"github.com/cesargomez89/streampay/internal/store"
)

type Aggregator interface {
	RunDefault(ctx context.Context) (*domain.AggregationReport, error)
}

type Withdrawer interface {
	Withdraw(ctx context.Context, artistID, wallet string) (*domain.WithdrawalResult, error)
}

type Reconciler interface {
	Run(ctx context.Context) (*domain.ReconcileReport, error)
}

type Ledger interface {
	RegisterArtist(ctx context.Context, artist *domain.Artist) (*domain.Artist, error)
	AddTrack(ctx context.Context, track *domain.Track) (*domain.Track, error)
	RecordStream(ctx context.Context, stream *domain.Stream) (*domain.Stream, error)
	Earnings(ctx context.Context, artistID string) (*domain.EarningsSummary, error)
	ListRuns(ctx context.Context) ([]*domain.AggregationRun, error)
	GetRun(ctx context.Context, id string) (*domain.AggregationRun, error)
	GetRunStats(ctx context.Context) (*store.RunStats, error)
	GetTrack(ctx context.Context, id string) (*domain.Track, error)
	ListArtists(ctx context.Context) ([]*domain.Artist, error)
	ListTracks(ctx context.Context, artistID string) ([]*domain.Track, error)
	UpdateWallet(ctx context.Context, artistID, wallet string) (*domain.Artist, error)
	GetStream(ctx context.Context, id string) (*domain.Stream, error)
	Backlog(ctx context.Context) (int64, error)
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	Aggregator  Aggregator
	Withdrawals Withdrawer
	Reconciler  Reconciler
	Ledger      Ledger
	DB          Pinger
	Limiter     *RateLimiter
	Gatherer    prometheus.Gatherer
	Logger      *logger.Logger
}

func NewHandler(agg Aggregator, wd Withdrawer, rec Reconciler, ledger Ledger, db Pinger, limiter *RateLimiter) *Handler {
	return &Handler{
		Aggregator:  agg,
		Withdrawals: wd,
		Reconciler:  rec,
		Ledger:      ledger,
		DB:          db,
		Limiter:     limiter,
		Gatherer:    prometheus.DefaultGatherer,
		Logger:      logger.Default().WithComponent("http"),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Use(CORS)
	r.Use(middleware.StripSlashes)

	r.Post("/aggregate", h.Aggregate)
	r.With(h.Limiter.Handler).Post("/withdraw", h.Withdraw)
	r.Post("/reconcile", h.Reconcile)
	r.Get("/aggregations", h.Aggregations)
	r.Get("/aggregations/{id}", h.GetAggregation)

	r.Route("/artists", func(r chi.Router) {
		r.Get("/", h.ListArtists)
		r.Post("/", h.CreateArtist)
		r.Get("/{id}/earnings", h.Earnings)
		r.Put("/{id}/wallet", h.UpdateWallet)
		r.Get("/{id}/tracks", h.ListTracks)
		r.Post("/{id}/tracks", h.CreateTrack)
	})
	r.Post("/streams", h.RecordStream)
	r.Get("/streams/{id}", h.GetStream)
	r.Get("/tracks/{id}", h.GetTrack)

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(h.Gatherer, promhttp.HandlerOpts{}))
}
