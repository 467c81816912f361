package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cesargomez89/streampay/internal/constants"
	"github.com/cesargomez89/streampay/internal/domain"
	"github.com/cesargomez89/streampay/internal/logger"
	"github.com/cesargomez89/streampay/internal/store"
)

// LedgerService covers the read side of the ledger and the write paths that
// feed aggregation: artist and track registration and stream events.
type LedgerService struct {
	Repo        *store.DB
	Logger      *logger.Logger
	settings    *store.SettingsRepo
	staleRunAge time.Duration
	now         func() time.Time
}

type LedgerOption func(*LedgerService)

// WithStaleRunAge sets how old a running aggregation must be before
// RecoverRuns treats it as abandoned.
func WithStaleRunAge(d time.Duration) LedgerOption {
	return func(s *LedgerService) { s.staleRunAge = d }
}

func WithLedgerClock(now func() time.Time) LedgerOption {
	return func(s *LedgerService) { s.now = now }
}

func NewLedgerService(repo *store.DB, log *logger.Logger, opts ...LedgerOption) *LedgerService {
	s := &LedgerService{
		Repo:        repo,
		Logger:      log.WithComponent("ledger"),
		settings:    store.NewSettingsRepo(repo),
		staleRunAge: constants.DefaultJobTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *LedgerService) RegisterArtist(ctx context.Context, artist *domain.Artist) (*domain.Artist, error) {
	artist.ArtistName = strings.TrimSpace(artist.ArtistName)
	artist.WalletAddress = strings.TrimSpace(artist.WalletAddress)
	if artist.ArtistName == "" {
		return nil, &ValidationError{Field: "artist_name", Message: "is required"}
	}
	if artist.WalletAddress == "" {
		return nil, &ValidationError{Field: "wallet_address", Message: "is required"}
	}

	if err := s.Repo.CreateArtist(ctx, artist); err != nil {
		return nil, err
	}
	s.Logger.Info("Artist registered", "artist_id", artist.ID)
	return artist, nil
}

func (s *LedgerService) AddTrack(ctx context.Context, track *domain.Track) (*domain.Track, error) {
	track.Title = strings.TrimSpace(track.Title)
	if track.Title == "" {
		return nil, &ValidationError{Field: "title", Message: "is required"}
	}
	if track.Duration < 0 {
		return nil, &ValidationError{Field: "duration", Message: "cannot be negative"}
	}
	if _, err := s.Repo.GetArtist(ctx, track.ArtistID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrArtistNotFound
		}
		return nil, err
	}

	if err := s.Repo.CreateTrack(ctx, track); err != nil {
		return nil, err
	}
	return track, nil
}

// RecordStream stores a listening event. Only completed streams are ever
// credited; the completed flag is taken as reported by the player.
func (s *LedgerService) RecordStream(ctx context.Context, stream *domain.Stream) (*domain.Stream, error) {
	if strings.TrimSpace(stream.TrackID) == "" {
		return nil, &ValidationError{Field: "track_id", Message: "is required"}
	}
	if stream.DurationListened < 0 {
		return nil, &ValidationError{Field: "duration_listened", Message: "cannot be negative"}
	}
	if stream.StreamedAt.After(s.now().Add(time.Minute)) {
		return nil, &ValidationError{Field: "streamed_at", Message: "cannot be in the future"}
	}
	if !stream.StreamedAt.IsZero() {
		// No later cycle reaches back past the last clean window end.
		settled, err := s.settings.Time(ctx, store.SettingLastAggregationEnd)
		if err != nil {
			return nil, err
		}
		if !settled.IsZero() && stream.StreamedAt.Before(settled) {
			return nil, &ValidationError{Field: "streamed_at", Message: "falls in an already settled window"}
		}
	}

	if err := s.Repo.RecordStream(ctx, stream); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &ValidationError{Field: "track_id", Message: "unknown track"}
		}
		return nil, err
	}
	return stream, nil
}

// Earnings returns an artist's balances and most recent payments.
func (s *LedgerService) Earnings(ctx context.Context, artistID string) (*domain.EarningsSummary, error) {
	artist, err := s.Repo.GetArtist(ctx, artistID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrArtistNotFound
		}
		return nil, fmt.Errorf("failed to load artist: %w", err)
	}

	payments, err := s.Repo.ListPayments(ctx, artistID, constants.RecentPaymentsLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to load payments: %w", err)
	}
	if payments == nil {
		payments = []*domain.Payment{}
	}

	return &domain.EarningsSummary{
		ArtistID:          artist.ID,
		ArtistName:        artist.ArtistName,
		WalletAddress:     artist.WalletAddress,
		TotalStreams:      artist.TotalStreams,
		TotalEarnings:     artist.TotalEarnings,
		TotalEarningsSOL:  artist.TotalEarnings.SOL(),
		PendingWithdrawal: artist.PendingWithdrawal,
		PendingSOL:        artist.PendingWithdrawal.SOL(),
		RecentPayments:    payments,
	}, nil
}

func (s *LedgerService) ListRuns(ctx context.Context) ([]*domain.AggregationRun, error) {
	return s.Repo.ListRuns(ctx, constants.RecentRunsLimit)
}

func (s *LedgerService) GetRun(ctx context.Context, id string) (*domain.AggregationRun, error) {
	return s.Repo.GetRun(ctx, id)
}

func (s *LedgerService) GetTrack(ctx context.Context, id string) (*domain.Track, error) {
	return s.Repo.GetTrack(ctx, id)
}

func (s *LedgerService) GetRunStats(ctx context.Context) (*store.RunStats, error) {
	return s.Repo.GetRunStats(ctx)
}

// RecoverRuns fails runs interrupted by a previous crash. Only runs older
// than the stale age are touched; younger ones may belong to another
// instance sharing the database.
func (s *LedgerService) RecoverRuns(ctx context.Context) error {
	n, err := s.Repo.ResetStuckRuns(ctx, s.now().Add(-s.staleRunAge))
	if err != nil {
		return err
	}
	if n > 0 {
		s.Logger.Warn("Marked interrupted aggregation runs as failed", "count", n)
	}
	return nil
}

func (s *LedgerService) ListArtists(ctx context.Context) ([]*domain.Artist, error) {
	artists, err := s.Repo.ListArtists(ctx)
	if err != nil {
		return nil, err
	}
	if artists == nil {
		artists = []*domain.Artist{}
	}
	return artists, nil
}

func (s *LedgerService) ListTracks(ctx context.Context, artistID string) ([]*domain.Track, error) {
	if _, err := s.Repo.GetArtist(ctx, artistID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrArtistNotFound
		}
		return nil, err
	}
	tracks, err := s.Repo.ListTracksByArtist(ctx, artistID)
	if err != nil {
		return nil, err
	}
	if tracks == nil {
		tracks = []*domain.Track{}
	}
	return tracks, nil
}

// UpdateWallet changes where future withdrawals are paid. It is refused
// while a withdrawal for the artist is still open.
func (s *LedgerService) UpdateWallet(ctx context.Context, artistID, wallet string) (*domain.Artist, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return nil, &ValidationError{Field: "wallet_address", Message: "is required"}
	}
	if err := s.Repo.UpdateWallet(ctx, artistID, wallet); err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrArtistNotFound
		case errors.Is(err, store.ErrConflict):
			return nil, ErrWithdrawalInFlight
		}
		return nil, err
	}
	s.Logger.WithArtist(artistID).Info("Payout wallet updated")
	return s.Repo.GetArtist(ctx, artistID)
}

func (s *LedgerService) GetStream(ctx context.Context, id string) (*domain.Stream, error) {
	return s.Repo.GetStream(ctx, id)
}

// Backlog counts completed streams recorded before now that no cycle has settled yet.
func (s *LedgerService) Backlog(ctx context.Context) (int64, error) {
	return s.Repo.CountUnsettled(ctx, time.Unix(0, 0).UTC(), time.Now().UTC().Add(time.Minute))
}
