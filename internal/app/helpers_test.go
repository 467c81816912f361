package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/cesargomez89/streampay/internal/chain"
	"github.com/cesargomez89/streampay/internal/domain"
	"github.com/cesargomez89/streampay/internal/logger"
	"github.com/cesargomez89/streampay/internal/store"
)

const (
	rate   = domain.Lamports(1_000_000) // 0.001 SOL
	wallet = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
)

var (
	dayStart = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	dayEnd   = dayStart.Add(24 * time.Hour)
)

func setupTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.NewSQLiteDB(filepath.Join(t.TempDir(), "test_app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedArtist(t *testing.T, db *store.DB, walletAddr string) (*domain.Artist, *domain.Track) {
	t.Helper()
	ctx := context.Background()
	artist := &domain.Artist{ArtistName: "Artist", WalletAddress: walletAddr}
	require.NoError(t, db.CreateArtist(ctx, artist))
	track := &domain.Track{ArtistID: artist.ID, Title: "Song", IPFSCID: "bafy", Duration: 200}
	require.NoError(t, db.CreateTrack(ctx, track))
	return artist, track
}

func seedStreams(t *testing.T, db *store.DB, trackID string, n int, at time.Time, completed bool) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, db.RecordStream(context.Background(), &domain.Stream{
			TrackID:          trackID,
			Completed:        completed,
			DurationListened: 200,
			StreamedAt:       at.Add(time.Duration(i) * time.Second),
		}))
	}
}

func newAggregator(db *store.DB, opts ...AggregatorOption) *Aggregator {
	return NewAggregator(db, logger.Discard(), append([]AggregatorOption{WithRate(rate)}, opts...)...)
}

func newWithdrawals(db *store.DB, client chain.Client, opts ...WithdrawalOption) *WithdrawalService {
	base := []WithdrawalOption{WithConfirmation(100*time.Millisecond, 5*time.Millisecond)}
	return NewWithdrawalService(db, client, logger.Discard(), append(base, opts...)...)
}

// fundedArtist seeds an artist with n settled streams.
func fundedArtist(t *testing.T, db *store.DB, n int) *domain.Artist {
	t.Helper()
	artist, track := seedArtist(t, db, wallet)
	seedStreams(t, db, track.ID, n, dayStart.Add(time.Hour), true)
	_, err := newAggregator(db).RunCycle(context.Background(), dayStart, dayEnd)
	require.NoError(t, err)
	fetched, err := db.GetArtist(context.Background(), artist.ID)
	require.NoError(t, err)
	return fetched
}
