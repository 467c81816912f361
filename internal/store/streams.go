package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cesargomez89/streampay/internal/domain"
)

const streamColumns = `id, track_id, listener_id, completed, duration_listened, streamed_at, settled_payment_id`

// RecordStream inserts a listening event. The track must exist.
func (db *DB) RecordStream(ctx context.Context, stream *domain.Stream) error {
	if stream.ID == "" {
		stream.ID = uuid.New().String()
	}
	if stream.StreamedAt.IsZero() {
		stream.StreamedAt = time.Now()
	}
	stream.StreamedAt = stream.StreamedAt.UTC()
	stream.SettledPaymentID = nil

	if _, err := db.GetTrack(ctx, stream.TrackID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to look up track: %w", err)
	}

	query := `INSERT INTO streams (` + streamColumns + `)
		VALUES (:id, :track_id, :listener_id, :completed, :duration_listened, :streamed_at, :settled_payment_id)`

	if _, err := db.NamedExecContext(ctx, query, stream); err != nil {
		return fmt.Errorf("failed to record stream: %w", err)
	}
	return nil
}

func (db *DB) GetStream(ctx context.Context, id string) (*domain.Stream, error) {
	stream := &domain.Stream{}
	err := db.GetContext(ctx, stream, db.Rebind(`SELECT `+streamColumns+` FROM streams WHERE id = ?`), id)
	if err != nil {
		return nil, notFound(err, "stream "+id)
	}
	return stream, nil
}

// ArtistStreamCount is the number of unsettled completed streams for one
// artist inside an aggregation window.
type ArtistStreamCount struct {
	ArtistID      string `db:"artist_id"`
	WalletAddress string `db:"wallet_address"`
	StreamCount   int64  `db:"stream_count"`
}

// CountUnsettledByArtist groups completed, not yet settled streams in
// [start, end) by the owning artist.
func (db *DB) CountUnsettledByArtist(ctx context.Context, start, end time.Time) ([]ArtistStreamCount, error) {
	query := `SELECT t.artist_id AS artist_id, a.wallet_address AS wallet_address, COUNT(s.id) AS stream_count
		FROM streams s
		JOIN tracks t ON t.id = s.track_id
		JOIN artists a ON a.id = t.artist_id
		WHERE s.completed = ? AND s.settled_payment_id IS NULL
			AND s.streamed_at >= ? AND s.streamed_at < ?
		GROUP BY t.artist_id, a.wallet_address
		ORDER BY t.artist_id`

	var counts []ArtistStreamCount
	err := db.SelectContext(ctx, &counts, db.Rebind(query), true, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to count unsettled streams: %w", err)
	}
	return counts, nil
}

// CountUnsettled returns how many completed streams in [start, end) are still unsettled.
func (db *DB) CountUnsettled(ctx context.Context, start, end time.Time) (int64, error) {
	var n int64
	err := db.GetContext(ctx, &n, db.Rebind(`SELECT COUNT(*) FROM streams
		WHERE completed = ? AND settled_payment_id IS NULL AND streamed_at >= ? AND streamed_at < ?`),
		true, start.UTC(), end.UTC())
	return n, err
}
