package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/cesargomez89/streampay/internal/domain"
)

const trackColumns = `id, artist_id, title, ipfs_cid, duration, genre, stream_count, created_at`

func (db *DB) CreateTrack(ctx context.Context, track *domain.Track) error {
	if track.ID == "" {
		track.ID = uuid.New().String()
	}
	track.CreatedAt = time.Now().UTC()
	track.StreamCount = 0

	query := `INSERT INTO tracks (` + trackColumns + `)
		VALUES (:id, :artist_id, :title, :ipfs_cid, :duration, :genre, :stream_count, :created_at)`

	if _, err := db.NamedExecContext(ctx, query, track); err != nil {
		return fmt.Errorf("failed to create track: %w", err)
	}
	return nil
}

func (db *DB) GetTrack(ctx context.Context, id string) (*domain.Track, error) {
	track := &domain.Track{}
	err := db.GetContext(ctx, track, db.Rebind(`SELECT `+trackColumns+` FROM tracks WHERE id = ?`), id)
	if err != nil {
		return nil, notFound(err, "track "+id)
	}
	return track, nil
}

func (db *DB) ListTracksByArtist(ctx context.Context, artistID string) ([]*domain.Track, error) {
	var tracks []*domain.Track
	err := db.SelectContext(ctx, &tracks,
		db.Rebind(`SELECT `+trackColumns+` FROM tracks WHERE artist_id = ? ORDER BY created_at`), artistID)
	return tracks, err
}
