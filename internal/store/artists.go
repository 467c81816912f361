package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cesargomez89/streampay/internal/domain"
)

const artistColumns = `id, user_id, artist_name, wallet_address, bio, avatar_url, verified,
	total_streams, total_earnings, pending_withdrawal, created_at, updated_at`

// CreateArtist inserts a new artist with zeroed counters.
func (db *DB) CreateArtist(ctx context.Context, artist *domain.Artist) error {
	if artist.ID == "" {
		artist.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	artist.CreatedAt = now
	artist.UpdatedAt = now
	artist.TotalStreams = 0
	artist.TotalEarnings = 0
	artist.PendingWithdrawal = 0

	query := `INSERT INTO artists (` + artistColumns + `) VALUES (
		:id, :user_id, :artist_name, :wallet_address, :bio, :avatar_url, :verified,
		:total_streams, :total_earnings, :pending_withdrawal, :created_at, :updated_at)`

	if _, err := db.NamedExecContext(ctx, query, artist); err != nil {
		return fmt.Errorf("failed to create artist: %w", err)
	}
	return nil
}

func (db *DB) GetArtist(ctx context.Context, id string) (*domain.Artist, error) {
	artist := &domain.Artist{}
	err := db.GetContext(ctx, artist, db.Rebind(`SELECT `+artistColumns+` FROM artists WHERE id = ?`), id)
	if err != nil {
		return nil, notFound(err, "artist "+id)
	}
	return artist, nil
}

func (db *DB) ListArtists(ctx context.Context) ([]*domain.Artist, error) {
	var artists []*domain.Artist
	err := db.SelectContext(ctx, &artists, `SELECT `+artistColumns+` FROM artists ORDER BY artist_name`)
	return artists, err
}

// UpdateWallet changes the payout destination. Not allowed while a withdrawal is open.
func (db *DB) UpdateWallet(ctx context.Context, artistID, wallet string) error {
	return db.RunInTx(ctx, func(tx *sqlx.Tx) error {
		var open int
		if err := tx.GetContext(ctx, &open, tx.Rebind(`SELECT COUNT(*) FROM payments
			WHERE artist_id = ? AND kind = ? AND status = ?`),
			artistID, domain.PaymentKindWithdrawal, domain.PaymentStatusPending); err != nil {
			return err
		}
		if open > 0 {
			return fmt.Errorf("withdrawal in progress: %w", ErrConflict)
		}

		res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE artists SET wallet_address = ?, updated_at = ? WHERE id = ?`),
			wallet, time.Now().UTC(), artistID)
		if err != nil {
			return err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("artist %s: %w", artistID, ErrNotFound)
		}
		return nil
	})
}
