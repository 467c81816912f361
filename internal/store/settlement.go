package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cesargomez89/streampay/internal/domain"
)

// SettlementBatch identifies the streams of one artist to credit in one cycle.
type SettlementBatch struct {
	ArtistID    string
	WindowStart time.Time
	WindowEnd   time.Time
	Rate        domain.Lamports
	FeePercent  int
}

// SettleArtistStreams credits an artist for every completed, unsettled
// stream of theirs in the batch window. In a single transaction it claims
// the streams by stamping them with a new payment id, inserts the pending
// accrual payment, increments the artist's counters and bumps each track's
// stream_count. The credit is computed from the rows actually claimed, so a
// stream claimed by an overlapping cycle is never paid twice.
//
// Returns ErrNothingToSettle when no stream could be claimed.
func (db *DB) SettleArtistStreams(ctx context.Context, b SettlementBatch) (*domain.ArtistCredit, error) {
	paymentID := uuid.New().String()
	now := time.Now().UTC()
	var credit *domain.ArtistCredit

	err := db.RunInTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE streams SET settled_payment_id = ?
			WHERE settled_payment_id IS NULL AND completed = ?
				AND streamed_at >= ? AND streamed_at < ?
				AND track_id IN (SELECT id FROM tracks WHERE artist_id = ?)`),
			paymentID, true, b.WindowStart.UTC(), b.WindowEnd.UTC(), b.ArtistID)
		if err != nil {
			return fmt.Errorf("claim streams: %w", err)
		}
		claimed, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("claim streams: %w", err)
		}
		if claimed == 0 {
			return ErrNothingToSettle
		}

		gross, fee, net := domain.Accrual(claimed, b.Rate, b.FeePercent)

		payment := &domain.Payment{
			ID:        paymentID,
			ArtistID:  b.ArtistID,
			Kind:      domain.PaymentKindAccrual,
			Amount:    net,
			Status:    domain.PaymentStatusPending,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := insertPayment(ctx, tx, payment); err != nil {
			return err
		}

		res, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE artists SET
				total_streams = total_streams + ?,
				total_earnings = total_earnings + ?,
				pending_withdrawal = pending_withdrawal + ?,
				updated_at = ?
			WHERE id = ?`),
			claimed, net, net, now, b.ArtistID)
		if err != nil {
			return fmt.Errorf("credit artist: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("artist %s: %w", b.ArtistID, ErrNotFound)
		}

		if _, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE tracks SET stream_count = stream_count + (
				SELECT COUNT(*) FROM streams WHERE streams.track_id = tracks.id AND streams.settled_payment_id = ?)
			WHERE artist_id = ?`),
			paymentID, b.ArtistID); err != nil {
			return fmt.Errorf("update track counts: %w", err)
		}

		var wallet string
		if err := tx.GetContext(ctx, &wallet, tx.Rebind(`SELECT wallet_address FROM artists WHERE id = ?`), b.ArtistID); err != nil {
			return fmt.Errorf("load wallet: %w", err)
		}

		credit = &domain.ArtistCredit{
			ArtistID:      b.ArtistID,
			Wallet:        wallet,
			PaymentID:     paymentID,
			StreamCount:   claimed,
			GrossAmount:   gross,
			FeeAmount:     fee,
			PaymentAmount: net,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return credit, nil
}
