package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/cesargomez89/streampay/internal/constants"
	"github.com/cesargomez89/streampay/internal/domain"
)

const paymentColumns = `id, artist_id, track_id, kind, amount, status, stage, transaction_signature,
	destination, last_valid_height, error, processed_at, created_at, updated_at`

func insertPayment(ctx context.Context, e sqlx.ExtContext, p *domain.Payment) error {
	query := `INSERT INTO payments (` + paymentColumns + `) VALUES (
		:id, :artist_id, :track_id, :kind, :amount, :status, :stage, :transaction_signature,
		:destination, :last_valid_height, :error, :processed_at, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, e, query, p); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert payment: %w", ErrConflict)
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (db *DB) GetPayment(ctx context.Context, id string) (*domain.Payment, error) {
	p := &domain.Payment{}
	err := db.GetContext(ctx, p, db.Rebind(`SELECT `+paymentColumns+` FROM payments WHERE id = ?`), id)
	if err != nil {
		return nil, notFound(err, "payment "+id)
	}
	return p, nil
}

// ListPayments returns an artist's most recent payments, newest first.
func (db *DB) ListPayments(ctx context.Context, artistID string, limit int) ([]*domain.Payment, error) {
	if limit <= 0 {
		limit = constants.RecentPaymentsLimit
	}
	var payments []*domain.Payment
	err := db.SelectContext(ctx, &payments, db.Rebind(`SELECT `+paymentColumns+` FROM payments
		WHERE artist_id = ? ORDER BY created_at DESC LIMIT ?`), artistID, limit)
	return payments, err
}

// ListOpenWithdrawals returns every withdrawal that has not reached a terminal state, oldest first.
func (db *DB) ListOpenWithdrawals(ctx context.Context) ([]*domain.Payment, error) {
	var payments []*domain.Payment
	err := db.SelectContext(ctx, &payments, db.Rebind(`SELECT `+paymentColumns+` FROM payments
		WHERE kind = ? AND status = ? ORDER BY created_at ASC`),
		domain.PaymentKindWithdrawal, domain.PaymentStatusPending)
	return payments, err
}

// ReserveWithdrawal opens a withdrawal for the artist's whole pending balance.
// Inside one transaction it loads the artist, runs check against that
// snapshot, and inserts a pending withdrawal payment at stage reserved.
// Errors returned by check are passed through unchanged and nothing is
// written. Returns ErrNotFound for an unknown artist and ErrConflict when a
// withdrawal is already open.
func (db *DB) ReserveWithdrawal(ctx context.Context, artistID string, check func(*domain.Artist) error) (*domain.Payment, error) {
	var payment *domain.Payment

	err := db.RunInTx(ctx, func(tx *sqlx.Tx) error {
		query := `SELECT ` + artistColumns + ` FROM artists WHERE id = ?`
		if tx.DriverName() == constants.DriverPostgres {
			query += ` FOR UPDATE`
		}

		artist := &domain.Artist{}
		if err := tx.GetContext(ctx, artist, tx.Rebind(query), artistID); err != nil {
			return notFound(err, "artist "+artistID)
		}

		if check != nil {
			if err := check(artist); err != nil {
				return err
			}
		}

		var open int
		if err := tx.GetContext(ctx, &open, tx.Rebind(`SELECT COUNT(*) FROM payments
			WHERE artist_id = ? AND kind = ? AND status = ?`),
			artistID, domain.PaymentKindWithdrawal, domain.PaymentStatusPending); err != nil {
			return fmt.Errorf("check open withdrawals: %w", err)
		}
		if open > 0 {
			return fmt.Errorf("artist %s has an open withdrawal: %w", artistID, ErrConflict)
		}

		now := time.Now().UTC()
		dest := artist.WalletAddress
		payment = &domain.Payment{
			ID:          uuid.New().String(),
			ArtistID:    artistID,
			Kind:        domain.PaymentKindWithdrawal,
			Amount:      artist.PendingWithdrawal,
			Status:      domain.PaymentStatusPending,
			Stage:       domain.StageReserved,
			Destination: &dest,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		return insertPayment(ctx, tx, payment)
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// MarkWithdrawalSubmitted records the signature and the last block height at
// which the transaction can land, before it is sent to the network.
func (db *DB) MarkWithdrawalSubmitted(ctx context.Context, paymentID, signature string, lastValidHeight uint64) error {
	res, err := db.ExecContext(ctx, db.Rebind(`UPDATE payments
		SET stage = ?, transaction_signature = ?, last_valid_height = ?, updated_at = ?
		WHERE id = ? AND status = ? AND stage = ?`),
		domain.StageSubmitted, signature, int64(lastValidHeight), time.Now().UTC(),
		paymentID, domain.PaymentStatusPending, domain.StageReserved)
	if err != nil {
		return fmt.Errorf("mark withdrawal submitted: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("payment %s is not awaiting submission: %w", paymentID, ErrConflict)
	}
	return nil
}

// CompleteWithdrawal finalizes a confirmed withdrawal. The artist's pending
// balance is decremented by the reserved amount only if it still covers it,
// and the payment flips to completed in the same transaction. Completing an
// already completed payment returns it unchanged.
func (db *DB) CompleteWithdrawal(ctx context.Context, paymentID string, processedAt time.Time) (*domain.Payment, error) {
	processedAt = processedAt.UTC()
	var payment *domain.Payment

	err := db.RunInTx(ctx, func(tx *sqlx.Tx) error {
		p := &domain.Payment{}
		if err := tx.GetContext(ctx, p, tx.Rebind(`SELECT `+paymentColumns+` FROM payments WHERE id = ?`), paymentID); err != nil {
			return notFound(err, "payment "+paymentID)
		}
		if p.Kind != domain.PaymentKindWithdrawal {
			return fmt.Errorf("payment %s is not a withdrawal: %w", paymentID, ErrConflict)
		}
		if !p.IsOpen() {
			if p.Status == domain.PaymentStatusCompleted {
				payment = p
				return nil
			}
			return fmt.Errorf("payment %s already %s: %w", paymentID, p.Status, ErrConflict)
		}

		res, err := tx.ExecContext(ctx, tx.Rebind(`UPDATE artists
			SET pending_withdrawal = pending_withdrawal - ?, updated_at = ?
			WHERE id = ? AND pending_withdrawal >= ?`),
			p.Amount, processedAt, p.ArtistID, p.Amount)
		if err != nil {
			return fmt.Errorf("debit pending balance: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("pending balance of artist %s below %d: %w", p.ArtistID, p.Amount, ErrConflict)
		}

		res, err = tx.ExecContext(ctx, tx.Rebind(`UPDATE payments
			SET status = ?, stage = ?, processed_at = ?, updated_at = ?
			WHERE id = ? AND status = ?`),
			domain.PaymentStatusCompleted, domain.StageCompleted, processedAt, processedAt,
			paymentID, domain.PaymentStatusPending)
		if err != nil {
			return fmt.Errorf("complete payment: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("payment %s changed concurrently: %w", paymentID, ErrConflict)
		}

		p.Status = domain.PaymentStatusCompleted
		p.Stage = domain.StageCompleted
		p.ProcessedAt = &processedAt
		p.UpdatedAt = processedAt
		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// FailWithdrawal marks an open withdrawal as failed. The artist's balance is
// never touched. A completed payment can not be failed.
func (db *DB) FailWithdrawal(ctx context.Context, paymentID, reason string, at time.Time) error {
	at = at.UTC()
	res, err := db.ExecContext(ctx, db.Rebind(`UPDATE payments
		SET status = ?, stage = ?, error = ?, processed_at = ?, updated_at = ?
		WHERE id = ? AND kind = ? AND status = ?`),
		domain.PaymentStatusFailed, domain.StageFailed, reason, at, at,
		paymentID, domain.PaymentKindWithdrawal, domain.PaymentStatusPending)
	if err != nil {
		return fmt.Errorf("fail withdrawal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := db.GetPayment(ctx, paymentID); errors.Is(err, ErrNotFound) {
			return err
		}
		return fmt.Errorf("payment %s is not open: %w", paymentID, ErrConflict)
	}
	return nil
}
