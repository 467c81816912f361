package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesargomez89/streampay/internal/domain"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return Wrap(sqlDB, "postgres"), mock
}

func paymentRow(id, artistID string, amount int64, status domain.PaymentStatus) *sqlmock.Rows {
	now := time.Now().UTC()
	return sqlmock.NewRows([]string{
		"id", "artist_id", "track_id", "kind", "amount", "status", "stage", "transaction_signature",
		"destination", "last_valid_height", "error", "processed_at", "created_at", "updated_at",
	}).AddRow(id, artistID, nil, string(domain.PaymentKindWithdrawal), amount, string(status),
		string(domain.StageSubmitted), "sig-1", "WalletA", int64(100), nil, nil, now, now)
}

func TestCompleteWithdrawal_BalanceConflictRollsBack(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT .+ FROM payments WHERE id = \$1`).
		WithArgs("pay-1").
		WillReturnRows(paymentRow("pay-1", "artist-1", 500, domain.PaymentStatusPending))
	mock.ExpectExec(`UPDATE artists\s+SET pending_withdrawal = pending_withdrawal - \$1, updated_at = \$2\s+WHERE id = \$3 AND pending_withdrawal >= \$4`).
		WithArgs(int64(500), sqlmock.AnyArg(), "artist-1", int64(500)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := db.CompleteWithdrawal(context.Background(), "pay-1", time.Now())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict), "expected ErrConflict, got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReserveWithdrawal_UniqueViolationIsConflict(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)SELECT .+ FROM artists WHERE id = \$1 FOR UPDATE`).
		WithArgs("artist-1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "artist_name", "wallet_address", "bio", "avatar_url", "verified",
			"total_streams", "total_earnings", "pending_withdrawal", "created_at", "updated_at",
		}).AddRow("artist-1", "user-1", "Artist", "WalletA", nil, nil, false, int64(5), int64(500), int64(500), now, now))
	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM payments`).
		WithArgs("artist-1", string(domain.PaymentKindWithdrawal), string(domain.PaymentStatusPending)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO payments`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	_, err := db.ReserveWithdrawal(context.Background(), "artist-1", nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrConflict), "expected ErrConflict, got %v", err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkWithdrawalSubmitted_Rebinds(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectExec(`UPDATE payments\s+SET stage = \$1, transaction_signature = \$2, last_valid_height = \$3, updated_at = \$4\s+WHERE id = \$5 AND status = \$6 AND stage = \$7`).
		WithArgs(string(domain.StageSubmitted), "sig-1", int64(4242), sqlmock.AnyArg(),
			"pay-1", string(domain.PaymentStatusPending), string(domain.StageReserved)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, db.MarkWithdrawalSubmitted(context.Background(), "pay-1", "sig-1", 4242))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open("mysql", "dsn")
	assert.Error(t, err)
}
