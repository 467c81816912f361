package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cesargomez89/streampay/internal/chain"
	"github.com/cesargomez89/streampay/internal/constants"
	"github.com/cesargomez89/streampay/internal/domain"
	"github.com/cesargomez89/streampay/internal/logger"
)

func TestWithdraw_Success(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	artist := fundedArtist(t, db, 100)
	client := chain.NewMockClient()

	result, err := newWithdrawals(db, client, WithCluster("devnet")).Withdraw(ctx, artist.ID, wallet)
	require.NoError(t, err)

	assert.Equal(t, domain.Lamports(100_000_000), result.Amount)
	assert.InDelta(t, 0.1, result.AmountSOL, 1e-12)
	assert.NotEmpty(t, result.TransactionSignature)
	assert.Equal(t, "https://explorer.solana.com/tx/"+result.TransactionSignature+"?cluster=devnet", result.ExplorerURL)

	fetched, err := db.GetArtist(ctx, artist.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.Lamports(0), fetched.PendingWithdrawal)
	assert.Equal(t, domain.Lamports(100_000_000), fetched.TotalEarnings)

	payment, err := db.GetPayment(ctx, result.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, payment.Status)
	assert.Equal(t, domain.PaymentKindWithdrawal, payment.Kind)
	assert.Equal(t, result.TransactionSignature, payment.Signature())
	assert.NotNil(t, payment.ProcessedAt)

	sent := client.Submitted()
	require.Len(t, sent, 1)
	assert.Equal(t, wallet, sent[0].To)
	assert.Equal(t, uint64(100_000_000), sent[0].Lamports)
}

func TestWithdraw_MissingFields(t *testing.T) {
	db := setupTestDB(t)
	svc := newWithdrawals(db, chain.NewMockClient())

	for _, tc := range [][2]string{{"", wallet}, {"artist", ""}, {"  ", "  "}} {
		_, err := svc.Withdraw(context.Background(), tc[0], tc[1])
		var verr *ValidationError
		assert.ErrorAs(t, err, &verr)
	}
}

func TestWithdraw_UnknownArtist(t *testing.T) {
	db := setupTestDB(t)
	_, err := newWithdrawals(db, chain.NewMockClient()).Withdraw(context.Background(), "nope", wallet)
	assert.ErrorIs(t, err, ErrArtistNotFound)
	assert.Equal(t, KindNotFound, ErrorKind(err))
}

func TestWithdraw_ZeroBalanceWritesNothing(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	artist, _ := seedArtist(t, db, wallet)
	client := chain.NewMockClient()

	_, err := newWithdrawals(db, client).Withdraw(ctx, artist.ID, wallet)
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	assert.Equal(t, KindInsufficientBalance, ErrorKind(err))

	payments, err := db.ListPayments(ctx, artist.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, payments)
	assert.Empty(t, client.Submitted())
}

func TestWithdraw_WalletMismatchRejectedRegardlessOfBalance(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	client := chain.NewMockClient()
	svc := newWithdrawals(db, client)

	funded := fundedArtist(t, db, 10)
	_, err := svc.Withdraw(ctx, funded.ID, "SomeoneElsesWallet")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "wallet_address", verr.Field)

	fetched, _ := db.GetArtist(ctx, funded.ID)
	assert.Equal(t, funded.PendingWithdrawal, fetched.PendingWithdrawal)
	payments, _ := db.ListPayments(ctx, funded.ID, 10)
	for _, p := range payments {
		assert.NotEqual(t, domain.PaymentKindWithdrawal, p.Kind)
	}
	assert.Empty(t, client.Submitted())
}

func TestWithdraw_RejectedSubmissionLeavesBalance(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	artist := fundedArtist(t, db, 100)
	client := chain.NewMockClient()
	client.SubmitErr = fmt.Errorf("send transaction: %w: insufficient funds for fee", chain.ErrRejected)

	_, err := newWithdrawals(db, client).Withdraw(ctx, artist.ID, wallet)
	var terr *TransferError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "submission", terr.Stage)
	assert.Equal(t, KindTransfer, ErrorKind(err))

	fetched, _ := db.GetArtist(ctx, artist.ID)
	assert.Equal(t, artist.PendingWithdrawal, fetched.PendingWithdrawal)

	open, err := db.ListOpenWithdrawals(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	payments, _ := db.ListPayments(ctx, artist.ID, 10)
	var failed int
	for _, p := range payments {
		if p.Kind == domain.PaymentKindWithdrawal {
			assert.Equal(t, domain.PaymentStatusFailed, p.Status)
			failed++
		}
	}
	assert.Equal(t, 1, failed)

	// The artist can try again once the node accepts transfers.
	client.SubmitErr = nil
	_, err = newWithdrawals(db, client).Withdraw(ctx, artist.ID, wallet)
	require.NoError(t, err)
}

func TestWithdraw_AmbiguousSubmissionStaysOpen(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	artist := fundedArtist(t, db, 100)
	client := chain.NewMockClient()
	client.SubmitErr = errors.New("node unreachable")
	svc := newWithdrawals(db, client)

	_, err := svc.Withdraw(ctx, artist.ID, wallet)
	var terr *ConfirmationTimeoutError
	require.ErrorAs(t, err, &terr)

	payment, err := db.GetPayment(ctx, terr.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, payment.Status)
	assert.Equal(t, domain.StageSubmitted, payment.Stage)
	assert.Equal(t, terr.Signature, payment.Signature())

	client.SubmitErr = nil
	_, err = svc.Withdraw(ctx, artist.ID, wallet)
	assert.ErrorIs(t, err, ErrWithdrawalInFlight)

	// Once the checkpoint expires the transfer can never land.
	client.SetHeight(2000)
	report, err := NewReconciler(db, client, logger.Discard()).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)

	_, err = svc.Withdraw(ctx, artist.ID, wallet)
	require.NoError(t, err)
	fetched, _ := db.GetArtist(ctx, artist.ID)
	assert.Equal(t, domain.Lamports(0), fetched.PendingWithdrawal)
	assert.Len(t, client.Submitted(), 1)
}

// lossyClient delivers transfers but loses the node's reply.
type lossyClient struct {
	*chain.MockClient
}

func (c *lossyClient) Submit(ctx context.Context, t *chain.SignedTransfer) (string, error) {
	if _, err := c.MockClient.Submit(ctx, t); err != nil {
		return "", err
	}
	return "", errors.New("send transaction: read tcp 10.0.0.2:443: connection reset by peer")
}

func TestWithdraw_LostSubmitReplyDoesNotDoublePay(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	artist := fundedArtist(t, db, 100)
	client := &lossyClient{MockClient: chain.NewMockClient()}
	svc := newWithdrawals(db, client)

	result, err := svc.Withdraw(ctx, artist.ID, wallet)
	require.NoError(t, err)
	assert.Equal(t, artist.PendingWithdrawal, result.Amount)

	_, err = svc.Withdraw(ctx, artist.ID, wallet)
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	var paid uint64
	for _, tr := range client.Submitted() {
		paid += tr.Lamports
	}
	assert.Equal(t, uint64(artist.PendingWithdrawal), paid)
	fetched, _ := db.GetArtist(ctx, artist.ID)
	assert.Equal(t, domain.Lamports(0), fetched.PendingWithdrawal)
}

func TestWithdraw_LostSubmitReplyResolvedByReconciliation(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	artist := fundedArtist(t, db, 100)
	client := &lossyClient{MockClient: chain.NewMockClient()}
	client.Outcome = chain.TxStatusPending
	svc := newWithdrawals(db, client)

	_, err := svc.Withdraw(ctx, artist.ID, wallet)
	var terr *ConfirmationTimeoutError
	require.ErrorAs(t, err, &terr)

	_, err = svc.Withdraw(ctx, artist.ID, wallet)
	assert.ErrorIs(t, err, ErrWithdrawalInFlight)

	client.SetStatus(terr.Signature, chain.TxStatusConfirmed)
	report, err := NewReconciler(db, client, logger.Discard()).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Completed)

	fetched, _ := db.GetArtist(ctx, artist.ID)
	assert.Equal(t, domain.Lamports(0), fetched.PendingWithdrawal)
	assert.Len(t, client.Submitted(), 1)
}

// slowSubmitClient holds Submit until released and records whether the
// context it was given had been cancelled.
type slowSubmitClient struct {
	*chain.MockClient
	started chan struct{}
	release chan struct{}
	seenErr chan error
}

func (c *slowSubmitClient) Submit(ctx context.Context, t *chain.SignedTransfer) (string, error) {
	close(c.started)
	<-c.release
	c.seenErr <- ctx.Err()
	return c.MockClient.Submit(ctx, t)
}

func TestWithdraw_CallerCancelDuringSubmitLeavesWithdrawalOpen(t *testing.T) {
	db := setupTestDB(t)
	artist := fundedArtist(t, db, 100)
	client := &slowSubmitClient{
		MockClient: chain.NewMockClient(),
		started:    make(chan struct{}),
		release:    make(chan struct{}),
		seenErr:    make(chan error, 1),
	}
	client.Outcome = chain.TxStatusPending
	svc := newWithdrawals(db, client)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := svc.Withdraw(ctx, artist.ID, wallet)
		done <- err
	}()

	select {
	case <-client.started:
	case <-time.After(5 * time.Second):
		t.Fatal("submission never started")
	}
	cancel()
	close(client.release)

	err := <-done
	var terr *ConfirmationTimeoutError
	require.ErrorAs(t, err, &terr)
	assert.NoError(t, <-client.seenErr)

	bg := context.Background()
	payment, err := db.GetPayment(bg, terr.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, payment.Status)
	assert.Equal(t, domain.StageSubmitted, payment.Stage)
	fetched, _ := db.GetArtist(bg, artist.ID)
	assert.Equal(t, artist.PendingWithdrawal, fetched.PendingWithdrawal)

	client.SetStatus(terr.Signature, chain.TxStatusConfirmed)
	report, err := NewReconciler(db, client, logger.Discard()).Run(bg)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Completed)
	assert.Equal(t, 0, report.Pending)

	fetched, _ = db.GetArtist(bg, artist.ID)
	assert.Equal(t, domain.Lamports(0), fetched.PendingWithdrawal)
	assert.Len(t, client.Submitted(), 1)
}

func TestWithdraw_LogsMaskDestination(t *testing.T) {
	db := setupTestDB(t)
	artist := fundedArtist(t, db, 3)
	var buf bytes.Buffer
	log := logger.New(logger.Config{Level: "debug", Format: "json", Output: &buf})

	_, err := NewWithdrawalService(db, chain.NewMockClient(), log,
		WithConfirmation(100*time.Millisecond, 5*time.Millisecond)).Withdraw(context.Background(), artist.ID, wallet)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "Withdrawal reserved")
	assert.Contains(t, buf.String(), constants.Redacted)
	assert.NotContains(t, buf.String(), wallet)
}

func TestWithdraw_PreSubmissionFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(m *chain.MockClient)
		stage string
		is    error
	}{
		{"funding exhausted", func(m *chain.MockClient) { m.FundingBalance = 1000 }, "balance check", ErrFundingExhausted},
		{"balance rpc error", func(m *chain.MockClient) { m.BalanceErr = errors.New("rpc") }, "balance check", nil},
		{"checkpoint error", func(m *chain.MockClient) { m.CheckpointErr = errors.New("rpc") }, "checkpoint", nil},
		{"signing error", func(m *chain.MockClient) { m.SignErr = errors.New("bad key") }, "signing", nil},
		{"failed on chain", func(m *chain.MockClient) { m.Outcome = chain.TxStatusFailed }, "execution", chain.ErrTransactionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := setupTestDB(t)
			ctx := context.Background()
			artist := fundedArtist(t, db, 5)
			client := chain.NewMockClient()
			tt.setup(client)

			_, err := newWithdrawals(db, client).Withdraw(ctx, artist.ID, wallet)
			var terr *TransferError
			require.ErrorAs(t, err, &terr)
			assert.Equal(t, tt.stage, terr.Stage)
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}

			fetched, _ := db.GetArtist(ctx, artist.ID)
			assert.Equal(t, artist.PendingWithdrawal, fetched.PendingWithdrawal)
			open, _ := db.ListOpenWithdrawals(ctx)
			assert.Empty(t, open)
		})
	}
}

func TestWithdraw_TimeoutLeavesWithdrawalOpen(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	artist := fundedArtist(t, db, 100)
	client := chain.NewMockClient()
	client.Outcome = chain.TxStatusPending
	svc := newWithdrawals(db, client, WithConfirmation(30*time.Millisecond, 5*time.Millisecond))

	_, err := svc.Withdraw(ctx, artist.ID, wallet)
	var terr *ConfirmationTimeoutError
	require.ErrorAs(t, err, &terr)
	assert.NotEmpty(t, terr.Signature)
	assert.Equal(t, KindConfirmationTimeout, ErrorKind(err))

	fetched, _ := db.GetArtist(ctx, artist.ID)
	assert.Equal(t, domain.Lamports(100_000_000), fetched.PendingWithdrawal)

	payment, err := db.GetPayment(ctx, terr.PaymentID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPending, payment.Status)
	assert.Equal(t, domain.StageSubmitted, payment.Stage)
	assert.Equal(t, terr.Signature, payment.Signature())

	// A retry can not double pay while the first transfer is unresolved.
	_, err = svc.Withdraw(ctx, artist.ID, wallet)
	assert.ErrorIs(t, err, ErrWithdrawalInFlight)
	assert.Len(t, client.Submitted(), 1)
}

func TestWithdraw_ConcurrentRequestsPayOnce(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	artist := fundedArtist(t, db, 50)
	client := chain.NewMockClient()
	svc := newWithdrawals(db, client)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var successes int
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Withdraw(ctx, artist.ID, wallet)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			if !errors.Is(err, ErrWithdrawalInFlight) && !errors.Is(err, ErrInsufficientBalance) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Len(t, client.Submitted(), 1)
	fetched, _ := db.GetArtist(ctx, artist.ID)
	assert.Equal(t, domain.Lamports(0), fetched.PendingWithdrawal)
}

func TestWithdraw_AccrualDuringTransferSurvives(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	artist := fundedArtist(t, db, 10)
	client := chain.NewMockClient()
	client.Outcome = chain.TxStatusPending
	svc := newWithdrawals(db, client, WithConfirmation(time.Second, 5*time.Millisecond))

	tracks, err := db.ListTracksByArtist(ctx, artist.ID)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Withdraw(ctx, artist.ID, wallet)
		done <- err
	}()

	// Wait for the transfer to be in flight, credit new streams, then confirm.
	require.Eventually(t, func() bool { return len(client.Submitted()) == 1 }, time.Second, 5*time.Millisecond)
	seedStreams(t, db, tracks[0].ID, 4, dayStart.Add(2*time.Hour), true)
	_, err = newAggregator(db).RunCycle(ctx, dayStart, dayEnd)
	require.NoError(t, err)
	client.SetStatus(client.Submitted()[0].Signature, chain.TxStatusConfirmed)

	require.NoError(t, <-done)
	fetched, _ := db.GetArtist(ctx, artist.ID)
	assert.Equal(t, 4*rate, fetched.PendingWithdrawal)
	assert.Equal(t, 14*rate, fetched.TotalEarnings)
}
