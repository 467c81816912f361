package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cesargomez89/streampay/internal/chain"
	"github.com/cesargomez89/streampay/internal/constants"
	"github.com/cesargomez89/streampay/internal/domain"
	"github.com/cesargomez89/streampay/internal/logger"
	"github.com/cesargomez89/streampay/internal/metrics"
	"github.com/cesargomez89/streampay/internal/store"
)

// WithdrawalStore is the ledger surface used by withdrawals.
type WithdrawalStore interface {
	ReserveWithdrawal(ctx context.Context, artistID string, check func(*domain.Artist) error) (*domain.Payment, error)
	MarkWithdrawalSubmitted(ctx context.Context, paymentID, signature string, lastValidHeight uint64) error
	CompleteWithdrawal(ctx context.Context, paymentID string, processedAt time.Time) (*domain.Payment, error)
	FailWithdrawal(ctx context.Context, paymentID, reason string, at time.Time) error
}

// WithdrawalService pays an artist's whole pending balance to their wallet.
type WithdrawalService struct {
	Repo           WithdrawalStore
	Chain          chain.Client
	Logger         *logger.Logger
	metrics        *metrics.Settlement
	cluster        string
	confirmTimeout time.Duration
	pollInterval   time.Duration
	now            func() time.Time
}

type WithdrawalOption func(*WithdrawalService)

// WithCluster sets the cluster used in explorer links.
func WithCluster(cluster string) WithdrawalOption {
	return func(s *WithdrawalService) { s.cluster = cluster }
}

// WithConfirmation bounds how long and how often confirmation is polled.
func WithConfirmation(timeout, poll time.Duration) WithdrawalOption {
	return func(s *WithdrawalService) {
		s.confirmTimeout = timeout
		s.pollInterval = poll
	}
}

func WithWithdrawalMetrics(m *metrics.Settlement) WithdrawalOption {
	return func(s *WithdrawalService) { s.metrics = m }
}

func WithWithdrawalClock(now func() time.Time) WithdrawalOption {
	return func(s *WithdrawalService) { s.now = now }
}

func NewWithdrawalService(repo WithdrawalStore, client chain.Client, log *logger.Logger, opts ...WithdrawalOption) *WithdrawalService {
	s := &WithdrawalService{
		Repo:           repo,
		Chain:          client,
		Logger:         log.WithComponent("withdrawal"),
		cluster:        constants.DefaultCluster,
		confirmTimeout: constants.DefaultConfirmTimeout,
		pollInterval:   constants.DefaultPollInterval,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Withdraw transfers the artist's entire pending balance to wallet, which
// must match the wallet on record. The balance is debited only after the
// network confirms the transfer. On any failure before that point the
// balance is left untouched. A transfer whose outcome is unknown, because
// submission failed ambiguously or confirmation timed out, stays open and
// blocks further withdrawals until reconciliation resolves it.
func (s *WithdrawalService) Withdraw(ctx context.Context, artistID, wallet string) (*domain.WithdrawalResult, error) {
	artistID = strings.TrimSpace(artistID)
	wallet = strings.TrimSpace(wallet)
	if artistID == "" || wallet == "" {
		s.metrics.RecordWithdrawal(metrics.OutcomeRejected, 0, 0)
		return nil, &ValidationError{Message: "missing required fields: artist_id and wallet_address"}
	}

	started := s.now()
	payment, err := s.Repo.ReserveWithdrawal(ctx, artistID, func(a *domain.Artist) error {
		if a.PendingWithdrawal <= 0 {
			return ErrInsufficientBalance
		}
		if a.WalletAddress != wallet {
			return &ValidationError{Field: "wallet_address", Message: "wallet address does not match the artist's account"}
		}
		return nil
	})
	if err != nil {
		s.metrics.RecordWithdrawal(metrics.OutcomeRejected, 0, 0)
		switch {
		case errors.Is(err, store.ErrNotFound):
			return nil, ErrArtistNotFound
		case errors.Is(err, store.ErrConflict):
			return nil, ErrWithdrawalInFlight
		}
		return nil, err
	}

	log := s.Logger.WithArtist(artistID).WithPayment(payment.ID)
	amount := uint64(payment.Amount)
	destination := wallet
	if payment.Destination != nil {
		destination = *payment.Destination
	}
	log.Info("Withdrawal reserved", "lamports", amount, logger.MaskField("destination", destination))

	balance, err := s.Chain.Balance(ctx, s.Chain.FundingAccount())
	if err != nil {
		return nil, s.abort(ctx, log, payment, "balance check", err)
	}
	s.metrics.SetFundingBalance(balance)
	if balance < amount+constants.TransferFeeLamports {
		return nil, s.abort(ctx, log, payment, "balance check", ErrFundingExhausted)
	}

	cp, err := s.Chain.RecentCheckpoint(ctx)
	if err != nil {
		return nil, s.abort(ctx, log, payment, "checkpoint", err)
	}

	signed, err := s.Chain.SignTransfer(ctx, destination, amount, cp)
	if err != nil {
		return nil, s.abort(ctx, log, payment, "signing", err)
	}

	// The signature is stored before the transfer leaves the process so an
	// interrupted withdrawal can always be looked up on chain.
	if err := s.Repo.MarkWithdrawalSubmitted(ctx, payment.ID, signed.Signature, cp.LastValidHeight); err != nil {
		return nil, s.abort(ctx, log, payment, "recording signature", err)
	}

	// Once signed, the transfer may reach the network even if the caller
	// goes away, so the send is not tied to the request.
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DefaultRPCTimeout)
	_, err = s.Chain.Submit(sendCtx, signed)
	cancel()
	switch {
	case err == nil:
		log.Info("Transfer submitted", "signature", signed.Signature, "last_valid_height", cp.LastValidHeight)
	case s.definitelyRejected(ctx, signed.Signature, err):
		return nil, s.abort(ctx, log, payment, "submission", err)
	default:
		log.Warn("Submission outcome unknown, tracking signature", "signature", signed.Signature, "error", err)
	}

	err = chain.AwaitConfirmation(ctx, s.Chain, signed.Signature, s.confirmTimeout, s.pollInterval)
	switch {
	case errors.Is(err, chain.ErrConfirmationTimeout):
		log.Warn("Transfer not confirmed in time, left for reconciliation", "signature", signed.Signature)
		s.metrics.RecordWithdrawal(metrics.OutcomeTimeout, 0, 0)
		return nil, &ConfirmationTimeoutError{PaymentID: payment.ID, Signature: signed.Signature}
	case err != nil:
		return nil, s.abort(ctx, log, payment, "execution", err)
	}

	// The money has moved; finish the bookkeeping even if the caller went away.
	completed, err := s.Repo.CompleteWithdrawal(context.WithoutCancel(ctx), payment.ID, s.now())
	if err != nil {
		log.Error("Confirmed transfer could not be finalized, left for reconciliation",
			"signature", signed.Signature, "error", err)
		if errors.Is(err, store.ErrConflict) {
			return nil, fmt.Errorf("%w: %v", ErrBalanceConflict, err)
		}
		return nil, fmt.Errorf("failed to finalize withdrawal: %w", err)
	}

	elapsed := s.now().Sub(started)
	s.metrics.RecordWithdrawal(metrics.OutcomeCompleted, int64(completed.Amount), elapsed)
	log.Info("Withdrawal completed", "signature", signed.Signature, "lamports", amount, "elapsed", elapsed)

	return &domain.WithdrawalResult{
		PaymentID:            completed.ID,
		Amount:               completed.Amount,
		AmountSOL:            completed.Amount.SOL(),
		TransactionSignature: signed.Signature,
		ExplorerURL:          chain.ExplorerURL(signed.Signature, s.cluster),
	}, nil
}

// definitelyRejected reports whether a failed submission can not have
// reached the network: the node refused it and does not know the signature.
func (s *WithdrawalService) definitelyRejected(ctx context.Context, signature string, err error) bool {
	if !errors.Is(err, chain.ErrRejected) {
		return false
	}
	lookupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), constants.DefaultRPCTimeout)
	defer cancel()
	status, lookupErr := s.Chain.SignatureStatus(lookupCtx, signature)
	return lookupErr == nil && status == chain.TxStatusUnknown
}

// abort marks the reserved payment failed and wraps cause as a TransferError.
func (s *WithdrawalService) abort(ctx context.Context, log *logger.Logger, p *domain.Payment, stage string, cause error) error {
	log.Error("Withdrawal failed", "stage", stage, "error", cause)
	if err := s.Repo.FailWithdrawal(context.WithoutCancel(ctx), p.ID, fmt.Sprintf("%s: %v", stage, cause), s.now()); err != nil {
		log.Error("Failed to mark withdrawal failed", "error", err)
	}
	s.metrics.RecordWithdrawal(metrics.OutcomeFailed, 0, 0)
	return &TransferError{Stage: stage, Err: cause}
}
