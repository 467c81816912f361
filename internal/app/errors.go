package app

import (
	"errors"
	"fmt"

	"github.com/cesargomez89/streampay/internal/store"
)

var (
	ErrArtistNotFound      = errors.New("artist not found")
	ErrInsufficientBalance = errors.New("no funds available for withdrawal")
	ErrWithdrawalInFlight  = errors.New("a withdrawal is already in progress for this artist")
	ErrBalanceConflict     = errors.New("pending balance changed during withdrawal")
	ErrFundingExhausted    = errors.New("platform funding account balance is insufficient")
)

// ValidationError reports a request that can never succeed as given.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// TransferError reports a withdrawal that failed while building, signing,
// submitting or executing the transfer. The artist's balance is unchanged.
type TransferError struct {
	Stage string
	Err   error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("transfer failed during %s: %v", e.Stage, e.Err)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}

// ConfirmationTimeoutError reports a submitted transfer whose outcome is
// unknown. The withdrawal stays open until reconciliation resolves it.
type ConfirmationTimeoutError struct {
	PaymentID string
	Signature string
}

func (e *ConfirmationTimeoutError) Error() string {
	return fmt.Sprintf("transaction %s was not confirmed in time; withdrawal %s is pending reconciliation", e.Signature, e.PaymentID)
}

// Error kinds reported to API clients.
const (
	KindValidation          = "validation"
	KindNotFound            = "not_found"
	KindInsufficientBalance = "insufficient_balance"
	KindTransfer            = "transfer_execution"
	KindConfirmationTimeout = "confirmation_timeout"
	KindConflict            = "conflict"
	KindInternal            = "internal"
)

// ErrorKind classifies err for API responses.
func ErrorKind(err error) string {
	var (
		validation *ValidationError
		transfer   *TransferError
		timeout    *ConfirmationTimeoutError
	)
	switch {
	case errors.As(err, &validation):
		return KindValidation
	case errors.Is(err, ErrArtistNotFound), errors.Is(err, store.ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInsufficientBalance):
		return KindInsufficientBalance
	case errors.As(err, &transfer):
		return KindTransfer
	case errors.As(err, &timeout):
		return KindConfirmationTimeout
	case errors.Is(err, ErrWithdrawalInFlight), errors.Is(err, ErrBalanceConflict), errors.Is(err, store.ErrConflict):
		return KindConflict
	default:
		return KindInternal
	}
}
