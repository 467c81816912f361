// Package chain submits native-token transfers from the platform funding
// account and tracks them to confirmation.
package chain

import (
	"context"
	"errors"
	"fmt"

	"github.com/cesargomez89/streampay/internal/constants"
)

var (
	// ErrConfirmationTimeout means the outcome of a submitted transfer is unknown.
	ErrConfirmationTimeout = errors.New("confirmation timed out")
	// ErrTransactionFailed means the network executed the transfer and it failed.
	ErrTransactionFailed = errors.New("transaction failed on chain")
	// ErrRejected means the node refused the transfer before broadcasting it.
	// Any other submission error leaves the outcome unknown.
	ErrRejected = errors.New("transaction rejected before execution")
)

// TxStatus is the network's view of a submitted signature.
type TxStatus int

const (
	TxStatusUnknown TxStatus = iota // not seen by the network
	TxStatusPending                 // seen, not yet at the required commitment
	TxStatusConfirmed
	TxStatusFailed
)

func (s TxStatus) String() string {
	switch s {
	case TxStatusPending:
		return "pending"
	case TxStatusConfirmed:
		return "confirmed"
	case TxStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Checkpoint is a recent network reference a transaction must embed.
// The transaction can land only until the chain passes LastValidHeight.
type Checkpoint struct {
	Blockhash       string
	LastValidHeight uint64
}

// SignedTransfer is a fully signed transfer ready for submission. The
// signature is final before the transfer is sent.
type SignedTransfer struct {
	Signature  string
	From       string
	To         string
	Lamports   uint64
	Checkpoint Checkpoint
	Raw        []byte
}

// StatusReader looks up submitted signatures.
type StatusReader interface {
	SignatureStatus(ctx context.Context, signature string) (TxStatus, error)
}

// Client is the network surface used by settlement.
type Client interface {
	StatusReader
	FundingAccount() string
	RecentCheckpoint(ctx context.Context) (Checkpoint, error)
	SignTransfer(ctx context.Context, to string, lamports uint64, cp Checkpoint) (*SignedTransfer, error)
	Submit(ctx context.Context, transfer *SignedTransfer) (string, error)
	BlockHeight(ctx context.Context) (uint64, error)
	Balance(ctx context.Context, account string) (uint64, error)
}

// ExplorerURL links to a transaction on the public explorer.
func ExplorerURL(signature, cluster string) string {
	if cluster == "" || cluster == constants.ClusterMainnet {
		return constants.ExplorerBaseURL + signature
	}
	return fmt.Sprintf("%s%s?cluster=%s", constants.ExplorerBaseURL, signature, cluster)
}
