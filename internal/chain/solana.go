package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"

	"github.com/cesargomez89/streampay/internal/constants"
	"github.com/cesargomez89/streampay/internal/httpclient"
)

// SolanaClient talks to a Solana RPC node and signs transfers with the
// platform funding key. It never retries on its own.
type SolanaClient struct {
	rpc        *rpc.Client
	signer     solana.PrivateKey
	commitment rpc.CommitmentType
	transport  jsonrpc.HTTPClient
}

// Option configures a SolanaClient.
type Option func(*SolanaClient)

// WithCommitment overrides the commitment level used for reads and preflight.
func WithCommitment(c rpc.CommitmentType) Option {
	return func(s *SolanaClient) {
		s.commitment = c
	}
}

// WithHTTPClient replaces the paced, retrying transport.
func WithHTTPClient(h jsonrpc.HTTPClient) Option {
	return func(s *SolanaClient) {
		s.transport = h
	}
}

// NewSolanaClient builds a client for endpoint. The key is held in memory
// only and is never logged.
func NewSolanaClient(endpoint string, key solana.PrivateKey, opts ...Option) *SolanaClient {
	c := &SolanaClient{
		signer:     key,
		commitment: rpc.CommitmentConfirmed,
		transport:  httpclient.NewClient(nil, constants.DefaultRPCMinInterval),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.rpc = rpc.NewWithCustomRPCClient(jsonrpc.NewClientWithOpts(endpoint, &jsonrpc.RPCClientOpts{
		HTTPClient: c.transport,
	}))
	return c
}

func (c *SolanaClient) FundingAccount() string {
	return c.signer.PublicKey().String()
}

func (c *SolanaClient) RecentCheckpoint(ctx context.Context) (Checkpoint, error) {
	out, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("get latest blockhash: %w", err)
	}
	if out == nil || out.Value == nil {
		return Checkpoint{}, fmt.Errorf("get latest blockhash: empty response")
	}
	return Checkpoint{
		Blockhash:       out.Value.Blockhash.String(),
		LastValidHeight: out.Value.LastValidBlockHeight,
	}, nil
}

// SignTransfer builds a system transfer from the funding account to the
// recipient and signs it. The first signature identifies the transaction.
func (c *SolanaClient) SignTransfer(_ context.Context, to string, lamports uint64, cp Checkpoint) (*SignedTransfer, error) {
	recipient, err := solana.PublicKeyFromBase58(to)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	blockhash, err := solana.HashFromBase58(cp.Blockhash)
	if err != nil {
		return nil, fmt.Errorf("invalid blockhash: %w", err)
	}

	payer := c.signer.PublicKey()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(lamports, payer, recipient).Build(),
		},
		blockhash,
		solana.TransactionPayer(payer),
	)
	if err != nil {
		return nil, fmt.Errorf("build transfer: %w", err)
	}

	sigs, err := tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if key.Equals(payer) {
			return &c.signer
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sign transfer: %w", err)
	}
	if len(sigs) == 0 {
		return nil, fmt.Errorf("sign transfer: no signature produced")
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encode transfer: %w", err)
	}

	return &SignedTransfer{
		Signature:  sigs[0].String(),
		From:       payer.String(),
		To:         recipient.String(),
		Lamports:   lamports,
		Checkpoint: cp,
		Raw:        raw,
	}, nil
}

// JSON-RPC error codes a node returns when it refuses a transaction
// without forwarding it to a leader.
const (
	codeInvalidParams         = -32602
	codePreflightFailure      = -32002
	codeSignatureVerification = -32003
	codeSignatureLenMismatch  = -32013
)

// Submit sends the signed transfer with preflight checks enabled. Errors
// wrap ErrRejected only when the node definitely did not broadcast it.
func (c *SolanaClient) Submit(ctx context.Context, t *SignedTransfer) (string, error) {
	sig, err := c.rpc.SendRawTransactionWithOpts(ctx, t.Raw, rpc.TransactionOpts{
		SkipPreflight:       false,
		PreflightCommitment: c.commitment,
	})
	if err != nil {
		if rejected(err) {
			return "", fmt.Errorf("send transaction: %w: %v", ErrRejected, err)
		}
		return "", fmt.Errorf("send transaction: %w", err)
	}
	return sig.String(), nil
}

func rejected(err error) bool {
	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		return false
	}
	switch rpcErr.Code {
	case codePreflightFailure, codeSignatureVerification, codeInvalidParams, codeSignatureLenMismatch:
	default:
		return false
	}
	// A duplicate of a transfer that already landed is reported as a
	// preflight failure too.
	detail := strings.ToLower(rpcErr.Message + " " + fmt.Sprint(rpcErr.Data))
	return !strings.Contains(detail, "already been processed") && !strings.Contains(detail, "alreadyprocessed")
}

func (c *SolanaClient) SignatureStatus(ctx context.Context, signature string) (TxStatus, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return TxStatusUnknown, fmt.Errorf("invalid signature: %w", err)
	}

	out, err := c.rpc.GetSignatureStatuses(ctx, true, sig)
	if err != nil {
		return TxStatusUnknown, fmt.Errorf("get signature status: %w", err)
	}
	if out == nil || len(out.Value) == 0 || out.Value[0] == nil {
		return TxStatusUnknown, nil
	}

	st := out.Value[0]
	if st.Err != nil {
		return TxStatusFailed, nil
	}
	switch st.ConfirmationStatus {
	case rpc.ConfirmationStatusConfirmed, rpc.ConfirmationStatusFinalized:
		return TxStatusConfirmed, nil
	default:
		return TxStatusPending, nil
	}
}

func (c *SolanaClient) BlockHeight(ctx context.Context) (uint64, error) {
	h, err := c.rpc.GetBlockHeight(ctx, c.commitment)
	if err != nil {
		return 0, fmt.Errorf("get block height: %w", err)
	}
	return h, nil
}

func (c *SolanaClient) Balance(ctx context.Context, account string) (uint64, error) {
	pub, err := solana.PublicKeyFromBase58(account)
	if err != nil {
		return 0, fmt.Errorf("invalid account address: %w", err)
	}
	out, err := c.rpc.GetBalance(ctx, pub, c.commitment)
	if err != nil {
		return 0, fmt.Errorf("get balance: %w", err)
	}
	return out.Value, nil
}
