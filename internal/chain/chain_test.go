package chain

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrivateKey(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	values := make([]int, len(priv))
	for i, b := range priv {
		values[i] = int(b)
	}
	arr, err := json.Marshal(values)
	require.NoError(t, err)

	fromArray, err := ParsePrivateKey(string(arr))
	require.NoError(t, err)
	assert.Equal(t, solana.PrivateKey(priv), fromArray)

	fromBase58, err := ParsePrivateKey("  " + solana.PrivateKey(priv).String() + "\n")
	require.NoError(t, err)
	assert.Equal(t, solana.PrivateKey(priv), fromBase58)
	assert.Equal(t, fromArray.PublicKey(), fromBase58.PublicKey())
}

func TestParsePrivateKey_Invalid(t *testing.T) {
	secret := "[1,2,3,999]"
	tests := []string{
		"",
		"[1,2,3]",
		secret,
		"[not json",
		"0OIl-not-base58",
	}

	for _, in := range tests {
		_, err := ParsePrivateKey(in)
		require.Error(t, err, "input %q", in)
		assert.True(t, errors.Is(err, errInvalidKey))
		if in != "" {
			assert.False(t, strings.Contains(err.Error(), in), "error leaked key material: %v", err)
		}
	}
}

func TestExplorerURL(t *testing.T) {
	assert.Equal(t, "https://explorer.solana.com/tx/abc?cluster=devnet", ExplorerURL("abc", "devnet"))
	assert.Equal(t, "https://explorer.solana.com/tx/abc", ExplorerURL("abc", "mainnet-beta"))
}

func TestAwaitConfirmation_Confirmed(t *testing.T) {
	m := NewMockClient()
	m.SetStatus("sig", TxStatusPending)

	go func() {
		time.Sleep(30 * time.Millisecond)
		m.SetStatus("sig", TxStatusConfirmed)
	}()

	err := AwaitConfirmation(context.Background(), m, "sig", time.Second, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Greater(t, m.Polls(), 1)
}

func TestAwaitConfirmation_Failed(t *testing.T) {
	m := NewMockClient()
	m.SetStatus("sig", TxStatusFailed)

	err := AwaitConfirmation(context.Background(), m, "sig", time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, err, ErrTransactionFailed)
}

func TestAwaitConfirmation_Timeout(t *testing.T) {
	m := NewMockClient()
	m.SetStatus("sig", TxStatusPending)

	start := time.Now()
	err := AwaitConfirmation(context.Background(), m, "sig", 50*time.Millisecond, 5*time.Millisecond)
	assert.ErrorIs(t, err, ErrConfirmationTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestAwaitConfirmation_TransientErrorsKeepPolling(t *testing.T) {
	m := NewMockClient()
	m.StatusErr = errors.New("rpc unavailable")

	err := AwaitConfirmation(context.Background(), m, "sig", 40*time.Millisecond, 5*time.Millisecond)
	assert.ErrorIs(t, err, ErrConfirmationTimeout)
	assert.Greater(t, m.Polls(), 1)
}

func TestAwaitConfirmation_CancelledIsUnknown(t *testing.T) {
	m := NewMockClient()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := AwaitConfirmation(ctx, m, "never-submitted", time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, err, ErrConfirmationTimeout)
}

func TestSolanaClient_SignTransfer(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	_, recipientPriv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	recipient := solana.PrivateKey(recipientPriv).PublicKey().String()

	c := NewSolanaClient("http://127.0.0.1:0", solana.PrivateKey(priv))
	cp := Checkpoint{Blockhash: solana.Hash{1, 2, 3}.String(), LastValidHeight: 500}

	st, err := c.SignTransfer(context.Background(), recipient, 100_000_000, cp)
	require.NoError(t, err)
	assert.NotEmpty(t, st.Signature)
	assert.NotEmpty(t, st.Raw)
	assert.Equal(t, c.FundingAccount(), st.From)
	assert.Equal(t, recipient, st.To)
	assert.Equal(t, uint64(500), st.Checkpoint.LastValidHeight)

	_, err = c.SignTransfer(context.Background(), "not-an-address", 1, cp)
	assert.Error(t, err)
}

func TestSolanaClient_RPCThroughRetryingTransport(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// First call is shed so the request has to be replayed.
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		body, _ := io.ReadAll(r.Body)
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		require.NoError(t, json.Unmarshal(body, &req))

		var result string
		switch req.Method {
		case "getBalance":
			result = `{"context":{"slot":1},"value":42000}`
		case "getBlockHeight":
			result = `1234`
		default:
			t.Errorf("unexpected method %q", req.Method)
			result = `null`
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"result":` + result + `}`))
	}))
	defer srv.Close()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	c := NewSolanaClient(srv.URL, solana.PrivateKey(priv))

	bal, err := c.Balance(context.Background(), c.FundingAccount())
	require.NoError(t, err)
	assert.Equal(t, uint64(42000), bal)

	h, err := c.BlockHeight(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(1234), h)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSolanaClient_SubmitClassifiesRejections(t *testing.T) {
	tests := []struct {
		name     string
		rpcErr   string
		rejected bool
	}{
		{"simulation failure", `{"code":-32002,"message":"Transaction simulation failed: Attempt to debit an account but found no record of a prior credit.","data":{"err":"AccountNotFound","logs":[]}}`, true},
		{"bad signature", `{"code":-32003,"message":"Transaction signature verification failure"}`, true},
		{"invalid params", `{"code":-32602,"message":"invalid transaction: failed to deserialize"}`, true},
		{"already processed", `{"code":-32002,"message":"Transaction simulation failed: This transaction has already been processed","data":{"err":"AlreadyProcessed","logs":[]}}`, false},
		{"already processed in data", `{"code":-32002,"message":"Transaction simulation failed","data":{"err":"AlreadyProcessed"}}`, false},
		{"node unhealthy", `{"code":-32005,"message":"Node is behind by 120 slots"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				var req struct {
					ID json.RawMessage `json:"id"`
				}
				_ = json.NewDecoder(r.Body).Decode(&req)
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":` + string(req.ID) + `,"error":` + tt.rpcErr + `}`))
			}))
			defer srv.Close()

			c := newSubmitClient(t, srv.URL, srv.Client())
			_, err := c.Submit(context.Background(), &SignedTransfer{Raw: []byte{1, 2, 3}})
			require.Error(t, err)
			assert.Equal(t, tt.rejected, errors.Is(err, ErrRejected))
		})
	}
}

func TestSolanaClient_SubmitTransportErrorIsNotRejection(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := srv.Client()
	url := srv.URL
	srv.Close()

	c := newSubmitClient(t, url, client)
	_, err := c.Submit(context.Background(), &SignedTransfer{Raw: []byte{1, 2, 3}})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRejected)
}

func newSubmitClient(t *testing.T, url string, h *http.Client) *SolanaClient {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return NewSolanaClient(url, solana.PrivateKey(priv), WithHTTPClient(h))
}
