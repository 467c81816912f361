package chain

import (
	"context"
	"fmt"
	"sync"
)

// MockClient is an in-memory Client for tests. Submitted transfers take the
// status in Outcome; SetStatus changes it afterwards.
type MockClient struct {
	mu sync.Mutex

	Funding         string
	FundingBalance  uint64
	Height          uint64
	LastValidOffset uint64
	Outcome         TxStatus

	CheckpointErr error
	SignErr       error
	SubmitErr     error
	StatusErr     error
	BalanceErr    error

	seq       int
	statuses  map[string]TxStatus
	submitted []*SignedTransfer
	polls     int
}

// NewMockClient returns a mock whose transfers confirm immediately.
func NewMockClient() *MockClient {
	return &MockClient{
		Funding:         "PlatformFundingAccount1111111111111111111111",
		FundingBalance:  1_000_000_000_000,
		Height:          1000,
		LastValidOffset: 150,
		Outcome:         TxStatusConfirmed,
		statuses:        make(map[string]TxStatus),
	}
}

func (m *MockClient) FundingAccount() string {
	return m.Funding
}

func (m *MockClient) RecentCheckpoint(_ context.Context) (Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CheckpointErr != nil {
		return Checkpoint{}, m.CheckpointErr
	}
	return Checkpoint{
		Blockhash:       fmt.Sprintf("mock-blockhash-%d", m.Height),
		LastValidHeight: m.Height + m.LastValidOffset,
	}, nil
}

func (m *MockClient) SignTransfer(_ context.Context, to string, lamports uint64, cp Checkpoint) (*SignedTransfer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SignErr != nil {
		return nil, m.SignErr
	}
	m.seq++
	return &SignedTransfer{
		Signature:  fmt.Sprintf("mock-sig-%d", m.seq),
		From:       m.Funding,
		To:         to,
		Lamports:   lamports,
		Checkpoint: cp,
	}, nil
}

func (m *MockClient) Submit(_ context.Context, t *SignedTransfer) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SubmitErr != nil {
		return "", m.SubmitErr
	}
	m.submitted = append(m.submitted, t)
	m.statuses[t.Signature] = m.Outcome
	if m.Outcome == TxStatusConfirmed {
		m.FundingBalance -= t.Lamports
	}
	return t.Signature, nil
}

func (m *MockClient) SignatureStatus(_ context.Context, signature string) (TxStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.polls++
	if m.StatusErr != nil {
		return TxStatusUnknown, m.StatusErr
	}
	status, ok := m.statuses[signature]
	if !ok {
		return TxStatusUnknown, nil
	}
	return status, nil
}

func (m *MockClient) BlockHeight(_ context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Height, nil
}

func (m *MockClient) Balance(_ context.Context, _ string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.BalanceErr != nil {
		return 0, m.BalanceErr
	}
	return m.FundingBalance, nil
}

// SetStatus overrides the network status of signature.
func (m *MockClient) SetStatus(signature string, status TxStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[signature] = status
}

// SetHeight moves the mock chain to height.
func (m *MockClient) SetHeight(height uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Height = height
}

// Submitted returns the transfers sent so far.
func (m *MockClient) Submitted() []*SignedTransfer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*SignedTransfer(nil), m.submitted...)
}

// Polls returns how many status lookups were made.
func (m *MockClient) Polls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.polls
}

var _ Client = (*MockClient)(nil)
var _ Client = (*SolanaClient)(nil)
