package domain

import (
	"time"
)

// Artist is the earnings ledger for a content creator. Counters only ever
// move through server-side increments and conditional decrements.
type Artist struct { //nolint:govet // field ordering prioritizes readability over memory alignment
	ID                string    `json:"id" db:"id"`
	UserID            string    `json:"user_id" db:"user_id"`
	ArtistName        string    `json:"artist_name" db:"artist_name"`
	WalletAddress     string    `json:"wallet_address" db:"wallet_address"`
	Bio               *string   `json:"bio,omitempty" db:"bio"`
	AvatarURL         *string   `json:"avatar_url,omitempty" db:"avatar_url"`
	Verified          bool      `json:"verified" db:"verified"`
	TotalStreams      int64     `json:"total_streams" db:"total_streams"`
	TotalEarnings     Lamports  `json:"total_earnings" db:"total_earnings"`
	PendingWithdrawal Lamports  `json:"pending_withdrawal" db:"pending_withdrawal"`
	CreatedAt         time.Time `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time `json:"updated_at" db:"updated_at"`
}

// Track is a piece of content owned by an artist.
type Track struct { //nolint:govet // field ordering prioritizes readability over memory alignment
	ID          string    `json:"id" db:"id"`
	ArtistID    string    `json:"artist_id" db:"artist_id"`
	Title       string    `json:"title" db:"title"`
	IPFSCID     string    `json:"ipfs_cid" db:"ipfs_cid"`
	Duration    int       `json:"duration" db:"duration"`
	Genre       *string   `json:"genre,omitempty" db:"genre"`
	StreamCount int64     `json:"stream_count" db:"stream_count"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Stream is a single listening event. SettledPaymentID is set when an
// aggregation cycle credits the stream, and never cleared.
type Stream struct { //nolint:govet // field ordering prioritizes readability over memory alignment
	ID               string    `json:"id" db:"id"`
	TrackID          string    `json:"track_id" db:"track_id"`
	ListenerID       *string   `json:"listener_id,omitempty" db:"listener_id"`
	Completed        bool      `json:"completed" db:"completed"`
	DurationListened int       `json:"duration_listened" db:"duration_listened"`
	StreamedAt       time.Time `json:"streamed_at" db:"streamed_at"`
	SettledPaymentID *string   `json:"settled_payment_id,omitempty" db:"settled_payment_id"`
}

// PaymentKind distinguishes earnings accruals from payouts.
type PaymentKind string

const (
	PaymentKindAccrual    PaymentKind = "accrual"
	PaymentKindWithdrawal PaymentKind = "withdrawal"
)

// PaymentStatus is the externally visible state of a payment.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// WithdrawalStage tracks a withdrawal through
// reserved -> submitted -> completed | failed. A request that fails
// validation never creates a row. Accrual payments carry an empty stage.
type WithdrawalStage string

const (
	StageReserved  WithdrawalStage = "reserved"
	StageSubmitted WithdrawalStage = "submitted"
	StageCompleted WithdrawalStage = "completed"
	StageFailed    WithdrawalStage = "failed"
)

// Payment is a ledger entry: either an accrual created by an aggregation
// cycle or a withdrawal to the artist's wallet.
type Payment struct { //nolint:govet // field ordering prioritizes readability over memory alignment
	ID                   string          `json:"id" db:"id"`
	ArtistID             string          `json:"artist_id" db:"artist_id"`
	TrackID              *string         `json:"track_id,omitempty" db:"track_id"`
	Kind                 PaymentKind     `json:"kind" db:"kind"`
	Amount               Lamports        `json:"amount" db:"amount"`
	Status               PaymentStatus   `json:"status" db:"status"`
	Stage                WithdrawalStage `json:"stage,omitempty" db:"stage"`
	TransactionSignature *string         `json:"transaction_signature,omitempty" db:"transaction_signature"`
	Destination          *string         `json:"destination,omitempty" db:"destination"`
	LastValidHeight      int64           `json:"-" db:"last_valid_height"`
	Error                *string         `json:"error,omitempty" db:"error"`
	ProcessedAt          *time.Time      `json:"processed_at,omitempty" db:"processed_at"`
	CreatedAt            time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at" db:"updated_at"`
}

// IsOpen reports whether a withdrawal has not reached a terminal state.
func (p *Payment) IsOpen() bool {
	return p.Kind == PaymentKindWithdrawal && p.Status == PaymentStatusPending
}

// Signature returns the transaction signature or an empty string.
func (p *Payment) Signature() string {
	if p.TransactionSignature == nil {
		return ""
	}
	return *p.TransactionSignature
}

// RunStatus is the state of an aggregation run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusPartial   RunStatus = "partial"
	RunStatusFailed    RunStatus = "failed"
)

// AggregationRun records one aggregation cycle.
type AggregationRun struct { //nolint:govet // field ordering prioritizes readability over memory alignment
	ID          string     `json:"id" db:"id"`
	WindowStart time.Time  `json:"window_start" db:"window_start"`
	WindowEnd   time.Time  `json:"window_end" db:"window_end"`
	Status      RunStatus  `json:"status" db:"status"`
	Artists     int        `json:"artists" db:"artists"`
	Streams     int64      `json:"streams" db:"streams"`
	Amount      Lamports   `json:"amount" db:"amount"`
	Failures    int        `json:"failures" db:"failures"`
	Error       *string    `json:"error,omitempty" db:"error"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty" db:"finished_at"`
}

// IsTerminal returns true if the run can no longer change.
func (r *AggregationRun) IsTerminal() bool {
	return r.Status == RunStatusCompleted || r.Status == RunStatusPartial || r.Status == RunStatusFailed
}
