package domain

import "time"

// ArtistCredit is one artist's share of an aggregation cycle.
type ArtistCredit struct {
	ArtistID      string   `json:"artist_id"`
	Wallet        string   `json:"wallet"`
	PaymentID     string   `json:"payment_id"`
	StreamCount   int64    `json:"stream_count"`
	GrossAmount   Lamports `json:"gross_amount"`
	FeeAmount     Lamports `json:"fee_amount"`
	PaymentAmount Lamports `json:"payment_amount"`
}

// ArtistFailure records an artist skipped by a cycle. Its streams remain
// unsettled and are picked up by a later cycle.
type ArtistFailure struct {
	ArtistID    string `json:"artist_id"`
	StreamCount int64  `json:"stream_count"`
	Error       string `json:"error"`
}

// AggregationReport summarizes one aggregation cycle.
type AggregationReport struct {
	RunID            string          `json:"run_id"`
	WindowStart      time.Time       `json:"window_start"`
	WindowEnd        time.Time       `json:"window_end"`
	ProcessedArtists int             `json:"processed_artists"`
	TotalStreams     int64           `json:"total_streams"`
	TotalAmount      Lamports        `json:"total_amount"`
	Payments         []ArtistCredit  `json:"payments"`
	Failures         []ArtistFailure `json:"failures,omitempty"`
}

// Add folds a successful credit into the report totals.
func (r *AggregationReport) Add(c ArtistCredit) {
	r.Payments = append(r.Payments, c)
	r.ProcessedArtists++
	r.TotalStreams += c.StreamCount
	r.TotalAmount += c.PaymentAmount
}

// Partial reports whether any artist was skipped.
func (r *AggregationReport) Partial() bool {
	return len(r.Failures) > 0
}

// WithdrawalResult is returned for a confirmed withdrawal.
type WithdrawalResult struct {
	PaymentID            string   `json:"payment_id"`
	Amount               Lamports `json:"amount"`
	AmountSOL            float64  `json:"amount_sol"`
	TransactionSignature string   `json:"transaction_signature"`
	ExplorerURL          string   `json:"explorer_url"`
}

// ReconcileReport summarizes one reconciliation pass over open withdrawals.
type ReconcileReport struct {
	Checked   int `json:"checked"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Pending   int `json:"pending"`
	Errors    int `json:"errors"`
}

// EarningsSummary is the read-side view of an artist's ledger.
type EarningsSummary struct {
	ArtistID          string     `json:"artist_id"`
	ArtistName        string     `json:"artist_name"`
	WalletAddress     string     `json:"wallet_address"`
	TotalStreams      int64      `json:"total_streams"`
	TotalEarnings     Lamports   `json:"total_earnings"`
	TotalEarningsSOL  float64    `json:"total_earnings_sol"`
	PendingWithdrawal Lamports   `json:"pending_withdrawal"`
	PendingSOL        float64    `json:"pending_withdrawal_sol"`
	RecentPayments    []*Payment `json:"recent_payments"`
}
