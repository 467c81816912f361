// Package constants contains application-wide constants to avoid magic numbers and strings.
package constants

import "time"

// Application defaults
const (
	DefaultPort                = "8080"
	DefaultDBDriver            = "sqlite"
	DefaultDBDSN               = "streampay.db"
	DefaultRPCURL              = "https://api.devnet.solana.com"
	DefaultCluster             = "devnet"
	DefaultRateLamports        = 1_000_000 // 0.001 SOL per completed stream
	DefaultFeePercent          = 0
	DefaultAggregationWindow   = 24 * time.Hour
	DefaultAggregationSchedule = "@daily"
	DefaultReconcileSchedule   = "@every 5m"
	DefaultConfirmTimeout      = 60 * time.Second
	DefaultPollInterval        = 2 * time.Second
	DefaultReservationTTL      = 10 * time.Minute
	DefaultWithdrawRateLimit   = 1.0
	DefaultWithdrawBurst       = 3
	DefaultJobTimeout          = 10 * time.Minute
	DefaultShutdownTimeout     = 5 * time.Second
)

// RPC transport
const (
	DefaultRPCTimeout     = 30 * time.Second
	DefaultRPCMinInterval = 100 * time.Millisecond // public endpoints allow roughly 10 req/s per IP
	DefaultRetryCount     = 3
	DefaultRetryBase      = 1 * time.Second
)

// Settlement
const (
	LamportsPerSOL      = 1_000_000_000
	TransferFeeLamports = 5_000 // base fee for a single-signature transfer
	MaxFeePercent       = 30
	RecentPaymentsLimit = 10
	RecentRunsLimit     = 20
)

// Supported database drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Supported clusters for explorer links
const (
	ClusterMainnet = "mainnet-beta"
	ClusterDevnet  = "devnet"
	ClusterTestnet = "testnet"
)

// Explorer
const ExplorerBaseURL = "https://explorer.solana.com/tx/"

// Database
const (
	ArtistsTable         = "artists"
	TracksTable          = "tracks"
	StreamsTable         = "streams"
	PaymentsTable        = "payments"
	AggregationRunsTable = "aggregation_runs"
	SettingsTable        = "settings"
)

// HTTP Status Codes
const (
	StatusOK              = 200
	StatusBadRequest      = 400
	StatusNotFound        = 404
	StatusConflict        = 409
	StatusTooManyRequests = 429
	StatusInternalError   = 500
)

// Redaction placeholder for secret material in logs and errors
const Redacted = "[REDACTED]"
