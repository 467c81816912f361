package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"github.com/cesargomez89/streampay/internal/constants"
)

// Config holds all application configuration
type Config struct {
	Port                string
	DBDriver            string
	DBDSN               string
	LogLevel            string
	LogFormat           string
	RPCURL              string
	Cluster             string
	PrivateKey          Secret
	RateLamports        int64
	FeePercent          int
	AggregationWindow   time.Duration
	AggregationSchedule string
	ReconcileSchedule   string
	ConfirmTimeout      time.Duration
	PollInterval        time.Duration
	ReservationTTL      time.Duration
	WithdrawRateLimit   float64

	parseErrors []string
}

// Load loads configuration from environment variables with defaults.
// A .env file in the working directory is read first when present;
// variables already set in the environment take precedence.
func Load() *Config {
	_ = godotenv.Load()

	c := &Config{
		Port:                getEnv("PORT", constants.DefaultPort),
		DBDriver:            getEnv("DB_DRIVER", constants.DefaultDBDriver),
		DBDSN:               getEnv("DB_DSN", constants.DefaultDBDSN),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		LogFormat:           getEnv("LOG_FORMAT", "text"),
		RPCURL:              getEnv("SOLANA_RPC_URL", constants.DefaultRPCURL),
		Cluster:             getEnv("SOLANA_CLUSTER", constants.DefaultCluster),
		PrivateKey:          Secret(strings.TrimSpace(getEnv("SOLANA_PLATFORM_PRIVATE_KEY", ""))),
		AggregationSchedule: getEnv("AGGREGATION_SCHEDULE", constants.DefaultAggregationSchedule),
		ReconcileSchedule:   getEnv("RECONCILE_SCHEDULE", constants.DefaultReconcileSchedule),
	}

	c.RateLamports = c.getInt64("PAYMENT_RATE_LAMPORTS", constants.DefaultRateLamports)
	c.FeePercent = int(c.getInt64("PLATFORM_FEE_PERCENT", constants.DefaultFeePercent))
	c.AggregationWindow = c.getDuration("AGGREGATION_WINDOW", constants.DefaultAggregationWindow)
	c.ConfirmTimeout = c.getDuration("CONFIRM_TIMEOUT", constants.DefaultConfirmTimeout)
	c.PollInterval = c.getDuration("CONFIRM_POLL_INTERVAL", constants.DefaultPollInterval)
	c.ReservationTTL = c.getDuration("RESERVATION_TTL", constants.DefaultReservationTTL)
	c.WithdrawRateLimit = c.getFloat("WITHDRAW_RATE_LIMIT", constants.DefaultWithdrawRateLimit)

	return c
}

// Validate validates the configuration and returns detailed errors
func (c *Config) Validate() error {
	errors := append([]string(nil), c.parseErrors...)

	// Validate Port
	if c.Port == "" {
		errors = append(errors, "PORT cannot be empty")
	} else {
		port, err := strconv.Atoi(c.Port)
		if err != nil {
			errors = append(errors, fmt.Sprintf("PORT must be a valid number, got: %s", c.Port))
		} else if port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("PORT must be between 1 and 65535, got: %d", port))
		}
	}

	// Validate database
	switch c.DBDriver {
	case constants.DriverSQLite, constants.DriverPostgres:
	default:
		errors = append(errors, fmt.Sprintf("DB_DRIVER must be one of: sqlite, postgres, got: %s", c.DBDriver))
	}
	if c.DBDSN == "" {
		errors = append(errors, "DB_DSN cannot be empty")
	}

	// Validate RPC endpoint
	if c.RPCURL == "" {
		errors = append(errors, "SOLANA_RPC_URL cannot be empty")
	} else if u, err := url.Parse(c.RPCURL); err != nil || u.Scheme == "" || u.Host == "" {
		errors = append(errors, fmt.Sprintf("SOLANA_RPC_URL is not a valid URL: %s", c.RPCURL))
	}

	validClusters := map[string]bool{
		constants.ClusterMainnet: true,
		constants.ClusterDevnet:  true,
		constants.ClusterTestnet: true,
	}
	if !validClusters[c.Cluster] {
		errors = append(errors, fmt.Sprintf("SOLANA_CLUSTER must be one of: mainnet-beta, devnet, testnet, got: %s", c.Cluster))
	}

	// The key itself is never echoed back.
	if !c.PrivateKey.IsSet() {
		errors = append(errors, "SOLANA_PLATFORM_PRIVATE_KEY cannot be empty")
	}

	// Validate settlement parameters
	if c.RateLamports <= 0 {
		errors = append(errors, fmt.Sprintf("PAYMENT_RATE_LAMPORTS must be greater than 0, got: %d", c.RateLamports))
	}
	if c.FeePercent < 0 || c.FeePercent > constants.MaxFeePercent {
		errors = append(errors, fmt.Sprintf("PLATFORM_FEE_PERCENT must be between 0 and %d, got: %d", constants.MaxFeePercent, c.FeePercent))
	}
	if c.AggregationWindow <= 0 {
		errors = append(errors, fmt.Sprintf("AGGREGATION_WINDOW must be positive, got: %s", c.AggregationWindow))
	}
	if c.ConfirmTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("CONFIRM_TIMEOUT must be positive, got: %s", c.ConfirmTimeout))
	}
	if c.PollInterval <= 0 {
		errors = append(errors, fmt.Sprintf("CONFIRM_POLL_INTERVAL must be positive, got: %s", c.PollInterval))
	} else if c.PollInterval > c.ConfirmTimeout {
		errors = append(errors, "CONFIRM_POLL_INTERVAL cannot exceed CONFIRM_TIMEOUT")
	}
	if c.ReservationTTL <= c.ConfirmTimeout {
		errors = append(errors, "RESERVATION_TTL must be longer than CONFIRM_TIMEOUT")
	}
	if c.WithdrawRateLimit <= 0 {
		errors = append(errors, fmt.Sprintf("WITHDRAW_RATE_LIMIT must be greater than 0, got: %g", c.WithdrawRateLimit))
	}

	// Validate schedules; empty disables the job
	for key, spec := range map[string]string{
		"AGGREGATION_SCHEDULE": c.AggregationSchedule,
		"RECONCILE_SCHEDULE":   c.ReconcileSchedule,
	} {
		if spec == "" {
			continue
		}
		if _, err := cron.ParseStandard(spec); err != nil {
			errors = append(errors, fmt.Sprintf("%s is not a valid cron spec: %s", key, spec))
		}
	}

	// Validate LogLevel
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: debug, info, warn, error, got: %s", c.LogLevel))
	}

	// Validate LogFormat
	validLogFormats := map[string]bool{
		"text": true,
		"json": true,
	}
	if !validLogFormats[c.LogFormat] {
		errors = append(errors, fmt.Sprintf("LOG_FORMAT must be one of: text, json, got: %s", c.LogFormat))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func (c *Config) getInt64(key string, fallback int64) int64 {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		c.parseErrors = append(c.parseErrors, fmt.Sprintf("%s must be an integer, got: %s", key, raw))
		return fallback
	}
	return v
}

func (c *Config) getFloat(key string, fallback float64) float64 {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		c.parseErrors = append(c.parseErrors, fmt.Sprintf("%s must be a number, got: %s", key, raw))
		return fallback
	}
	return v
}

func (c *Config) getDuration(key string, fallback time.Duration) time.Duration {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		c.parseErrors = append(c.parseErrors, fmt.Sprintf("%s must be a duration like 30s or 5m, got: %s", key, raw))
		return fallback
	}
	return v
}
