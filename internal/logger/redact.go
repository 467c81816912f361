package logger

import (
	"log/slog"
	"strings"

	"github.com/cesargomez89/streampay/internal/constants"
)

var redactionAllowlist = map[string]struct{}{
	"artist_id":  {},
	"payment_id": {},
	"run_id":     {},
	"signature":  {},
	"component":  {},
	"error":      {},
	"reason":     {},
}

// sensitiveKeys are masked by every logger built with New, whoever logs them.
var sensitiveKeys = map[string]struct{}{
	"destination":    {},
	"wallet_address": {},
	"private_key":    {},
	"raw_tx":         {},
}

// IsAllowlisted reports whether key may be logged without masking.
func IsAllowlisted(key string) bool {
	_, ok := redactionAllowlist[strings.ToLower(strings.TrimSpace(key))]
	return ok
}

// MaskValue returns the redaction placeholder for non-empty values.
func MaskValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return value
	}
	return constants.Redacted
}

// MaskField returns an attribute whose value is redacted unless the key is
// allowlisted. Use it for anything derived from signing material.
func MaskField(key, value string) slog.Attr {
	if IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, MaskValue(value))
}

// redactAttr masks string attributes under sensitive keys.
func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindString {
		return a
	}
	if _, ok := sensitiveKeys[strings.ToLower(a.Key)]; !ok {
		return a
	}
	return MaskField(a.Key, a.Value.String())
}
