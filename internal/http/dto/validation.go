package dto

import (
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) ToMap() map[string]string {
	return map[string]string{e.Field: e.Message}
}

func ToMap(errs []ValidationError) map[string]string {
	result := make(map[string]string)
	for _, e := range errs {
		result[e.Field] = e.Message
	}
	return result
}

func ToResponse(errs []ValidationError) string {
	var msgs []string
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	return strings.Join(msgs, "; ")
}

func validateRequired(field, value string) []ValidationError {
	if strings.TrimSpace(value) == "" {
		return []ValidationError{{Field: field, Message: "is required"}}
	}
	return nil
}

func validateMaxLen(field string, value *string, max int) []ValidationError {
	if value != nil && len(*value) > max {
		return []ValidationError{{Field: field, Message: fmt.Sprintf("must be at most %d characters", max)}}
	}
	return nil
}

// validateWallet accepts base58 ed25519 public keys only.
func validateWallet(field, addr string) []ValidationError {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return []ValidationError{{Field: field, Message: "is required"}}
	}
	if _, err := solana.PublicKeyFromBase58(addr); err != nil {
		return []ValidationError{{Field: field, Message: "invalid Solana address"}}
	}
	return nil
}

func validateDuration(field string, seconds int) []ValidationError {
	if seconds < 0 || seconds > 24*60*60 {
		return []ValidationError{{Field: field, Message: "must be between 0 and 86400 seconds"}}
	}
	return nil
}

func parseTimestamp(field string, value *string) (time.Time, []ValidationError) {
	if value == nil || *value == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339, *value)
	if err != nil {
		return time.Time{}, []ValidationError{{Field: field, Message: "invalid timestamp (expected RFC 3339)"}}
	}
	return ts.UTC(), nil
}
