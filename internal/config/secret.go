package config

import (
	"log/slog"

	"github.com/cesargomez89/streampay/internal/constants"
)

// Secret holds sensitive configuration such as the platform signing key.
// Every formatting path renders a placeholder; use Reveal for the raw value.
type Secret string

func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return constants.Redacted
}

func (s Secret) GoString() string {
	return s.String()
}

func (s Secret) LogValue() slog.Value {
	return slog.StringValue(s.String())
}

func (s Secret) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Reveal returns the underlying secret value.
func (s Secret) Reveal() string {
	return string(s)
}

// IsSet reports whether a value was provided.
func (s Secret) IsSet() bool {
	return s != ""
}
