package types

import (
	"log/slog"
	"strconv"
)

const redactedPlaceholder = "***REDACTED***"

// SecretString carries a provider credential. Formatting, JSON encoding and
// slog all see a placeholder; Unmask is the only way to the raw value and is
// called where the key is attached to an upstream request.
type SecretString string

func (s SecretString) String() string   { return redactedPlaceholder }
func (s SecretString) GoString() string { return strconv.Quote(redactedPlaceholder) }

func (s SecretString) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(redactedPlaceholder)), nil
}

// LogValue implements slog.LogValuer.
func (s SecretString) LogValue() slog.Value {
	return slog.StringValue(redactedPlaceholder)
}

func (s SecretString) Unmask() string { return string(s) }

// IsSet reports whether a key was configured at all.
func (s SecretString) IsSet() bool { return s != "" }
