package config

import (
	"fmt"
	"time"
)

// Duration wraps time.Duration so YAML and environment values like "30s"
// or "2m" parse directly into config fields.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Secret is a string that redacts itself in fmt output and logs.
type Secret string

// String implements fmt.Stringer, always returning a redaction marker.
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "[REDACTED]"
}

// Value returns the underlying secret for use at call sites that
// actually need it, such as an Authorization header.
func (s Secret) Value() string { return string(s) }
