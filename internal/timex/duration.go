// Package timex holds time helpers shared by the configuration loaders.
package timex

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"time"
)

// Lifetime wraps time.Duration for JSON config files. A number is a count of
// seconds, matching the env and flag layers; a string is read by
// ParseLifetime, so "1800", "30m" and "336h" are all accepted.
type Lifetime struct {
	time.Duration
}

// MarshalJSON encodes the lifetime in its string form.
func (d Lifetime) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts both string and numeric encodings.
func (d *Lifetime) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value * float64(time.Second))
		return nil
	case string:
		var err error
		d.Duration, err = ParseLifetime(value)
		return err
	default:
		return errors.New("invalid lifetime")
	}
}

// ParseLifetime reads a token lifetime: a bare integer is a number of
// seconds, anything else must be a Go duration string.
func ParseLifetime(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}
