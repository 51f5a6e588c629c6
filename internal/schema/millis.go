package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Millis is a point in time as milliseconds since the Unix epoch.
// It is serialized as a JSON number.
type Millis int64

// Now returns the current time in milliseconds.
func Now() Millis {
	return FromTime(time.Now())
}

// FromTime converts t to milliseconds. The zero time maps to 0.
func FromTime(t time.Time) Millis {
	if t.IsZero() {
		return 0
	}
	return Millis(t.UnixMilli())
}

// Time converts m back to a time.Time in UTC.
func (m Millis) Time() time.Time {
	return time.UnixMilli(int64(m)).UTC()
}

// IsZero reports whether m is unset.
func (m Millis) IsZero() bool {
	return m == 0
}

// UnmarshalJSON accepts a number, a numeric string or an RFC 3339 string.
// Clients written against older payload shapes send any of the three.
func (m *Millis) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*m = 0
		return nil
	}

	if data[0] != '"' {
		n, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("invalid timestamp %s: %w", data, err)
		}
		*m = Millis(n)
		return nil
	}

	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid timestamp %s: %w", data, err)
	}
	if s == "" {
		*m = 0
		return nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		*m = Millis(n)
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	*m = FromTime(t)
	return nil
}
