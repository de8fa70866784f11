package assetvault

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Duration is a media playtime. It accepts the three input shapes clients
// commonly send (plain seconds "90", "M:SS", and "H:MM:SS") and renders as
// "H:MM:SS" with an unpadded hour field.
type Duration struct {
	d time.Duration
}

// NewDuration wraps a time.Duration.
func NewDuration(d time.Duration) *Duration { return &Duration{d: d} }

// ParseDuration parses "90", "1:30" or "00:01:30" into a Duration.
// Fractional parts are accepted in any field.
func ParseDuration(s string) (*Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("parse duration: empty input")
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		if secs < 0 {
			return nil, fmt.Errorf("parse duration %q: negative", s)
		}
		return &Duration{d: time.Duration(secs * float64(time.Second))}, nil
	}
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return nil, fmt.Errorf("parse duration %q: want seconds, M:SS or H:MM:SS", s)
	}
	vals := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("parse duration %q: bad field %q", s, p)
		}
		vals[i] = v
	}
	var secs float64
	if len(vals) == 2 {
		secs = vals[0]*60 + vals[1]
	} else {
		secs = vals[0]*3600 + vals[1]*60 + vals[2]
	}
	return &Duration{d: time.Duration(secs * float64(time.Second))}, nil
}

// Seconds returns the duration in seconds.
func (d *Duration) Seconds() float64 { return d.d.Seconds() }

// Std returns the underlying time.Duration.
func (d *Duration) Std() time.Duration { return d.d }

// String renders the duration as "H:MM:SS". Sub-second precision is
// truncated.
func (d *Duration) String() string {
	total := int64(d.d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	return fmt.Sprintf("%d:%02d:%02d", h, m, s)
}

// MarshalJSON renders the duration as its String form.
func (d *Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts either a JSON number of seconds or any string form
// ParseDuration understands.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case float64:
		if v < 0 {
			return fmt.Errorf("parse duration: negative")
		}
		d.d = time.Duration(v * float64(time.Second))
		return nil
	case string:
		parsed, err := ParseDuration(v)
		if err != nil {
			return err
		}
		d.d = parsed.d
		return nil
	default:
		return fmt.Errorf("parse duration: unsupported JSON type %T", raw)
	}
}
