package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// LocalDateTimeLayout is an ISO-8601 date-time without a zone offset.
// Fractional seconds are accepted when parsing.
const LocalDateTimeLayout = "2006-01-02T15:04:05"

// Instant is a point in time as received on the wire. It is either an
// RFC 3339 timestamp or a wall-clock date-time whose zone is supplied later.
type Instant struct {
	t        time.Time
	floating bool // t holds wall-clock fields in UTC
}

// InstantAt wraps a concrete time.
func InstantAt(t time.Time) Instant {
	return Instant{t: t}
}

// ParseInstant accepts RFC 3339 or YYYY-MM-DDTHH:MM:SS[.fraction].
func ParseInstant(s string) (Instant, error) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return Instant{t: t}, nil
	}
	t, err := time.Parse(LocalDateTimeLayout, s)
	if err != nil {
		return Instant{}, fmt.Errorf("%w: invalid date-time %q", ErrInvalidInput, s)
	}
	return Instant{t: t, floating: true}, nil
}

// Floating reports whether the instant was given without an offset.
func (i Instant) Floating() bool { return i.floating }

func (i Instant) IsZero() bool { return i.t.IsZero() }

// In resolves the instant. A floating value is read as wall-clock time in loc.
func (i Instant) In(loc *time.Location) time.Time {
	if !i.floating {
		return i.t
	}
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := i.t.Date()
	return time.Date(y, m, d, i.t.Hour(), i.t.Minute(), i.t.Second(), i.t.Nanosecond(), loc)
}

func (i Instant) String() string {
	if i.floating {
		return i.t.Format(LocalDateTimeLayout + ".999999999")
	}
	return i.t.Format(time.RFC3339Nano)
}

// MarshalJSON keeps the form the value was parsed from.
func (i Instant) MarshalJSON() ([]byte, error) {
	return json.Marshal(i.String())
}

// UnmarshalJSON decodes RFC 3339 or an offset-less ISO date-time.
func (i *Instant) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseInstant(s)
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
