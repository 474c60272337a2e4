package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestParseInstant(t *testing.T) {
	est := time.FixedZone("EST", -5*3600)

	tests := []struct {
		name     string
		in       string
		floating bool
		want     time.Time
	}{
		{"rfc3339 utc", "2025-01-15T12:00:00Z", false, time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)},
		{"rfc3339 offset", "2025-01-15T12:00:00+01:00", false, time.Date(2025, 1, 15, 11, 0, 0, 0, time.UTC)},
		{"local", "2025-01-15T12:00:00", true, time.Date(2025, 1, 15, 17, 0, 0, 0, time.UTC)},
		{"local fraction", "2025-01-15T12:00:00.250", true, time.Date(2025, 1, 15, 17, 0, 0, 250e6, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseInstant(tt.in)
			if err != nil {
				t.Fatalf("ParseInstant failed: %v", err)
			}
			if got.Floating() != tt.floating {
				t.Errorf("floating = %v, want %v", got.Floating(), tt.floating)
			}
			if at := got.In(est); !at.Equal(tt.want) {
				t.Errorf("In(EST) = %v, want %v", at, tt.want)
			}
		})
	}

	for _, bad := range []string{"", "2025-01-15", "15/01/2025 12:00", "2025-13-01T00:00:00"} {
		if _, err := ParseInstant(bad); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("ParseInstant(%q): expected ErrInvalidInput, got %v", bad, err)
		}
	}
}

func TestInstantJSON(t *testing.T) {
	var body struct {
		At *Instant `json:"at"`
	}
	if err := json.Unmarshal([]byte(`{"at":"2025-01-15T12:00:00"}`), &body); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if body.At == nil || !body.At.In(time.UTC).Equal(time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected instant %v", body.At)
	}

	out, err := json.Marshal(body.At)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if string(out) != `"2025-01-15T12:00:00"` {
		t.Errorf("expected the offset-less form back, got %s", out)
	}

	if err := json.Unmarshal([]byte(`{"at":"yesterday"}`), &body); err == nil {
		t.Error("expected an error for a malformed instant")
	}
}
