package dateparse

import (
	"testing"
	"time"
)

// Fixed reference time: Wednesday, 2026-02-18 12:00:00 UTC
var testNow = time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParseSince(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"2026-01-01", day(2026, 1, 1)},
		{"today", day(2026, 2, 18)},
		{"  Yesterday ", day(2026, 2, 17)},
		{"last-week", day(2026, 2, 11)},
		{"last-month", day(2026, 1, 18)},
		{"0d", day(2026, 2, 18)},
		{"7d", day(2026, 2, 11)},
		{"-7d", day(2026, 2, 11)},
		{"2w", day(2026, 2, 4)},
		{"1m", day(2026, 1, 18)},
		{"36h", testNow.Add(-36 * time.Hour)},
		{"-90m30s", testNow.Add(-(90*time.Minute + 30*time.Second))},
		{"wednesday", day(2026, 2, 18)},
		{"monday", day(2026, 2, 16)},
		{"thursday", day(2026, 2, 12)},
	}
	for _, tt := range tests {
		got, err := ParseSinceFrom(tt.input, testNow)
		if err != nil {
			t.Errorf("ParseSinceFrom(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("ParseSinceFrom(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParseSince_NeverInFuture(t *testing.T) {
	for _, in := range []string{"today", "0d", "saturday", "sunday", "1h"} {
		got, err := ParseSinceFrom(in, testNow)
		if err != nil {
			t.Fatalf("ParseSinceFrom(%q): %v", in, err)
		}
		if got.After(testNow) {
			t.Errorf("ParseSinceFrom(%q) = %v is after now", in, got)
		}
	}
}

func TestParseSince_Errors(t *testing.T) {
	for _, in := range []string{"", "   ", "soon", "7y", "2026-13-01", "xd"} {
		if _, err := ParseSinceFrom(in, testNow); err == nil {
			t.Errorf("ParseSinceFrom(%q): expected error", in)
		}
	}
}
