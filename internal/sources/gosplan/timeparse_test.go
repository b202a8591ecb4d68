package gosplan

import (
	"testing"
	"time"
)

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2026-03-01T10:00:00Z", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"2026-03-01T10:00:00", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"2026-03-01T13:00:00+03:00", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"2026-03-01T13:00+03:00", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"2026-03-01T10:00Z", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"2026-03-01T13:00+0300", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"2026-03-01 10:00:00", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"2026-03-01T10:00:00.123", time.Date(2026, 3, 1, 10, 0, 0, 123000000, time.UTC)},
		{"2026-03-01", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"01.03.2026", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"01.03.2026 10:00", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"1772359200", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"1772359200000", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := parseTimestamp(tt.in)
			if got == nil {
				t.Fatalf("parseTimestamp(%q) = nil", tt.in)
			}
			if !got.Equal(tt.want) {
				t.Errorf("parseTimestamp(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("parseTimestamp(%q) location = %v, want UTC", tt.in, got.Location())
			}
		})
	}
}

func TestParseTimestampInvalid(t *testing.T) {
	for _, in := range []string{"", "   ", "tomorrow", "2026-13-45", "32.01.2026"} {
		if got := parseTimestamp(in); got != nil {
			t.Errorf("parseTimestamp(%q) = %v, want nil", in, got)
		}
	}
}
