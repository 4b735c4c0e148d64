package core

import (
	"testing"
	"time"
)

func date(y, m, d int) time.Time {
	return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
}

func TestNextOccurrence(t *testing.T) {
	cases := []struct {
		name string
		last time.Time
		freq Frequency
		want time.Time
	}{
		{"weekly", date(2024, 1, 1), Weekly, date(2024, 1, 8)},
		{"weekly across month end", date(2024, 1, 29), Weekly, date(2024, 2, 5)},
		{"biweekly", date(2024, 1, 1), BiWeekly, date(2024, 1, 15)},
		{"monthly", date(2024, 1, 1), Monthly, date(2024, 2, 1)},
		{"monthly preserves day", date(2024, 3, 15), Monthly, date(2024, 4, 15)},
		// AddDate normalization: Jan 31 + 1 month in a leap year lands on Mar 2.
		{"monthly month-end overflow", date(2024, 1, 31), Monthly, date(2024, 3, 2)},
		{"monthly month-end overflow non-leap", date(2025, 1, 31), Monthly, date(2025, 3, 3)},
		{"yearly", date(2024, 5, 10), Yearly, date(2025, 5, 10)},
		// Feb 29 + 1 year normalizes to Mar 1.
		{"yearly leap day", date(2024, 2, 29), Yearly, date(2025, 3, 1)},
		{"unknown frequency falls back to monthly", date(2024, 1, 1), Frequency("fortnightly"), date(2024, 2, 1)},
		{"empty frequency falls back to monthly", date(2024, 1, 1), Frequency(""), date(2024, 2, 1)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NextOccurrence(tc.last, tc.freq)
			if !got.Equal(tc.want) {
				t.Fatalf("NextOccurrence(%v, %s) = %v, want %v", tc.last, tc.freq, got, tc.want)
			}
		})
	}
}

func TestNextOccurrenceAlwaysAdvances(t *testing.T) {
	freqs := []Frequency{Weekly, BiWeekly, Monthly, Yearly}
	start := date(2024, 1, 31)
	for _, f := range freqs {
		next := NextOccurrence(start, f)
		if !next.After(start) {
			t.Errorf("%s: next occurrence %v does not advance past %v", f, next, start)
		}
	}
}
