package utils

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestCeilToMultiple(t *testing.T) {
	cases := []struct {
		qty      string
		step     string
		expected string
	}{
		{"11", "5", "15"},
		{"10", "5", "10"},
		{"0.3", "0.25", "0.5"},
		{"7", "0", "7"},
		{"7", "-1", "7"},
	}
	for _, tc := range cases {
		qty := decimal.RequireFromString(tc.qty)
		step := decimal.RequireFromString(tc.step)
		got := CeilToMultiple(qty, step)
		if !got.Equal(decimal.RequireFromString(tc.expected)) {
			t.Fatalf("CeilToMultiple(%s, %s) expected %s, got %s", tc.qty, tc.step, tc.expected, got)
		}
	}
}

func TestTruncateToWeekReturnsMonday(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{"2026-08-31", "2026-08-31"}, // Monday stays
		{"2026-09-03", "2026-08-31"}, // Thursday
		{"2026-09-06", "2026-08-31"}, // Sunday belongs to the preceding Monday
		{"2026-09-07", "2026-09-07"}, // next Monday
	}
	for _, tc := range cases {
		in, _ := time.Parse("2006-01-02", tc.in)
		got := TruncateToWeek(in)
		if got.Format("2006-01-02") != tc.expected {
			t.Fatalf("TruncateToWeek(%s) expected %s, got %s", tc.in, tc.expected, got.Format("2006-01-02"))
		}
	}
}

func TestTruncateToDayDropsClock(t *testing.T) {
	in := time.Date(2026, 8, 31, 23, 59, 59, 0, time.UTC)
	got := TruncateToDay(in)
	if !got.Equal(time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected %s", got)
	}
}

func TestMaxDecimal(t *testing.T) {
	a := decimal.RequireFromString("3.5")
	b := decimal.RequireFromString("3.4")
	if !MaxDecimal(a, b).Equal(a) || !MaxDecimal(b, a).Equal(a) {
		t.Fatal("MaxDecimal should pick the larger value")
	}
}

func TestUniqueSlicePreservesFirstOccurrenceOrder(t *testing.T) {
	got := UniqueSlice([]int{3, 1, 3, 2, 1})
	if len(got) != 3 || got[0] != 3 || got[1] != 1 || got[2] != 2 {
		t.Fatalf("unexpected %v", got)
	}
}
