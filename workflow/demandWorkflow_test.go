package workflow

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestDemandSyncConflict(t *testing.T) {
	d := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }

	cases := []struct {
		name      string
		delivered string
		incoming  string
		expected  bool
	}{
		{"nothing delivered yet", "0", "5", false},
		{"incoming covers delivered", "3", "3", false},
		{"incoming above delivered", "3", "10", false},
		{"incoming undercuts delivered", "5", "3", true},
		{"line vanishes after delivery", "5", "0", true},
	}
	for _, tc := range cases {
		if got := demandSyncConflict(d(tc.delivered), d(tc.incoming)); got != tc.expected {
			t.Fatalf("%s: demandSyncConflict(%s, %s) expected %v, got %v",
				tc.name, tc.delivered, tc.incoming, tc.expected, got)
		}
	}
}
