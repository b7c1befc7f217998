package workflow

import (
	"testing"

	"bitbucket.org/mmdatafocus/mes_backend/models"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
)

func TestPreferredBomLines(t *testing.T) {
	group := func(n int) *int { return &n }

	lines := []*models.Bom{
		// plain primary line, no group
		{ID: 1, ComponentId: 10, IsAlternative: utils.NewFalse()},
		// group 1: primary plus a higher-priority-number alternative
		{ID: 2, ComponentId: 20, IsAlternative: utils.NewFalse(), AlternativeGroupId: group(1), Priority: 0},
		{ID: 3, ComponentId: 21, IsAlternative: utils.NewTrue(), AlternativeGroupId: group(1), Priority: 1},
		// group 2: two members on the same priority, lowest id wins
		{ID: 5, ComponentId: 31, IsAlternative: utils.NewTrue(), AlternativeGroupId: group(2), Priority: 2},
		{ID: 4, ComponentId: 30, IsAlternative: utils.NewTrue(), AlternativeGroupId: group(2), Priority: 2},
		// alternative without a group has no primary to stand in for
		{ID: 6, ComponentId: 40, IsAlternative: utils.NewTrue()},
	}

	got := preferredBomLines(lines)
	components := make([]int, 0, len(got))
	for _, line := range got {
		components = append(components, line.ComponentId)
	}
	expected := []int{10, 20, 30}
	if len(components) != len(expected) {
		t.Fatalf("expected components %v, got %v", expected, components)
	}
	for i := range expected {
		if components[i] != expected[i] {
			t.Fatalf("expected components %v, got %v", expected, components)
		}
	}
}

func TestPreferredBomLinesLowestPriorityWinsRegardlessOfOrder(t *testing.T) {
	group := func(n int) *int { return &n }
	lines := []*models.Bom{
		{ID: 8, ComponentId: 51, IsAlternative: utils.NewTrue(), AlternativeGroupId: group(7), Priority: 3},
		{ID: 9, ComponentId: 50, IsAlternative: utils.NewFalse(), AlternativeGroupId: group(7), Priority: 1},
	}
	got := preferredBomLines(lines)
	if len(got) != 1 || got[0].ComponentId != 50 {
		t.Fatalf("expected only component 50, got %v", got)
	}
}
