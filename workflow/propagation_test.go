package workflow

import (
	"testing"

	"bitbucket.org/mmdatafocus/mes_backend/models"
)

func TestSelectSourceItemsEdit(t *testing.T) {
	cases := []struct {
		status   models.PlanStatus
		force    bool
		expected PropagationOutcome
	}{
		{models.PlanStatusDraft, false, PropagationApply},
		{models.PlanStatusDraft, true, PropagationApply},
		{models.PlanStatusSubmitted, false, PropagationApplyAndFlag},
		{models.PlanStatusSubmitted, true, PropagationApplyAndFlag},
		{models.PlanStatusApproved, false, PropagationBlocked},
		{models.PlanStatusApproved, true, PropagationApplyAndFlag},
		{models.PlanStatusLocked, false, PropagationBlocked},
		{models.PlanStatusLocked, true, PropagationApplyAndFlag},
		{models.PlanStatusExecuting, false, PropagationForbidden},
		// force never overrides an executing plan
		{models.PlanStatusExecuting, true, PropagationForbidden},
	}
	for _, tc := range cases {
		got := SelectSourceItemsEdit(tc.status, tc.force)
		if got != tc.expected {
			t.Fatalf("SelectSourceItemsEdit(%s, force=%v) expected %s, got %s",
				tc.status, tc.force, tc.expected, got)
		}
	}
}

func TestSelectSourceUnaudit(t *testing.T) {
	cases := []struct {
		status   models.PlanStatus
		expected PropagationOutcome
	}{
		// early-stage plans absorb the unaudit and get flagged stale
		{models.PlanStatusDraft, PropagationApplyAndFlag},
		{models.PlanStatusSubmitted, PropagationApplyAndFlag},
		// audited plans hold their demand until withdrawn
		{models.PlanStatusApproved, PropagationBlocked},
		{models.PlanStatusLocked, PropagationBlocked},
		{models.PlanStatusExecuting, PropagationBlocked},
	}
	for _, tc := range cases {
		if got := SelectSourceUnaudit(tc.status); got != tc.expected {
			t.Fatalf("SelectSourceUnaudit(%s) expected %s, got %s", tc.status, tc.expected, got)
		}
	}
}
