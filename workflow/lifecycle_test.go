package workflow

import (
	"testing"

	"bitbucket.org/mmdatafocus/mes_backend/models"
)

var allEvents = []models.LifecycleEvent{
	models.EventSubmit,
	models.EventStartApproval,
	models.EventApprove,
	models.EventReject,
	models.EventResubmit,
	models.EventUnaudit,
	models.EventCancel,
	models.EventClose,
}

var allStatuses = []models.DocumentStatus{
	models.DocumentStatusDraft,
	models.DocumentStatusSubmitted,
	models.DocumentStatusPendingReview,
	models.DocumentStatusAudited,
	models.DocumentStatusRejected,
	models.DocumentStatusCancelled,
	models.DocumentStatusClosed,
}

func TestNextStatusValidTransitions(t *testing.T) {
	cases := []struct {
		from  models.DocumentStatus
		event models.LifecycleEvent
		to    models.DocumentStatus
	}{
		{models.DocumentStatusDraft, models.EventSubmit, models.DocumentStatusSubmitted},
		{models.DocumentStatusDraft, models.EventCancel, models.DocumentStatusCancelled},
		{models.DocumentStatusSubmitted, models.EventStartApproval, models.DocumentStatusPendingReview},
		{models.DocumentStatusSubmitted, models.EventApprove, models.DocumentStatusAudited},
		{models.DocumentStatusSubmitted, models.EventCancel, models.DocumentStatusCancelled},
		{models.DocumentStatusPendingReview, models.EventApprove, models.DocumentStatusAudited},
		{models.DocumentStatusPendingReview, models.EventReject, models.DocumentStatusRejected},
		{models.DocumentStatusPendingReview, models.EventCancel, models.DocumentStatusCancelled},
		{models.DocumentStatusAudited, models.EventUnaudit, models.DocumentStatusPendingReview},
		{models.DocumentStatusAudited, models.EventClose, models.DocumentStatusClosed},
		{models.DocumentStatusRejected, models.EventResubmit, models.DocumentStatusSubmitted},
		{models.DocumentStatusRejected, models.EventCancel, models.DocumentStatusCancelled},
	}
	valid := make(map[models.DocumentStatus]map[models.LifecycleEvent]bool)
	for _, tc := range cases {
		got, err := NextStatus(tc.from, tc.event)
		if err != nil {
			t.Fatalf("NextStatus(%s, %s): %v", tc.from, tc.event, err)
		}
		if got != tc.to {
			t.Fatalf("NextStatus(%s, %s) expected %s, got %s", tc.from, tc.event, tc.to, got)
		}
		if valid[tc.from] == nil {
			valid[tc.from] = make(map[models.LifecycleEvent]bool)
		}
		valid[tc.from][tc.event] = true
	}

	// the table accepts exactly the pairs above, nothing else
	for _, from := range allStatuses {
		for _, event := range allEvents {
			if valid[from][event] {
				continue
			}
			if _, err := NextStatus(from, event); err == nil {
				t.Fatalf("NextStatus(%s, %s) should be rejected", from, event)
			}
		}
	}
}

func TestNextStatusTerminalStatesAcceptNothing(t *testing.T) {
	for _, from := range []models.DocumentStatus{models.DocumentStatusCancelled, models.DocumentStatusClosed} {
		for _, event := range allEvents {
			if _, err := NextStatus(from, event); err == nil {
				t.Fatalf("%s should accept no events, %s passed", from, event)
			}
		}
	}
}

func TestNextStatusUnknownStatus(t *testing.T) {
	if _, err := NextStatus(models.DocumentStatus("archived"), models.EventSubmit); err == nil {
		t.Fatal("unknown status should be rejected")
	}
}

func TestLifecycleAppliersCoverAllDocumentFamilies(t *testing.T) {
	expected := []string{
		"SalesForecast", "SalesOrder", "PurchaseOrder",
		"Receipt", "Picking", "Delivery", "Stocktaking",
		"PurchaseInvoice", "SalesInvoice", "OutsourceOrder",
	}
	for _, docType := range expected {
		if _, ok := lifecycleAppliers[docType]; !ok {
			t.Fatalf("no lifecycle applier registered for %s", docType)
		}
	}
}
