package workflow

import (
	"testing"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/models"
)

func TestPurchaseDeliveryDate(t *testing.T) {
	start := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	got := purchaseDeliveryDate(start, 5)
	if !got.Equal(time.Date(2026, 9, 12, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected start plus transit, got %s", got)
	}
	if !purchaseDeliveryDate(start, 0).Equal(start) {
		t.Fatalf("zero transit should arrive on the start date")
	}
}

func TestChildPinsPlan(t *testing.T) {
	wo := func(s models.WorkOrderStatus) *models.WorkOrderStatus { return &s }
	po := func(s models.DocumentStatus) *models.DocumentStatus { return &s }

	cases := []struct {
		name     string
		woStatus *models.WorkOrderStatus
		poStatus *models.DocumentStatus
		expected bool
	}{
		{"no children", nil, nil, false},
		{"draft work order", wo(models.WorkOrderStatusDraft), nil, false},
		{"draft purchase order", nil, po(models.DocumentStatusDraft), false},
		{"both draft", wo(models.WorkOrderStatusDraft), po(models.DocumentStatusDraft), false},
		{"released work order", wo(models.WorkOrderStatusReleased), nil, true},
		{"in-progress work order", wo(models.WorkOrderStatusInProgress), nil, true},
		{"completed work order", wo(models.WorkOrderStatusCompleted), nil, true},
		{"submitted purchase order", nil, po(models.DocumentStatusSubmitted), true},
		{"audited purchase order", nil, po(models.DocumentStatusAudited), true},
		{"draft order next to an audited one", wo(models.WorkOrderStatusDraft), po(models.DocumentStatusAudited), true},
	}
	for _, tc := range cases {
		if got := childPinsPlan(tc.woStatus, tc.poStatus); got != tc.expected {
			t.Fatalf("%s: childPinsPlan expected %v, got %v", tc.name, tc.expected, got)
		}
	}
}
