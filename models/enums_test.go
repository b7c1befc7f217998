package models

import "testing"

func TestDocumentStatusLegacyRoundTrip(t *testing.T) {
	statuses := []DocumentStatus{
		DocumentStatusDraft, DocumentStatusSubmitted, DocumentStatusPendingReview,
		DocumentStatusAudited, DocumentStatusRejected, DocumentStatusCancelled,
		DocumentStatusClosed,
	}
	for _, status := range statuses {
		legacy := status.LegacyName()
		if legacy == "" {
			t.Fatalf("no legacy name for %s", status)
		}
		parsed, err := ParseDocumentStatus(legacy)
		if err != nil {
			t.Fatalf("ParseDocumentStatus(%q): %v", legacy, err)
		}
		if parsed != status {
			t.Fatalf("legacy round trip for %s came back as %s", status, parsed)
		}
	}
}

func TestParseDocumentStatusAcceptsCanonicalValues(t *testing.T) {
	parsed, err := ParseDocumentStatus("audited")
	if err != nil {
		t.Fatalf("ParseDocumentStatus: %v", err)
	}
	if parsed != DocumentStatusAudited {
		t.Fatalf("expected audited, got %s", parsed)
	}
	if _, err := ParseDocumentStatus("done"); err == nil {
		t.Fatal("unknown value should be rejected")
	}
}

func TestDeliveryStatusLegacyRoundTrip(t *testing.T) {
	for _, status := range []DeliveryStatus{DeliveryStatusPending, DeliveryStatusPartial, DeliveryStatusDelivered} {
		parsed, err := ParseDeliveryStatus(status.LegacyName())
		if err != nil {
			t.Fatalf("ParseDeliveryStatus(%q): %v", status.LegacyName(), err)
		}
		if parsed != status {
			t.Fatalf("legacy round trip for %s came back as %s", status, parsed)
		}
	}
}

func TestParseLifecycleEventOnlyExposesExternalEvents(t *testing.T) {
	for _, s := range []string{"resubmit", "unaudit", "cancel", "close"} {
		if _, err := ParseLifecycleEvent(s); err != nil {
			t.Fatalf("ParseLifecycleEvent(%q): %v", s, err)
		}
	}
	// approval events only arrive through the review callback
	for _, s := range []string{"submit", "start_approval", "approve", "reject", "nonsense"} {
		if _, err := ParseLifecycleEvent(s); err == nil {
			t.Fatalf("ParseLifecycleEvent(%q) should be rejected", s)
		}
	}
}
