package models

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestMaterialInventoryFromParts(t *testing.T) {
	d := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }

	row := materialInventoryFromParts(7, d("100"), d("30"), d("25"), d("40"), d("15"))
	if row.MaterialId != 7 {
		t.Fatalf("expected material 7, got %d", row.MaterialId)
	}
	if !row.OnHand.Equal(d("100")) {
		t.Fatalf("expected on-hand 100, got %s", row.OnHand)
	}
	if !row.Reserved.Equal(d("30")) {
		t.Fatalf("expected reserved 30, got %s", row.Reserved)
	}
	if !row.Available.Equal(d("70")) {
		t.Fatalf("available should be on-hand minus reserved, got %s", row.Available)
	}
	if !row.InTransit.Equal(d("25")) {
		t.Fatalf("expected in-transit 25, got %s", row.InTransit)
	}
	if !row.SafetyStock.Equal(d("15")) {
		t.Fatalf("expected safety stock 15, got %s", row.SafetyStock)
	}
	// open receipts count inbound purchases and expected production
	if !row.OpenReceiptQuantity.Equal(d("65")) {
		t.Fatalf("expected open receipts 65, got %s", row.OpenReceiptQuantity)
	}
}

func TestMaterialInventoryFromPartsClampsAvailability(t *testing.T) {
	d := func(s string) decimal.Decimal { return decimal.RequireFromString(s) }

	row := materialInventoryFromParts(3, d("10"), d("25"), d("0"), d("0"), d("0"))
	if !row.Available.Equal(decimal.Zero) {
		t.Fatalf("over-reservation must not go negative, got %s", row.Available)
	}
	if !row.Reserved.Equal(d("25")) {
		t.Fatalf("reserved should stay visible, got %s", row.Reserved)
	}
}
