package types_test

import (
	"testing"

	"github.com/scrypster/shoprec/pkg/types"
)

// TestOrderProductIDs_DeduplicatesLines verifies that repeated lines for the
// same product collapse to one ID in first-seen order.
func TestOrderProductIDs_DeduplicatesLines(t *testing.T) {
	order := types.Order{
		Lines: []types.OrderLine{
			{ProductID: "prod-b", Quantity: 1},
			{ProductID: "prod-a", Quantity: 2},
			{ProductID: "prod-b", Quantity: 3},
			{ProductID: "prod-c", Quantity: 1},
			{ProductID: "prod-a", Quantity: 1},
		},
	}

	got := order.ProductIDs()
	want := []string{"prod-b", "prod-a", "prod-c"}
	if len(got) != len(want) {
		t.Fatalf("expected %d product IDs, got %d: %v", len(want), len(got), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("position %d: expected %q, got %q", i, want[i], got[i])
		}
	}
}

// TestOrderProductIDs_SkipsEmptyIDs verifies that malformed lines with no
// product ID are dropped.
func TestOrderProductIDs_SkipsEmptyIDs(t *testing.T) {
	order := types.Order{
		Lines: []types.OrderLine{
			{ProductID: "", Quantity: 1},
			{ProductID: "prod-a", Quantity: 1},
		},
	}

	got := order.ProductIDs()
	if len(got) != 1 || got[0] != "prod-a" {
		t.Errorf("expected [prod-a], got %v", got)
	}
}

// TestOrderProductIDs_EmptyOrder verifies the zero case.
func TestOrderProductIDs_EmptyOrder(t *testing.T) {
	order := types.Order{}
	if got := order.ProductIDs(); len(got) != 0 {
		t.Errorf("expected no product IDs, got %v", got)
	}
}
