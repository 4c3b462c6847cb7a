package types_test

import (
	"testing"

	"github.com/scrypster/shoprec/pkg/types"
)

// TestProductInStock verifies the stock threshold.
func TestProductInStock(t *testing.T) {
	p := types.Product{Stock: 1}
	if !p.InStock() {
		t.Error("expected product with stock 1 to be in stock")
	}

	p.Stock = 0
	if p.InStock() {
		t.Error("expected product with stock 0 to be out of stock")
	}

	p.Stock = -3
	if p.InStock() {
		t.Error("expected product with negative stock to be out of stock")
	}
}

// TestProductTextHash_ChangesWithDescriptiveText verifies that the hash
// tracks title, description, and category.
func TestProductTextHash_ChangesWithDescriptiveText(t *testing.T) {
	base := types.Product{
		Title:       "Trail Running Shoes",
		Description: "Lightweight shoes with aggressive grip",
		Category:    "footwear",
	}
	baseHash := base.TextHash()

	titled := base
	titled.Title = "Road Running Shoes"
	if titled.TextHash() == baseHash {
		t.Error("expected hash to change when title changes")
	}

	described := base
	described.Description = "Heavy shoes"
	if described.TextHash() == baseHash {
		t.Error("expected hash to change when description changes")
	}

	categorized := base
	categorized.Category = "outdoor"
	if categorized.TextHash() == baseHash {
		t.Error("expected hash to change when category changes")
	}
}

// TestProductTextHash_IgnoresPriceAndStock verifies that price and stock
// changes never invalidate a stored embedding.
func TestProductTextHash_IgnoresPriceAndStock(t *testing.T) {
	base := types.Product{
		Title:      "Trail Running Shoes",
		Category:   "footwear",
		PriceCents: 12999,
		Stock:      10,
	}
	baseHash := base.TextHash()

	repriced := base
	repriced.PriceCents = 9999
	repriced.Stock = 0
	if repriced.TextHash() != baseHash {
		t.Error("expected hash to be unchanged by price and stock changes")
	}
}

// TestProductTextHash_FieldBoundaries verifies that concatenation keeps the
// fields distinguishable.
func TestProductTextHash_FieldBoundaries(t *testing.T) {
	a := types.Product{Title: "ab", Description: "c"}
	b := types.Product{Title: "a", Description: "bc"}
	if a.TextHash() == b.TextHash() {
		t.Error("expected field boundaries to produce distinct hashes")
	}
}
