package signals

import (
	"context"
	"fmt"
	"sort"

	"github.com/scrypster/shoprec/internal/storage"
	"github.com/scrypster/shoprec/pkg/types"
)

// CoOccurrence maintains the "frequently bought with" pair counts. Every
// unordered product pair appearing together in a completed order is
// incremented exactly once per order, regardless of line quantities.
type CoOccurrence struct {
	store storage.CoOccurrenceStore
}

// NewCoOccurrence creates the co-occurrence recorder.
func NewCoOccurrence(store storage.CoOccurrenceStore) *CoOccurrence {
	return &CoOccurrence{store: store}
}

// RecordOrder increments the count for every unordered pair of distinct
// products in the order. Duplicate lines for the same product collapse to a
// single membership, so a pair is never counted twice for one order.
// Single-product orders are a no-op.
func (c *CoOccurrence) RecordOrder(ctx context.Context, order types.Order) error {
	ids := order.ProductIDs()
	if len(ids) < 2 {
		return nil
	}

	pairs := make([]storage.PairKey, 0, len(ids)*(len(ids)-1)/2)
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			key, ok := storage.NewPairKey(ids[i], ids[j])
			if !ok {
				continue
			}
			pairs = append(pairs, key)
		}
	}
	if len(pairs) == 0 {
		return nil
	}

	if err := c.store.IncrementPairs(ctx, pairs); err != nil {
		return fmt.Errorf("cooccurrence: failed to record order %s: %w", order.ID, err)
	}
	return nil
}

// FrequentlyBoughtWith returns the products most often co-purchased with
// productID, count descending, ties by product ID ascending. An empty result
// means the product has no co-purchase history; the orchestrator falls back
// to similarity in that case.
func (c *CoOccurrence) FrequentlyBoughtWith(ctx context.Context, productID string, limit int) ([]storage.PairCount, error) {
	if productID == "" {
		return nil, storage.ErrInvalidInput
	}
	counts, err := c.store.PairsFor(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("cooccurrence: failed to load pairs for %s: %w", productID, err)
	}

	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].ProductID < counts[j].ProductID
	})

	if limit > 0 && len(counts) > limit {
		counts = counts[:limit]
	}
	return counts, nil
}
