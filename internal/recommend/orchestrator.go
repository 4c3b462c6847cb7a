// Package recommend implements the recommendation orchestrator: the single
// entry point the HTTP layer calls for ranked product lists. It combines the
// similarity engine with the behavioral aggregators and owns the fallback
// decisions when a preferred signal is unavailable.
package recommend

import (
	"context"
	"fmt"
	"sort"

	"github.com/scrypster/shoprec/internal/signals"
	"github.com/scrypster/shoprec/internal/similarity"
	"github.com/scrypster/shoprec/internal/storage"
	"github.com/scrypster/shoprec/pkg/types"
)

const (
	// DefaultLimit applies when a request does not specify one.
	DefaultLimit = 10

	// MaxLimit is the hard cap on list length; larger requests are clamped,
	// not rejected.
	MaxLimit = 50
)

// DegradedChecker reports whether the embedding provider is currently
// unusable (quota cooldown or rejected credentials). The orchestrator does
// not call the provider itself, but a degraded provider means missing
// vectors will not heal soon, so fallbacks engage immediately.
type DegradedChecker interface {
	Degraded() bool
}

// Orchestrator answers the four recommendation queries. All orderings are
// deterministic: primary score descending, product ID ascending on ties.
type Orchestrator struct {
	embeddings   storage.EmbeddingStore
	catalog      storage.CatalogStore
	trending     *signals.Trending
	coOccurrence *signals.CoOccurrence
	recent       *signals.RecentlyViewed
	degraded     DegradedChecker
}

// NewOrchestrator wires the orchestrator. degraded may be nil, in which case
// the provider is assumed healthy.
func NewOrchestrator(
	embeddings storage.EmbeddingStore,
	catalog storage.CatalogStore,
	trending *signals.Trending,
	coOccurrence *signals.CoOccurrence,
	recent *signals.RecentlyViewed,
	degraded DegradedChecker,
) *Orchestrator {
	return &Orchestrator{
		embeddings:   embeddings,
		catalog:      catalog,
		trending:     trending,
		coOccurrence: coOccurrence,
		recent:       recent,
		degraded:     degraded,
	}
}

// clampLimit normalizes a requested list length.
func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Related returns products similar to productID by embedding cosine
// similarity. When the product has no usable vector, or the provider is
// degraded, it falls back to same-category products ranked by trending
// score. The anchor product itself is never in the result, and out-of-stock
// products are filtered after ranking.
func (o *Orchestrator) Related(ctx context.Context, productID string, limit int) (*types.RecommendationSet, error) {
	limit = clampLimit(limit)

	anchor, err := o.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("related: %w", err)
	}

	if o.degraded != nil && o.degraded.Degraded() {
		return o.categoryFallback(ctx, anchor, limit)
	}

	emb, err := o.embeddings.Get(ctx, productID)
	if err == storage.ErrNotFound {
		return o.categoryFallback(ctx, anchor, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("related: failed to load embedding: %w", err)
	}

	all, err := o.embeddings.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("related: failed to load candidate embeddings: %w", err)
	}

	candidates := make(map[string][]float32, len(all))
	for id, e := range all {
		candidates[id] = e.Vector
	}
	exclude := map[string]struct{}{productID: {}}

	// Rank more than requested so the stock filter below can drop items
	// without starving the list.
	ranked := similarity.TopK(emb.Vector, candidates, limit*2+8, exclude)

	products := make([]types.RankedProduct, 0, len(ranked))
	for _, s := range ranked {
		products = append(products, types.RankedProduct{ProductID: s.ProductID, Score: s.Score})
	}

	products, err = o.filterInStock(ctx, products, limit)
	if err != nil {
		return nil, fmt.Errorf("related: %w", err)
	}
	return &types.RecommendationSet{Products: products, Source: types.SourceSimilarity}, nil
}

// FrequentlyBoughtWith returns products most often co-purchased with
// productID, ranked by pair count. A product with no purchase history falls
// back to Related, so cold-start products still get a useful answer.
func (o *Orchestrator) FrequentlyBoughtWith(ctx context.Context, productID string, limit int) (*types.RecommendationSet, error) {
	limit = clampLimit(limit)

	if _, err := o.catalog.GetProduct(ctx, productID); err != nil {
		return nil, fmt.Errorf("frequently bought with: %w", err)
	}

	counts, err := o.coOccurrence.FrequentlyBoughtWith(ctx, productID, limit*2+8)
	if err != nil {
		return nil, fmt.Errorf("frequently bought with: %w", err)
	}
	if len(counts) == 0 {
		return o.Related(ctx, productID, limit)
	}

	products := make([]types.RankedProduct, 0, len(counts))
	for _, c := range counts {
		products = append(products, types.RankedProduct{ProductID: c.ProductID, Score: float64(c.Count)})
	}

	products, err = o.filterInStock(ctx, products, limit)
	if err != nil {
		return nil, fmt.Errorf("frequently bought with: %w", err)
	}
	return &types.RecommendationSet{Products: products, Source: types.SourceCoOccurrence}, nil
}

// Trending returns the current trending snapshot. An empty snapshot before
// the first recompute yields an empty list, not an error.
func (o *Orchestrator) Trending(ctx context.Context, limit int) (*types.RecommendationSet, error) {
	limit = clampLimit(limit)

	entries, err := o.trending.Get(ctx, limit*2+8)
	if err != nil {
		return nil, fmt.Errorf("trending: %w", err)
	}

	products := make([]types.RankedProduct, 0, len(entries))
	for _, e := range entries {
		products = append(products, types.RankedProduct{ProductID: e.ProductID, Score: e.Score})
	}

	products, err = o.filterInStock(ctx, products, limit)
	if err != nil {
		return nil, fmt.Errorf("trending: %w", err)
	}
	return &types.RecommendationSet{Products: products, Source: types.SourceTrending}, nil
}

// RecentlyViewed returns the subject's recently viewed products, most recent
// first. The recency position is encoded as a descending score so the result
// shape matches the other queries. Products deleted from the catalog since
// the view are dropped, and out-of-stock products are filtered like in every
// other query.
func (o *Orchestrator) RecentlyViewed(ctx context.Context, subjectID string, limit int) (*types.RecommendationSet, error) {
	limit = clampLimit(limit)

	// Read past the limit so the stock filter below can drop items without
	// starving the list.
	ids, err := o.recent.Recent(ctx, subjectID, limit*2+8)
	if err != nil {
		return nil, fmt.Errorf("recently viewed: %w", err)
	}

	products := make([]types.RankedProduct, 0, len(ids))
	for i, id := range ids {
		products = append(products, types.RankedProduct{ProductID: id, Score: float64(len(ids) - i)})
	}

	products, err = o.filterInStock(ctx, products, limit)
	if err != nil {
		return nil, fmt.Errorf("recently viewed: %w", err)
	}
	return &types.RecommendationSet{Products: products, Source: types.SourceRecency}, nil
}

// categoryFallback serves Related when vector ranking is unavailable:
// same-category products ordered by trending score, products absent from
// the snapshot ranked last by ID.
func (o *Orchestrator) categoryFallback(ctx context.Context, anchor *types.Product, limit int) (*types.RecommendationSet, error) {
	peers, err := o.catalog.ProductsByCategory(ctx, anchor.Category)
	if err != nil {
		return nil, fmt.Errorf("category fallback: %w", err)
	}

	entries, err := o.trending.Get(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("category fallback: %w", err)
	}
	scores := make(map[string]float64, len(entries))
	for _, e := range entries {
		scores[e.ProductID] = e.Score
	}

	products := make([]types.RankedProduct, 0, len(peers))
	for _, p := range peers {
		if p.ID == anchor.ID {
			continue
		}
		products = append(products, types.RankedProduct{ProductID: p.ID, Score: scores[p.ID]})
	}

	sort.Slice(products, func(i, j int) bool {
		if products[i].Score != products[j].Score {
			return products[i].Score > products[j].Score
		}
		return products[i].ProductID < products[j].ProductID
	})

	products, err = o.filterInStock(ctx, products, limit)
	if err != nil {
		return nil, fmt.Errorf("category fallback: %w", err)
	}
	return &types.RecommendationSet{Products: products, Source: types.SourceCategoryFallback}, nil
}

// filterInStock drops products that are out of stock or missing from the
// catalog, preserving ranking order, and truncates to limit. Filtering after
// ranking keeps scores comparable across requests regardless of inventory.
func (o *Orchestrator) filterInStock(ctx context.Context, ranked []types.RankedProduct, limit int) ([]types.RankedProduct, error) {
	if len(ranked) == 0 {
		return []types.RankedProduct{}, nil
	}

	ids := make([]string, len(ranked))
	for i, r := range ranked {
		ids[i] = r.ProductID
	}
	known, err := o.catalog.GetProducts(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load products for stock filter: %w", err)
	}

	out := make([]types.RankedProduct, 0, limit)
	for _, r := range ranked {
		p, ok := known[r.ProductID]
		if !ok || !p.InStock() {
			continue
		}
		out = append(out, r)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}
