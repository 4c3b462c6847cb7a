package engine

import (
	"context"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/scrypster/shoprec/internal/storage"
	"github.com/scrypster/shoprec/pkg/types"
)

// BackfillResult summarizes one backfill run.
type BackfillResult struct {
	// Generated is the number of products whose vectors were (re)generated.
	Generated int

	// Skipped is the number of products whose stored vector was already
	// current for their text and model.
	Skipped int

	// Failed maps product IDs to the error that prevented their embedding.
	// Failures do not abort the run; the remaining products still proceed.
	Failed map[string]error
}

// Backfill generates embeddings for every product in the catalog that has no
// current vector, batching texts into provider calls and running a bounded
// number of batches concurrently. It is safe to re-run: up-to-date products
// are skipped by text-hash comparison.
func (e *RecommendationEngine) Backfill(ctx context.Context, catalog storage.CatalogStore) (*BackfillResult, error) {
	products, err := catalog.AllProducts(ctx)
	if err != nil {
		return nil, fmt.Errorf("backfill: failed to list catalog: %w", err)
	}

	result := &BackfillResult{Failed: make(map[string]error)}

	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ID)
	}
	existing, err := e.embeddings.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("backfill: failed to load existing embeddings: %w", err)
	}

	model := e.generator.GetModel()
	var stale []*types.Product
	for _, p := range products {
		if emb, ok := existing[p.ID]; ok && emb.TextHash == p.TextHash() && emb.Model == model {
			result.Skipped++
			continue
		}
		stale = append(stale, p)
	}

	log.Printf("Backfill: %d products total, %d current, %d to embed",
		len(products), result.Skipped, len(stale))

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.config.BatchConcurrency)

	for start := 0; start < len(stale); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(stale) {
			end = len(stale)
		}
		batch := stale[start:end]

		g.Go(func() error {
			generated, failed := e.embedBatch(gctx, batch)
			mu.Lock()
			result.Generated += generated
			for id, err := range failed {
				result.Failed[id] = err
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, fmt.Errorf("backfill: %w", err)
	}

	log.Printf("Backfill complete: %d generated, %d skipped, %d failed",
		result.Generated, result.Skipped, len(result.Failed))
	return result, nil
}

// embedBatch embeds one batch of products via a single provider call and
// persists the vectors. On a batch-level failure it records the error for
// every product in the batch rather than aborting the run.
func (e *RecommendationEngine) embedBatch(ctx context.Context, batch []*types.Product) (int, map[string]error) {
	failed := make(map[string]error)

	texts := make([]string, len(batch))
	for i, p := range batch {
		texts[i] = p.EmbeddingText()
	}

	vectors, err := e.generator.EmbedBatch(ctx, texts)
	if err != nil {
		for _, p := range batch {
			failed[p.ID] = err
			e.setStatus(p.ID, types.EmbeddingFailed)
		}
		return 0, failed
	}
	if len(vectors) != len(batch) {
		err := fmt.Errorf("provider returned %d vectors for %d texts", len(vectors), len(batch))
		for _, p := range batch {
			failed[p.ID] = err
			e.setStatus(p.ID, types.EmbeddingFailed)
		}
		return 0, failed
	}

	generated := 0
	model := e.generator.GetModel()
	for i, p := range batch {
		if err := e.embeddings.Put(ctx, p.ID, vectors[i], model, p.TextHash()); err != nil {
			failed[p.ID] = fmt.Errorf("failed to store embedding: %w", err)
			e.setStatus(p.ID, types.EmbeddingFailed)
			continue
		}
		e.setStatus(p.ID, types.EmbeddingCompleted)
		generated++
	}
	return generated, failed
}
