package engine

import (
	"context"
	"log"
	"time"
)

// trendingLoop recomputes the trending snapshot on a fixed interval. The
// first recomputation runs immediately so the snapshot is populated shortly
// after startup rather than one full interval later.
func (e *RecommendationEngine) trendingLoop(ctx context.Context) {
	defer e.schedulerWG.Done()

	log.Printf("Trending scheduler started (interval=%s)", e.config.TrendingInterval)

	e.recomputeTrending(ctx)

	ticker := time.NewTicker(e.config.TrendingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			e.recomputeTrending(ctx)
		case <-ctx.Done():
			log.Println("Trending scheduler stopped")
			return
		}
	}
}

// recomputeTrending runs one recomputation. Failures are logged and the
// previous snapshot keeps serving; the next tick retries.
func (e *RecommendationEngine) recomputeTrending(ctx context.Context) {
	start := time.Now()
	if err := e.trending.Recompute(ctx); err != nil {
		log.Printf("ERROR: Trending recompute failed: %v", err)
		return
	}

	entries, err := e.trending.Get(ctx, 0)
	if err != nil {
		log.Printf("WARNING: Trending snapshot read-back failed: %v", err)
		return
	}
	log.Printf("Trending snapshot refreshed: %d products in %s", len(entries), time.Since(start))

	e.mu.RLock()
	callback := e.onTrendingRefreshed
	e.mu.RUnlock()
	if callback != nil {
		callback(len(entries))
	}
}
