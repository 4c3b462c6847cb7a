// Package signals contains the three behavioral aggregators feeding the
// recommendation orchestrator: trending scores, order co-occurrence counts,
// and per-subject recently-viewed logs.
//
// Each aggregator owns derived state only; everything it holds is
// reconstructible from the append-only event log and order history, which
// the storefront collaborators own.
package signals

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/scrypster/shoprec/internal/storage"
)

// TrendingConfig tunes the trending aggregator.
type TrendingConfig struct {
	// Window is the rolling event window. Default: 168h (7 days).
	Window time.Duration

	// PurchaseWeight and ViewWeight weight the two event types in the score.
	// Defaults: 5 and 1.
	PurchaseWeight float64
	ViewWeight     float64
}

// Trending computes a weighted popularity score per product over a rolling
// window. Recomputation fully replaces the snapshot — a deliberate
// "recompute, don't decay" model: a crash mid-job leaves the previous
// snapshot serving, and re-running is always safe.
type Trending struct {
	events storage.EventStore
	store  storage.TrendingStore
	cfg    TrendingConfig
}

// NewTrending creates the trending aggregator with defaults applied.
func NewTrending(events storage.EventStore, store storage.TrendingStore, cfg TrendingConfig) *Trending {
	if cfg.Window <= 0 {
		cfg.Window = 168 * time.Hour
	}
	if cfg.PurchaseWeight <= 0 {
		cfg.PurchaseWeight = 5
	}
	if cfg.ViewWeight <= 0 {
		cfg.ViewWeight = 1
	}
	return &Trending{events: events, store: store, cfg: cfg}
}

// Recompute scans the event window, scores every product, and replaces the
// snapshot wholesale. Idempotent: re-running over the same events produces
// the same snapshot.
func (t *Trending) Recompute(ctx context.Context) error {
	windowStart := time.Now().Add(-t.cfg.Window)

	counts, err := t.events.CountsSince(ctx, windowStart)
	if err != nil {
		return fmt.Errorf("trending: failed to scan event window: %w", err)
	}

	entries := make([]storage.TrendingEntry, 0, len(counts))
	for productID, c := range counts {
		score := t.cfg.PurchaseWeight*float64(c.Purchases) + t.cfg.ViewWeight*float64(c.Views)
		if score <= 0 {
			continue
		}
		entries = append(entries, storage.TrendingEntry{
			ProductID:   productID,
			Score:       score,
			WindowStart: windowStart,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Score != entries[j].Score {
			return entries[i].Score > entries[j].Score
		}
		return entries[i].ProductID < entries[j].ProductID
	})

	if err := t.store.ReplaceSnapshot(ctx, entries, windowStart); err != nil {
		return fmt.Errorf("trending: failed to replace snapshot: %w", err)
	}
	return nil
}

// Get returns up to limit trending entries from the last committed snapshot,
// score descending, ties by product ID ascending. Before the first recompute
// it returns an empty slice — stale-but-available, never an error surfaced
// to a recommendation request.
func (t *Trending) Get(ctx context.Context, limit int) ([]storage.TrendingEntry, error) {
	return t.store.Snapshot(ctx, limit)
}
