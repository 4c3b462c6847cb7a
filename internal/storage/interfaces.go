// Package storage provides composable storage interfaces for the shoprec
// recommendation engine.
//
// The layer is designed as small, focused interfaces that can be implemented
// independently and composed as needed, so the durable backend (SQLite,
// PostgreSQL) and the signal-state backend (SQLite, Redis) can be swapped
// without touching the aggregators or the orchestrator.
package storage

import (
	"context"
	"time"

	"github.com/scrypster/shoprec/pkg/types"
)

// EmbeddingStore persists one current vector per (product, model).
// Absence of an embedding is a valid state, reported as ErrNotFound; callers
// exclude such products from vector-based ranking instead of failing.
type EmbeddingStore interface {
	// Put stores or replaces the embedding for a product (upsert semantics).
	// textHash is the digest of the embedding-bearing product text and lets
	// the catalog hook skip regeneration when the text is unchanged.
	Put(ctx context.Context, productID string, vector []float32, model, textHash string) error

	// Get retrieves the current embedding for a product.
	// Returns ErrNotFound if no vector is stored.
	Get(ctx context.Context, productID string) (*ProductEmbedding, error)

	// GetMany retrieves embeddings for the given products. Missing products
	// are simply absent from the result map, never an error.
	GetMany(ctx context.Context, productIDs []string) (map[string]*ProductEmbedding, error)

	// GetAll retrieves every stored embedding, keyed by product ID.
	// This backs brute-force similarity over the whole catalog.
	GetAll(ctx context.Context) (map[string]*ProductEmbedding, error)

	// Delete removes the embedding for a product. Deleting a product that
	// has no embedding is not an error.
	Delete(ctx context.Context, productID string) error

	// Close releases any resources held by the store.
	Close() error
}

// EventStore is the append-only log of view and purchase events.
type EventStore interface {
	// Append records a single event. Events are never mutated or deleted.
	Append(ctx context.Context, event *types.Event) error

	// CountsSince returns per-product view and purchase counts for events
	// with Timestamp >= since. This backs the trending recomputation job.
	CountsSince(ctx context.Context, since time.Time) (map[string]EventCounts, error)

	// Close releases any resources held by the store.
	Close() error
}

// CoOccurrenceStore tracks how often product pairs appear in the same
// completed order. Counts increment monotonically; order cancellation is out
// of scope so nothing ever decrements.
type CoOccurrenceStore interface {
	// IncrementPairs increments the count of every given pair by one,
	// creating pairs at count 1 when absent. All pairs from one order are
	// applied atomically. Pair keys must already be normalized (A < B).
	IncrementPairs(ctx context.Context, pairs []PairKey) error

	// PairsFor returns every pair containing productID together with its
	// counterpart product and count, in no particular order.
	PairsFor(ctx context.Context, productID string) ([]PairCount, error)

	// Close releases any resources held by the store.
	Close() error
}

// TrendingStore holds the derived trending snapshot. The snapshot is fully
// replaceable: the recompute job writes a complete new ranking and readers
// keep seeing the previous one until the replacement commits.
type TrendingStore interface {
	// ReplaceSnapshot atomically replaces the whole snapshot.
	ReplaceSnapshot(ctx context.Context, entries []TrendingEntry, windowStart time.Time) error

	// Snapshot returns the last committed snapshot ordered by score
	// descending, ties broken by product ID ascending. An empty snapshot is
	// returned before the first recompute, never an error.
	Snapshot(ctx context.Context, limit int) ([]TrendingEntry, error)

	// Close releases any resources held by the store.
	Close() error
}

// RecentStore keeps the per-subject recently-viewed log, most-recent-first,
// deduplicated with move-to-front semantics and capped at a fixed length.
type RecentStore interface {
	// RecordView prepends productID to subject's log, removing any prior
	// occurrence first and truncating to cap. Concurrent writes for the same
	// subject must not lose updates.
	RecordView(ctx context.Context, subjectID, productID string, ts time.Time, cap int) error

	// Recent returns up to limit product IDs, most recent first. Unknown
	// subjects yield an empty slice, never an error.
	Recent(ctx context.Context, subjectID string, limit int) ([]string, error)

	// Close releases any resources held by the store.
	Close() error
}

// CatalogStore is the read-side of the catalog collaborator that owns
// product records. The recommendation engine only needs lookups and
// category/stock scans.
type CatalogStore interface {
	// GetProduct retrieves a product by ID. Returns ErrNotFound if absent.
	GetProduct(ctx context.Context, productID string) (*types.Product, error)

	// GetProducts retrieves several products at once. Missing IDs are
	// absent from the result, never an error.
	GetProducts(ctx context.Context, productIDs []string) (map[string]*types.Product, error)

	// ProductsByCategory returns products in the given category.
	ProductsByCategory(ctx context.Context, category string) ([]*types.Product, error)

	// AllProducts returns the whole catalog; used by the backfill CLI.
	AllProducts(ctx context.Context) ([]*types.Product, error)
}
