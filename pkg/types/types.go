// Package types defines the core data structures shared between the
// recommendation engine and its storefront collaborators: product records,
// behavioral events, and ranked recommendation results.
package types

// EmbeddingStatus represents the state of embedding generation for a product.
type EmbeddingStatus string

const (
	// EmbeddingPending indicates the product text has changed and the vector
	// has not been regenerated yet.
	EmbeddingPending EmbeddingStatus = "pending"

	// EmbeddingCompleted indicates a current vector is stored for the product.
	EmbeddingCompleted EmbeddingStatus = "completed"

	// EmbeddingFailed indicates generation failed after retries; the product
	// is excluded from vector-based ranking until the next catalog change or
	// backfill run.
	EmbeddingFailed EmbeddingStatus = "failed"
)

// EventType distinguishes the behavioral events feeding the aggregators.
type EventType string

const (
	// EventView is a product detail page view.
	EventView EventType = "view"

	// EventPurchase is a completed purchase of a product.
	EventPurchase EventType = "purchase"
)
