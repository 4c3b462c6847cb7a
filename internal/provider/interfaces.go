// Package provider contains clients for external embedding providers.
// It normalizes provider failure modes into a small error taxonomy, protects
// calls with a circuit breaker and a client-side rate limiter, and retries
// transient failures with bounded exponential backoff.
package provider

import "context"

// EmbeddingGenerator is the interface for generating vector embeddings.
// Implementations return float32 slices with a fixed dimension per model.
type EmbeddingGenerator interface {
	// Embed generates an embedding for a single non-empty text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for several texts in one provider
	// round-trip where the API supports it. The result has the same length
	// and order as texts regardless of the provider's internal processing
	// order. Prefer this over N Embed calls whenever len(texts) > 1.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// GetModel returns the model identifier vectors are keyed on.
	GetModel() string
}
