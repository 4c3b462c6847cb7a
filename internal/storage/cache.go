package storage

import (
	"context"
	"errors"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedEmbeddingStore is a cache-first decorator around a durable
// EmbeddingStore. Reads consult an in-memory LRU keyed by product ID before
// the durable store; a miss populates the cache after the durable read.
// Writes and deletes invalidate the entry for that product.
//
// Negative results are not cached: an absent embedding usually means the
// async pipeline has not produced one yet, and caching the absence would
// delay it becoming visible.
type CachedEmbeddingStore struct {
	inner EmbeddingStore
	cache *lru.Cache[string, *ProductEmbedding]
}

// NewCachedEmbeddingStore wraps inner with an LRU of the given capacity.
func NewCachedEmbeddingStore(inner EmbeddingStore, capacity int) (*CachedEmbeddingStore, error) {
	if capacity <= 0 {
		capacity = 4096
	}
	cache, err := lru.New[string, *ProductEmbedding](capacity)
	if err != nil {
		return nil, err
	}
	return &CachedEmbeddingStore{inner: inner, cache: cache}, nil
}

// Put writes through to the durable store and invalidates the cache entry.
func (s *CachedEmbeddingStore) Put(ctx context.Context, productID string, vector []float32, model, textHash string) error {
	if err := s.inner.Put(ctx, productID, vector, model, textHash); err != nil {
		return err
	}
	s.cache.Remove(productID)
	return nil
}

// Get returns the cached embedding when present, otherwise reads the durable
// store and populates the cache.
func (s *CachedEmbeddingStore) Get(ctx context.Context, productID string) (*ProductEmbedding, error) {
	if emb, ok := s.cache.Get(productID); ok {
		return emb, nil
	}

	emb, err := s.inner.Get(ctx, productID)
	if err != nil {
		return nil, err
	}
	s.cache.Add(productID, emb)
	return emb, nil
}

// GetMany serves what it can from the cache and fetches the rest in one
// durable read.
func (s *CachedEmbeddingStore) GetMany(ctx context.Context, productIDs []string) (map[string]*ProductEmbedding, error) {
	result := make(map[string]*ProductEmbedding, len(productIDs))
	var missing []string

	for _, id := range productIDs {
		if emb, ok := s.cache.Get(id); ok {
			result[id] = emb
		} else {
			missing = append(missing, id)
		}
	}

	if len(missing) > 0 {
		fetched, err := s.inner.GetMany(ctx, missing)
		if err != nil {
			return nil, err
		}
		for id, emb := range fetched {
			result[id] = emb
			s.cache.Add(id, emb)
		}
	}

	return result, nil
}

// GetAll always hits the durable store; the full catalog scan backing
// brute-force similarity would evict the whole LRU if routed through it.
func (s *CachedEmbeddingStore) GetAll(ctx context.Context) (map[string]*ProductEmbedding, error) {
	return s.inner.GetAll(ctx)
}

// Delete removes the embedding from the durable store and the cache.
func (s *CachedEmbeddingStore) Delete(ctx context.Context, productID string) error {
	if err := s.inner.Delete(ctx, productID); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	s.cache.Remove(productID)
	return nil
}

// Close closes the underlying durable store.
func (s *CachedEmbeddingStore) Close() error {
	s.cache.Purge()
	return s.inner.Close()
}

// Compile-time assertion.
var _ EmbeddingStore = (*CachedEmbeddingStore)(nil)
