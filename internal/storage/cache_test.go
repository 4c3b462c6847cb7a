package storage

import (
	"context"
	"testing"
)

// stubEmbeddingStore is an in-memory EmbeddingStore that counts durable
// reads so tests can observe cache behavior.
type stubEmbeddingStore struct {
	data     map[string]*ProductEmbedding
	getCalls int
}

func newStubEmbeddingStore() *stubEmbeddingStore {
	return &stubEmbeddingStore{data: make(map[string]*ProductEmbedding)}
}

func (s *stubEmbeddingStore) Put(_ context.Context, productID string, vector []float32, model, textHash string) error {
	s.data[productID] = &ProductEmbedding{
		ProductID: productID, Vector: vector, Model: model, TextHash: textHash,
	}
	return nil
}

func (s *stubEmbeddingStore) Get(_ context.Context, productID string) (*ProductEmbedding, error) {
	s.getCalls++
	emb, ok := s.data[productID]
	if !ok {
		return nil, ErrNotFound
	}
	return emb, nil
}

func (s *stubEmbeddingStore) GetMany(_ context.Context, productIDs []string) (map[string]*ProductEmbedding, error) {
	s.getCalls++
	result := make(map[string]*ProductEmbedding)
	for _, id := range productIDs {
		if emb, ok := s.data[id]; ok {
			result[id] = emb
		}
	}
	return result, nil
}

func (s *stubEmbeddingStore) GetAll(_ context.Context) (map[string]*ProductEmbedding, error) {
	result := make(map[string]*ProductEmbedding, len(s.data))
	for id, emb := range s.data {
		result[id] = emb
	}
	return result, nil
}

func (s *stubEmbeddingStore) Delete(_ context.Context, productID string) error {
	delete(s.data, productID)
	return nil
}

func (s *stubEmbeddingStore) Close() error { return nil }

func TestCachedGetReadsDurableOnce(t *testing.T) {
	inner := newStubEmbeddingStore()
	cached, err := NewCachedEmbeddingStore(inner, 8)
	if err != nil {
		t.Fatalf("NewCachedEmbeddingStore failed: %v", err)
	}
	ctx := context.Background()

	if err := cached.Put(ctx, "p1", []float32{1, 2}, "m", "h"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := cached.Get(ctx, "p1"); err != nil {
			t.Fatalf("Get %d failed: %v", i, err)
		}
	}
	if inner.getCalls != 1 {
		t.Errorf("durable reads = %d, want 1", inner.getCalls)
	}
}

func TestCachedPutInvalidatesEntry(t *testing.T) {
	inner := newStubEmbeddingStore()
	cached, err := NewCachedEmbeddingStore(inner, 8)
	if err != nil {
		t.Fatalf("NewCachedEmbeddingStore failed: %v", err)
	}
	ctx := context.Background()

	if err := cached.Put(ctx, "p1", []float32{1}, "m", "h1"); err != nil {
		t.Fatalf("first Put failed: %v", err)
	}
	if _, err := cached.Get(ctx, "p1"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	// Replacing the vector must evict the stale cached entry.
	if err := cached.Put(ctx, "p1", []float32{2}, "m", "h2"); err != nil {
		t.Fatalf("second Put failed: %v", err)
	}
	emb, err := cached.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("Get after Put failed: %v", err)
	}
	if emb.TextHash != "h2" {
		t.Errorf("cached hash = %q, want h2", emb.TextHash)
	}
}

func TestCachedDeleteInvalidatesEntry(t *testing.T) {
	inner := newStubEmbeddingStore()
	cached, err := NewCachedEmbeddingStore(inner, 8)
	if err != nil {
		t.Fatalf("NewCachedEmbeddingStore failed: %v", err)
	}
	ctx := context.Background()

	if err := cached.Put(ctx, "p1", []float32{1}, "m", "h"); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := cached.Get(ctx, "p1"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if err := cached.Delete(ctx, "p1"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := cached.Get(ctx, "p1"); err != ErrNotFound {
		t.Errorf("Get after Delete error = %v, want ErrNotFound", err)
	}
}

func TestCachedGetManyMixesCacheAndDurable(t *testing.T) {
	inner := newStubEmbeddingStore()
	cached, err := NewCachedEmbeddingStore(inner, 8)
	if err != nil {
		t.Fatalf("NewCachedEmbeddingStore failed: %v", err)
	}
	ctx := context.Background()

	for _, id := range []string{"p1", "p2"} {
		if err := cached.Put(ctx, id, []float32{1}, "m", "h"); err != nil {
			t.Fatalf("Put(%s) failed: %v", id, err)
		}
	}

	// Warm p1 only.
	if _, err := cached.Get(ctx, "p1"); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	inner.getCalls = 0

	result, err := cached.GetMany(ctx, []string{"p1", "p2", "absent"})
	if err != nil {
		t.Fatalf("GetMany failed: %v", err)
	}
	if len(result) != 2 {
		t.Errorf("GetMany returned %d entries, want 2", len(result))
	}
	if inner.getCalls != 1 {
		t.Errorf("durable reads = %d, want 1 (p1 served from cache)", inner.getCalls)
	}
}

func TestNegativeResultsAreNotCached(t *testing.T) {
	inner := newStubEmbeddingStore()
	cached, err := NewCachedEmbeddingStore(inner, 8)
	if err != nil {
		t.Fatalf("NewCachedEmbeddingStore failed: %v", err)
	}
	ctx := context.Background()

	if _, err := cached.Get(ctx, "p1"); err != ErrNotFound {
		t.Fatalf("Get error = %v, want ErrNotFound", err)
	}

	// Once the pipeline produces the vector it must be visible immediately.
	if err := inner.Put(ctx, "p1", []float32{1}, "m", "h"); err != nil {
		t.Fatalf("inner Put failed: %v", err)
	}
	if _, err := cached.Get(ctx, "p1"); err != nil {
		t.Errorf("Get after pipeline write failed: %v", err)
	}
}
