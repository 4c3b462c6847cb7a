package engine_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/scrypster/shoprec/internal/engine"
	"github.com/scrypster/shoprec/internal/provider"
	"github.com/scrypster/shoprec/internal/storage/sqlite"
	"github.com/scrypster/shoprec/pkg/types"
)

// fakeGenerator is a thread-safe scripted EmbeddingGenerator.
type fakeGenerator struct {
	mu        sync.Mutex
	calls     int
	failFirst int           // fail this many calls with a transient error
	failText  string        // texts containing this substring fail with invalid input
	delay     time.Duration // per-call latency
}

func (f *fakeGenerator) Embed(ctx context.Context, text string) ([]float32, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", provider.ErrTransient, ctx.Err())
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failText != "" && strings.Contains(text, f.failText) {
		return nil, fmt.Errorf("%w: rejected text", provider.ErrInvalidInput)
	}
	if f.calls <= f.failFirst {
		return nil, fmt.Errorf("%w: flaky", provider.ErrTransient)
	}
	return []float32{float32(len(text)), 1}, nil
}

func (f *fakeGenerator) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := f.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vecs[i] = vec
	}
	return vecs, nil
}

func (f *fakeGenerator) GetModel() string { return "fake-model" }

func (f *fakeGenerator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.NewStore(":memory:")
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newStartedEngine(t *testing.T, store *sqlite.Store, gen *fakeGenerator) *engine.RecommendationEngine {
	t.Helper()
	eng, err := engine.NewRecommendationEngine(store, gen, nil, engine.Config{
		NumWorkers: 1,
		QueueSize:  16,
		MaxRetries: 3,
	})
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("failed to start engine: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = eng.Shutdown(ctx)
	})
	return eng
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func testProduct(id string) *types.Product {
	return &types.Product{
		ID:       id,
		Title:    "Widget " + id,
		Category: "widgets",
		Stock:    1,
	}
}

func TestNotifyProductChangedGeneratesEmbedding(t *testing.T) {
	store := newTestStore(t)
	gen := &fakeGenerator{}
	eng := newStartedEngine(t, store, gen)
	ctx := context.Background()

	product := testProduct("p1")
	if err := eng.NotifyProductChanged(ctx, product); err != nil {
		t.Fatalf("NotifyProductChanged failed: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		return eng.EmbeddingStatus(ctx, "p1") == types.EmbeddingCompleted
	})

	emb, err := store.Get(ctx, "p1")
	if err != nil {
		t.Fatalf("embedding not stored: %v", err)
	}
	if emb.TextHash != product.TextHash() {
		t.Errorf("stored hash = %q, want %q", emb.TextHash, product.TextHash())
	}
	if emb.Model != "fake-model" {
		t.Errorf("stored model = %q", emb.Model)
	}
}

func TestNotifyProductChangedSkipsUnchangedText(t *testing.T) {
	store := newTestStore(t)
	gen := &fakeGenerator{}
	eng := newStartedEngine(t, store, gen)
	ctx := context.Background()

	product := testProduct("p1")
	if err := store.Put(ctx, "p1", []float32{1, 2}, "fake-model", product.TextHash()); err != nil {
		t.Fatalf("seed Put failed: %v", err)
	}

	if err := eng.NotifyProductChanged(ctx, product); err != nil {
		t.Fatalf("NotifyProductChanged failed: %v", err)
	}

	// Give a worker time to run if a job was wrongly queued.
	time.Sleep(50 * time.Millisecond)
	if gen.callCount() != 0 {
		t.Errorf("provider calls = %d, want 0 for unchanged text", gen.callCount())
	}
}

func TestNotifyProductChangedReEmbedsOnTextChange(t *testing.T) {
	store := newTestStore(t)
	gen := &fakeGenerator{}
	eng := newStartedEngine(t, store, gen)
	ctx := context.Background()

	if err := store.Put(ctx, "p1", []float32{1, 2}, "fake-model", "old-hash"); err != nil {
		t.Fatalf("seed Put failed: %v", err)
	}

	product := testProduct("p1")
	if err := eng.NotifyProductChanged(ctx, product); err != nil {
		t.Fatalf("NotifyProductChanged failed: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		emb, err := store.Get(ctx, "p1")
		return err == nil && emb.TextHash == product.TextHash()
	})
}

func TestWorkerRetriesTransientFailures(t *testing.T) {
	store := newTestStore(t)
	gen := &fakeGenerator{failFirst: 2}
	eng := newStartedEngine(t, store, gen)
	ctx := context.Background()

	if err := eng.NotifyProductChanged(ctx, testProduct("p1")); err != nil {
		t.Fatalf("NotifyProductChanged failed: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		return eng.EmbeddingStatus(ctx, "p1") == types.EmbeddingCompleted
	})
	if gen.callCount() != 3 {
		t.Errorf("provider calls = %d, want 3", gen.callCount())
	}
}

func TestWorkerMarksInvalidInputFailed(t *testing.T) {
	store := newTestStore(t)
	gen := &fakeGenerator{failText: "Widget"}
	eng := newStartedEngine(t, store, gen)
	ctx := context.Background()

	if err := eng.NotifyProductChanged(ctx, testProduct("p1")); err != nil {
		t.Fatalf("NotifyProductChanged failed: %v", err)
	}

	waitFor(t, 5*time.Second, func() bool {
		return eng.EmbeddingStatus(ctx, "p1") == types.EmbeddingFailed
	})
	if gen.callCount() != 1 {
		t.Errorf("provider calls = %d, want 1 (no retry on invalid input)", gen.callCount())
	}
}

func TestNotifyProductDeletedRemovesEmbedding(t *testing.T) {
	store := newTestStore(t)
	gen := &fakeGenerator{}
	eng := newStartedEngine(t, store, gen)
	ctx := context.Background()

	if err := store.Put(ctx, "p1", []float32{1}, "fake-model", "h"); err != nil {
		t.Fatalf("seed Put failed: %v", err)
	}
	if err := eng.NotifyProductDeleted(ctx, "p1"); err != nil {
		t.Fatalf("NotifyProductDeleted failed: %v", err)
	}
	if _, err := store.Get(ctx, "p1"); err == nil {
		t.Error("embedding still present after delete")
	}
}

func TestEmbeddingCompleteCallbackFires(t *testing.T) {
	store := newTestStore(t)
	gen := &fakeGenerator{}
	eng := newStartedEngine(t, store, gen)
	ctx := context.Background()

	done := make(chan string, 1)
	eng.SetOnEmbeddingComplete(func(productID string) {
		select {
		case done <- productID:
		default:
		}
	})

	if err := eng.NotifyProductChanged(ctx, testProduct("p1")); err != nil {
		t.Fatalf("NotifyProductChanged failed: %v", err)
	}

	select {
	case id := <-done:
		if id != "p1" {
			t.Errorf("callback product = %s, want p1", id)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("callback never fired")
	}
}

func TestNotifyRequiresStartedEngine(t *testing.T) {
	store := newTestStore(t)
	eng, err := engine.NewRecommendationEngine(store, &fakeGenerator{}, nil, engine.Config{})
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	if err := eng.NotifyProductChanged(context.Background(), testProduct("p1")); err == nil {
		t.Error("NotifyProductChanged succeeded on a stopped engine")
	}
}

func TestShutdownDrainsQueuedJobs(t *testing.T) {
	store := newTestStore(t)
	gen := &fakeGenerator{delay: 20 * time.Millisecond}

	eng, err := engine.NewRecommendationEngine(store, gen, nil, engine.Config{
		NumWorkers: 1,
		QueueSize:  16,
		MaxRetries: 3,
	})
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	if err := eng.Start(context.Background()); err != nil {
		t.Fatalf("failed to start engine: %v", err)
	}

	// One slow worker, several jobs: most are still queued when Shutdown runs.
	ids := []string{"p1", "p2", "p3", "p4", "p5"}
	for _, id := range ids {
		if err := eng.NotifyProductChanged(context.Background(), testProduct(id)); err != nil {
			t.Fatalf("NotifyProductChanged(%s) failed: %v", id, err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := eng.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}

	for _, id := range ids {
		if _, err := store.Get(context.Background(), id); err != nil {
			t.Errorf("embedding for %s missing after drain: %v", id, err)
		}
	}
}

func TestBackfillSkipsCurrentAndEmbedsStale(t *testing.T) {
	store := newTestStore(t)
	gen := &fakeGenerator{}
	ctx := context.Background()

	products := []*types.Product{testProduct("p1"), testProduct("p2"), testProduct("p3")}
	for _, p := range products {
		if err := store.UpsertProduct(ctx, p); err != nil {
			t.Fatalf("UpsertProduct failed: %v", err)
		}
	}
	// p2 already has a current vector.
	if err := store.Put(ctx, "p2", []float32{1}, "fake-model", products[1].TextHash()); err != nil {
		t.Fatalf("seed Put failed: %v", err)
	}

	eng, err := engine.NewRecommendationEngine(store, gen, nil, engine.Config{BatchSize: 2})
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	result, err := eng.Backfill(ctx, store)
	if err != nil {
		t.Fatalf("Backfill failed: %v", err)
	}
	if result.Generated != 2 || result.Skipped != 1 || len(result.Failed) != 0 {
		t.Errorf("result = %+v, want 2 generated, 1 skipped, 0 failed", result)
	}

	for _, id := range []string{"p1", "p3"} {
		if _, err := store.Get(ctx, id); err != nil {
			t.Errorf("embedding for %s not stored: %v", id, err)
		}
	}
}

func TestBackfillReportsPartialFailures(t *testing.T) {
	store := newTestStore(t)
	// BatchSize 1 isolates the failing product to its own provider call.
	gen := &fakeGenerator{failText: "poison"}
	ctx := context.Background()

	good := testProduct("p1")
	bad := &types.Product{ID: "p2", Title: "poison pill", Category: "widgets", Stock: 1}
	for _, p := range []*types.Product{good, bad} {
		if err := store.UpsertProduct(ctx, p); err != nil {
			t.Fatalf("UpsertProduct failed: %v", err)
		}
	}

	eng, err := engine.NewRecommendationEngine(store, gen, nil, engine.Config{BatchSize: 1})
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}

	result, err := eng.Backfill(ctx, store)
	if err != nil {
		t.Fatalf("Backfill failed: %v", err)
	}
	if result.Generated != 1 {
		t.Errorf("generated = %d, want 1", result.Generated)
	}
	if _, ok := result.Failed["p2"]; !ok {
		t.Errorf("failed map = %v, want p2 present", result.Failed)
	}
	if _, err := store.Get(ctx, "p1"); err != nil {
		t.Errorf("good product not embedded: %v", err)
	}
}
