// Package engine provides the RecommendationEngine which coordinates the
// embedding pipeline and the periodic trending recomputation for shoprec.
package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/scrypster/shoprec/internal/provider"
	"github.com/scrypster/shoprec/internal/signals"
	"github.com/scrypster/shoprec/internal/storage"
	"github.com/scrypster/shoprec/pkg/types"
)

// Config holds the engine's pipeline settings.
type Config struct {
	// NumWorkers is the number of embedding worker goroutines.
	NumWorkers int

	// QueueSize is the embedding job queue depth. When the queue is full,
	// new jobs are dropped and the product is marked failed for backfill.
	QueueSize int

	// MaxRetries is the per-job retry cap for transient provider errors.
	MaxRetries int

	// BatchSize is how many texts go into one provider batch call.
	BatchSize int

	// BatchConcurrency bounds concurrent batch calls during backfill.
	BatchConcurrency int

	// TrendingInterval is how often the trending snapshot is recomputed.
	// Zero disables the periodic job (the backfill CLI runs without it).
	TrendingInterval time.Duration
}

// applyDefaults fills zero values with working defaults.
func (c *Config) applyDefaults() {
	if c.NumWorkers <= 0 {
		c.NumWorkers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 32
	}
	if c.BatchConcurrency <= 0 {
		c.BatchConcurrency = 2
	}
}

// RecommendationEngine owns the async embedding pipeline and the trending
// scheduler. Catalog change notifications are accepted synchronously and the
// expensive provider calls happen on worker goroutines, so the storefront's
// write path never waits on the embedding provider.
type RecommendationEngine struct {
	embeddings storage.EmbeddingStore
	generator  provider.EmbeddingGenerator
	trending   *signals.Trending
	config     Config

	embedQueue   chan *embedJob
	workerWG     sync.WaitGroup
	schedulerWG  sync.WaitGroup
	workerCtx    context.Context
	workerCancel context.CancelFunc

	mu           sync.RWMutex
	started      bool
	shuttingDown bool
	statuses     map[string]types.EmbeddingStatus

	// onEmbeddingComplete fires after a vector is persisted; the websocket
	// hub uses it to push live status updates.
	onEmbeddingComplete func(productID string)
	onTrendingRefreshed func(entries int)
}

// NewRecommendationEngine creates the engine. trending may be nil when the
// periodic recompute job is not wanted (for example in the backfill CLI).
func NewRecommendationEngine(embeddings storage.EmbeddingStore, generator provider.EmbeddingGenerator, trending *signals.Trending, cfg Config) (*RecommendationEngine, error) {
	if embeddings == nil {
		return nil, fmt.Errorf("embedding store is required")
	}
	if generator == nil {
		return nil, fmt.Errorf("embedding generator is required")
	}
	cfg.applyDefaults()

	return &RecommendationEngine{
		embeddings: embeddings,
		generator:  generator,
		trending:   trending,
		config:     cfg,
		embedQueue: make(chan *embedJob, cfg.QueueSize),
		statuses:   make(map[string]types.EmbeddingStatus),
	}, nil
}

// SetOnEmbeddingComplete sets a callback fired when a product's embedding
// has been generated and persisted.
func (e *RecommendationEngine) SetOnEmbeddingComplete(callback func(productID string)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onEmbeddingComplete = callback
}

// SetOnTrendingRefreshed sets a callback fired after each trending
// recomputation with the number of snapshot entries written.
func (e *RecommendationEngine) SetOnTrendingRefreshed(callback func(entries int)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTrendingRefreshed = callback
}

// Start starts the worker pool and, when configured, the trending scheduler.
// This must be called before NotifyProductChanged.
func (e *RecommendationEngine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return fmt.Errorf("engine already started")
	}

	log.Println("Starting recommendation engine...")

	e.workerCtx, e.workerCancel = context.WithCancel(ctx)

	for i := 0; i < e.config.NumWorkers; i++ {
		e.workerWG.Add(1)
		go e.embedWorker(e.workerCtx, i)
	}

	if e.trending != nil && e.config.TrendingInterval > 0 {
		e.schedulerWG.Add(1)
		go e.trendingLoop(e.workerCtx)
	}

	e.started = true
	log.Printf("Recommendation engine started (workers=%d, queue=%d)",
		e.config.NumWorkers, e.config.QueueSize)
	return nil
}

// NotifyProductChanged queues embedding generation for a created or updated
// product. The write is cheap: it compares the stored text hash and returns
// immediately, with the provider call happening on a worker. Products whose
// embedding-bearing text is unchanged are skipped entirely.
func (e *RecommendationEngine) NotifyProductChanged(ctx context.Context, product *types.Product) error {
	e.mu.RLock()
	if !e.started {
		e.mu.RUnlock()
		return fmt.Errorf("engine not started")
	}
	e.mu.RUnlock()

	if product == nil || product.ID == "" {
		return fmt.Errorf("product with ID is required")
	}

	textHash := product.TextHash()

	existing, err := e.embeddings.Get(ctx, product.ID)
	if err == nil && existing.TextHash == textHash && existing.Model == e.generator.GetModel() {
		// Title, description and category are unchanged; the stored vector
		// is still current.
		return nil
	}
	if err != nil && err != storage.ErrNotFound {
		return fmt.Errorf("failed to check existing embedding for %s: %w", product.ID, err)
	}

	e.setStatus(product.ID, types.EmbeddingPending)

	job := &embedJob{
		ProductID: product.ID,
		Text:      product.EmbeddingText(),
		TextHash:  textHash,
		Timestamp: time.Now(),
	}
	if !e.queueEmbedJob(job) {
		e.setStatus(product.ID, types.EmbeddingFailed)
		return fmt.Errorf("embedding queue full, product %s not queued", product.ID)
	}
	return nil
}

// NotifyProductDeleted removes the product's embedding. Deleting a product
// that was never embedded is not an error.
func (e *RecommendationEngine) NotifyProductDeleted(ctx context.Context, productID string) error {
	if productID == "" {
		return fmt.Errorf("product ID is required")
	}
	e.mu.Lock()
	delete(e.statuses, productID)
	e.mu.Unlock()
	if err := e.embeddings.Delete(ctx, productID); err != nil {
		return fmt.Errorf("failed to delete embedding for %s: %w", productID, err)
	}
	return nil
}

// EmbeddingStatus reports the pipeline status for a product. Products never
// seen by this process report pending if no vector is stored, completed
// otherwise.
func (e *RecommendationEngine) EmbeddingStatus(ctx context.Context, productID string) types.EmbeddingStatus {
	e.mu.RLock()
	status, ok := e.statuses[productID]
	e.mu.RUnlock()
	if ok {
		return status
	}
	if _, err := e.embeddings.Get(ctx, productID); err == nil {
		return types.EmbeddingCompleted
	}
	return types.EmbeddingPending
}

// QueueLength returns the current number of queued embedding jobs.
func (e *RecommendationEngine) QueueLength() int {
	return len(e.embedQueue)
}

// Shutdown closes the job queue and waits for workers to drain, bounded by
// the context deadline. Queued jobs are processed before shutdown completes;
// only retries for jobs that fail during the drain are abandoned. When the
// deadline expires first, remaining jobs are dropped.
func (e *RecommendationEngine) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return fmt.Errorf("engine not started")
	}
	e.shuttingDown = true
	e.mu.Unlock()

	log.Println("Shutting down recommendation engine...")

	close(e.embedQueue)

	// The worker context stays live while the queue drains so in-flight
	// provider calls can finish.
	done := make(chan struct{})
	go func() {
		e.workerWG.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = fmt.Errorf("shutdown timed out with %d jobs queued", len(e.embedQueue))
	}

	// Stop the trending scheduler and release any worker still blocked on a
	// provider call after a timed-out drain.
	e.mu.Lock()
	if e.workerCancel != nil {
		e.workerCancel()
	}
	e.mu.Unlock()
	e.schedulerWG.Wait()

	e.mu.Lock()
	e.started = false
	e.shuttingDown = false
	e.mu.Unlock()

	log.Println("Recommendation engine shut down")
	return err
}

// draining reports whether Shutdown has closed the job queue.
func (e *RecommendationEngine) draining() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.shuttingDown || (e.workerCtx != nil && e.workerCtx.Err() != nil)
}

func (e *RecommendationEngine) setStatus(productID string, status types.EmbeddingStatus) {
	e.mu.Lock()
	e.statuses[productID] = status
	e.mu.Unlock()
}
