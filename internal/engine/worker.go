package engine

import (
	"context"
	"log"
	"time"

	"github.com/scrypster/shoprec/internal/provider"
	"github.com/scrypster/shoprec/pkg/types"
)

// embedWorker is a worker goroutine that processes embedding jobs.
// It runs until the job queue is closed.
func (e *RecommendationEngine) embedWorker(ctx context.Context, workerID int) {
	defer e.workerWG.Done()

	log.Printf("Embedding worker %d started", workerID)

	for job := range e.embedQueue {
		e.processEmbedJob(ctx, workerID, job)
	}

	log.Printf("Embedding worker %d stopped", workerID)
}

// processEmbedJob generates and persists the vector for a single job.
// Transient provider errors requeue the job up to the retry cap; invalid
// input and credential errors do not, since retrying cannot help.
func (e *RecommendationEngine) processEmbedJob(ctx context.Context, workerID int, job *embedJob) {
	// Backoff before retries to let transient provider trouble clear.
	if job.Attempt > 0 {
		backoff := time.Duration(job.Attempt*job.Attempt) * 100 * time.Millisecond
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
		}
	}

	vector, err := e.generator.Embed(ctx, job.Text)
	if err != nil {
		if provider.IsInvalidInput(err) || provider.IsConfigError(err) {
			log.Printf("ERROR: Worker %d embedding failed permanently for product %s: %v",
				workerID, job.ProductID, err)
			e.setStatus(job.ProductID, types.EmbeddingFailed)
			return
		}
		log.Printf("Worker %d embedding failed for product %s (attempt %d): %v",
			workerID, job.ProductID, job.Attempt, err)
		if !e.requeueEmbedJob(job) {
			e.setStatus(job.ProductID, types.EmbeddingFailed)
		}
		return
	}

	// Persist with a background context so shutdown cannot cancel the write
	// after the provider call already succeeded.
	dbCtx := context.Background()
	if err := e.embeddings.Put(dbCtx, job.ProductID, vector, e.generator.GetModel(), job.TextHash); err != nil {
		log.Printf("ERROR: Worker %d failed to store embedding for product %s: %v",
			workerID, job.ProductID, err)
		if !e.requeueEmbedJob(job) {
			e.setStatus(job.ProductID, types.EmbeddingFailed)
		}
		return
	}

	e.setStatus(job.ProductID, types.EmbeddingCompleted)

	e.mu.RLock()
	callback := e.onEmbeddingComplete
	e.mu.RUnlock()
	if callback != nil {
		callback(job.ProductID)
	}
}
