package engine

import (
	"log"
	"time"
)

// embedJob is one unit of embedding work. Text and TextHash are captured at
// queue time so the vector matches the product state that triggered it even
// if the catalog changes again before the worker runs.
type embedJob struct {
	ProductID string
	Text      string
	TextHash  string
	Timestamp time.Time
	Attempt   int
}

// queueEmbedJob attempts to queue an embedding job.
// Returns true if the job was queued, false if the queue is full or closed.
func (e *RecommendationEngine) queueEmbedJob(job *embedJob) bool {
	if e.draining() {
		return false
	}

	select {
	case e.embedQueue <- job:
		return true
	default:
		log.Printf("WARNING: Embedding queue full (size=%d), dropping job for product %s",
			e.config.QueueSize, job.ProductID)
		return false
	}
}

// requeueEmbedJob attempts to requeue a job that failed transiently.
// Returns false if max retries are exceeded, the queue is full, or shutdown
// is in progress.
func (e *RecommendationEngine) requeueEmbedJob(job *embedJob) bool {
	if e.draining() {
		log.Printf("WARNING: Not requeueing job for product %s, shutdown in progress", job.ProductID)
		return false
	}

	if job.Attempt >= e.config.MaxRetries {
		log.Printf("Max retries (%d) exceeded for product %s, giving up",
			e.config.MaxRetries, job.ProductID)
		return false
	}

	job.Attempt++

	select {
	case e.embedQueue <- job:
		log.Printf("Requeued embedding job for product %s (attempt %d/%d)",
			job.ProductID, job.Attempt, e.config.MaxRetries)
		return true
	case <-time.After(10 * time.Millisecond):
		log.Printf("WARNING: Failed to requeue job for product %s, queue timeout", job.ProductID)
		return false
	}
}
