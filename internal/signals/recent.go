package signals

import (
	"context"
	"fmt"
	"time"

	"github.com/scrypster/shoprec/internal/storage"
)

const defaultRecentCap = 20

// RecentlyViewed tracks a bounded, most-recent-first view log per subject.
// Subjects are opaque: a user ID or an anonymous session ID works the same.
type RecentlyViewed struct {
	store storage.RecentStore
	cap   int
}

// NewRecentlyViewed creates the recorder. cap bounds the per-subject log;
// values <= 0 fall back to the default of 20.
func NewRecentlyViewed(store storage.RecentStore, cap int) *RecentlyViewed {
	if cap <= 0 {
		cap = defaultRecentCap
	}
	return &RecentlyViewed{store: store, cap: cap}
}

// RecordView moves productID to the front of the subject's log, deduplicating
// any earlier occurrence, and truncates to the cap. Re-viewing an already
// listed product reorders without growing the list.
func (r *RecentlyViewed) RecordView(ctx context.Context, subjectID, productID string) error {
	if subjectID == "" || productID == "" {
		return storage.ErrInvalidInput
	}
	if err := r.store.RecordView(ctx, subjectID, productID, time.Now(), r.cap); err != nil {
		return fmt.Errorf("recent: failed to record view for %s: %w", subjectID, err)
	}
	return nil
}

// Recent returns up to limit product IDs for the subject, most recent first.
// A subject with no history gets an empty slice, not an error.
func (r *RecentlyViewed) Recent(ctx context.Context, subjectID string, limit int) ([]string, error) {
	if subjectID == "" {
		return nil, storage.ErrInvalidInput
	}
	if limit <= 0 || limit > r.cap {
		limit = r.cap
	}
	ids, err := r.store.Recent(ctx, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("recent: failed to load history for %s: %w", subjectID, err)
	}
	return ids, nil
}
