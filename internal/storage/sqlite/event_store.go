package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/scrypster/shoprec/internal/storage"
	"github.com/scrypster/shoprec/pkg/types"
)

// Ensure *Store implements storage.EventStore at compile time.
var _ storage.EventStore = (*Store)(nil)

// Append records a single behavioral event. The log is append-only.
func (s *Store) Append(ctx context.Context, event *types.Event) error {
	if event == nil {
		return storage.ErrInvalidInput
	}
	if event.ID == "" {
		return fmt.Errorf("%w: event ID is required", storage.ErrInvalidInput)
	}
	if event.ProductID == "" {
		return fmt.Errorf("%w: product ID is required", storage.ErrInvalidInput)
	}
	if event.Type != types.EventView && event.Type != types.EventPurchase {
		return fmt.Errorf("%w: unknown event type %q", storage.ErrInvalidInput, event.Type)
	}

	ts := event.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, event_type, subject_id, product_id, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		event.ID, string(event.Type), event.SubjectID, event.ProductID, ts)
	if err != nil {
		return fmt.Errorf("sqlite: failed to append event: %w", err)
	}
	return nil
}

// CountsSince returns per-product view and purchase counts for events in the
// window [since, now]. This is the scan that backs trending recomputation.
func (s *Store) CountsSince(ctx context.Context, since time.Time) (map[string]storage.EventCounts, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id,
			SUM(CASE WHEN event_type = 'view' THEN 1 ELSE 0 END),
			SUM(CASE WHEN event_type = 'purchase' THEN 1 ELSE 0 END)
		FROM events
		WHERE timestamp >= ?
		GROUP BY product_id`, since)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to count events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[string]storage.EventCounts)
	for rows.Next() {
		var (
			productID string
			c         storage.EventCounts
		)
		if err := rows.Scan(&productID, &c.Views, &c.Purchases); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan event counts: %w", err)
		}
		counts[productID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: event count iteration failed: %w", err)
	}
	return counts, nil
}
