package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/scrypster/shoprec/internal/storage"
)

// Ensure *Store implements storage.RecentStore at compile time.
var _ storage.RecentStore = (*Store)(nil)

// RecordView applies move-to-front semantics: the (subject, product) primary
// key makes the upsert replace any prior occurrence's timestamp, and the
// trailing delete truncates the log to cap. Both run in one transaction so
// concurrent views for the same subject never leave a half-applied log.
func (s *Store) RecordView(ctx context.Context, subjectID, productID string, ts time.Time, cap int) error {
	if subjectID == "" {
		return fmt.Errorf("%w: subject ID is required", storage.ErrInvalidInput)
	}
	if productID == "" {
		return fmt.Errorf("%w: product ID is required", storage.ErrInvalidInput)
	}
	if ts.IsZero() {
		ts = time.Now()
	}
	if cap <= 0 {
		cap = 20
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO recently_viewed (subject_id, product_id, viewed_at)
		VALUES (?, ?, ?)
		ON CONFLICT(subject_id, product_id) DO UPDATE SET
			viewed_at = excluded.viewed_at`,
		subjectID, productID, ts.UnixNano()); err != nil {
		return fmt.Errorf("sqlite: failed to record view: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM recently_viewed
		WHERE subject_id = ? AND product_id NOT IN (
			SELECT product_id FROM recently_viewed
			WHERE subject_id = ?
			ORDER BY viewed_at DESC
			LIMIT ?
		)`, subjectID, subjectID, cap); err != nil {
		return fmt.Errorf("sqlite: failed to truncate recency log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: failed to commit view: %w", err)
	}
	return nil
}

// Recent returns up to limit product IDs for the subject, most recent first.
// Unknown subjects yield an empty slice.
func (s *Store) Recent(ctx context.Context, subjectID string, limit int) ([]string, error) {
	if subjectID == "" {
		return []string{}, nil
	}
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id FROM recently_viewed
		WHERE subject_id = ?
		ORDER BY viewed_at DESC
		LIMIT ?`, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to read recency log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan recency entry: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: recency iteration failed: %w", err)
	}
	return ids, nil
}
