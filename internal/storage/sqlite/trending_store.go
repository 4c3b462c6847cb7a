package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/scrypster/shoprec/internal/storage"
)

// Ensure *Store implements storage.TrendingStore at compile time.
var _ storage.TrendingStore = (*Store)(nil)

// ReplaceSnapshot replaces the whole trending snapshot in one transaction.
// Readers keep seeing the previous snapshot until the commit, so a crash
// mid-recompute leaves the prior ranking intact.
func (s *Store) ReplaceSnapshot(ctx context.Context, entries []storage.TrendingEntry, windowStart time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM trending`); err != nil {
		return fmt.Errorf("sqlite: failed to clear trending snapshot: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trending (product_id, score, window_start) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("sqlite: failed to prepare trending insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.ProductID, e.Score, windowStart); err != nil {
			return fmt.Errorf("sqlite: failed to insert trending entry %s: %w", e.ProductID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: failed to commit trending snapshot: %w", err)
	}
	return nil
}

// Snapshot returns the last committed snapshot, score descending with
// product-ID-ascending tie-break. limit <= 0 returns the full snapshot.
func (s *Store) Snapshot(ctx context.Context, limit int) ([]storage.TrendingEntry, error) {
	query := `
		SELECT product_id, score, window_start
		FROM trending
		ORDER BY score DESC, product_id ASC`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to read trending snapshot: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []storage.TrendingEntry
	for rows.Next() {
		var e storage.TrendingEntry
		if err := rows.Scan(&e.ProductID, &e.Score, &e.WindowStart); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan trending entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: trending iteration failed: %w", err)
	}
	return entries, nil
}
