package sqlite

import (
	"context"
	"fmt"

	"github.com/scrypster/shoprec/internal/storage"
)

// Ensure *Store implements storage.CoOccurrenceStore at compile time.
var _ storage.CoOccurrenceStore = (*Store)(nil)

// IncrementPairs increments every pair's count by one inside a single
// transaction, so a crash mid-order never applies half an order's pairs.
func (s *Store) IncrementPairs(ctx context.Context, pairs []storage.PairKey) error {
	if len(pairs) == 0 {
		return nil
	}
	for _, p := range pairs {
		if p.A == "" || p.B == "" || p.A >= p.B {
			return fmt.Errorf("%w: malformed pair (%q, %q)", storage.ErrInvalidInput, p.A, p.B)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO cooccurrence (product_a, product_b, count)
		VALUES (?, ?, 1)
		ON CONFLICT(product_a, product_b) DO UPDATE SET
			count = count + 1`)
	if err != nil {
		return fmt.Errorf("sqlite: failed to prepare pair upsert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, p := range pairs {
		if _, err := stmt.ExecContext(ctx, p.A, p.B); err != nil {
			return fmt.Errorf("sqlite: failed to increment pair (%s, %s): %w", p.A, p.B, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: failed to commit pair increments: %w", err)
	}
	return nil
}

// PairsFor returns every pair containing productID with its counterpart and
// count. Ordering is left to the aggregator, which applies the
// count-descending, ID-ascending tie-break.
func (s *Store) PairsFor(ctx context.Context, productID string) ([]storage.PairCount, error) {
	if productID == "" {
		return nil, fmt.Errorf("%w: product ID is required", storage.ErrInvalidInput)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT CASE WHEN product_a = ? THEN product_b ELSE product_a END, count
		FROM cooccurrence
		WHERE product_a = ? OR product_b = ?`,
		productID, productID, productID)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query pairs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var pairs []storage.PairCount
	for rows.Next() {
		var pc storage.PairCount
		if err := rows.Scan(&pc.ProductID, &pc.Count); err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan pair: %w", err)
		}
		pairs = append(pairs, pc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: pair iteration failed: %w", err)
	}
	return pairs, nil
}
