package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/scrypster/shoprec/internal/storage"
	"github.com/scrypster/shoprec/pkg/types"
)

// Ensure *Store implements storage.CatalogStore at compile time.
var _ storage.CatalogStore = (*Store)(nil)

// UpsertProduct mirrors a catalog record into the local products table.
// The catalog collaborator owns product lifecycle; this mirror exists so
// category fallbacks and stock filtering work without a network dependency.
func (s *Store) UpsertProduct(ctx context.Context, p *types.Product) error {
	if p == nil {
		return storage.ErrInvalidInput
	}
	if p.ID == "" {
		return fmt.Errorf("%w: product ID is required", storage.ErrInvalidInput)
	}
	if p.Title == "" {
		return fmt.Errorf("%w: product title is required", storage.ErrInvalidInput)
	}

	now := time.Now().UTC()
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, title, description, category, price_cents, stock, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			description = excluded.description,
			category = excluded.category,
			price_cents = excluded.price_cents,
			stock = excluded.stock,
			updated_at = excluded.updated_at`,
		p.ID, p.Title, p.Description, p.Category, p.PriceCents, p.Stock, createdAt, now)
	if err != nil {
		return fmt.Errorf("sqlite: failed to upsert product: %w", err)
	}
	return nil
}

// DeleteProduct removes a product from the local mirror.
func (s *Store) DeleteProduct(ctx context.Context, productID string) error {
	if productID == "" {
		return fmt.Errorf("%w: product ID is required", storage.ErrInvalidInput)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = ?`, productID); err != nil {
		return fmt.Errorf("sqlite: failed to delete product: %w", err)
	}
	return nil
}

// GetProduct retrieves a product by ID.
func (s *Store) GetProduct(ctx context.Context, productID string) (*types.Product, error) {
	if productID == "" {
		return nil, fmt.Errorf("%w: product ID is required", storage.ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, category, price_cents, stock, created_at, updated_at
		FROM products WHERE id = ?`, productID)

	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: failed to get product: %w", err)
	}
	return p, nil
}

// GetProducts retrieves several products at once; missing IDs are absent
// from the result.
func (s *Store) GetProducts(ctx context.Context, productIDs []string) (map[string]*types.Product, error) {
	result := make(map[string]*types.Product, len(productIDs))
	if len(productIDs) == 0 {
		return result, nil
	}

	placeholders := strings.Repeat("?,", len(productIDs)-1) + "?"
	args := make([]interface{}, len(productIDs))
	for i, id := range productIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, category, price_cents, stock, created_at, updated_at
		FROM products WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan product: %w", err)
		}
		result[p.ID] = p
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: product iteration failed: %w", err)
	}
	return result, nil
}

// ProductsByCategory returns products in the given category, ID ascending
// for deterministic fallback ordering.
func (s *Store) ProductsByCategory(ctx context.Context, category string) ([]*types.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, category, price_cents, stock, created_at, updated_at
		FROM products WHERE category = ? ORDER BY id ASC`, category)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query category: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectProducts(rows)
}

// AllProducts returns the whole local catalog mirror.
func (s *Store) AllProducts(ctx context.Context) ([]*types.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, category, price_cents, stock, created_at, updated_at
		FROM products ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to query products: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectProducts(rows)
}

func scanProduct(row rowScanner) (*types.Product, error) {
	var p types.Product
	if err := row.Scan(&p.ID, &p.Title, &p.Description, &p.Category, &p.PriceCents, &p.Stock, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func collectProducts(rows *sql.Rows) ([]*types.Product, error) {
	var products []*types.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: product iteration failed: %w", err)
	}
	return products, nil
}
