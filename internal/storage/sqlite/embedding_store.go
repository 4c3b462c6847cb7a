package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/scrypster/shoprec/internal/storage"
)

// Ensure *Store implements storage.EmbeddingStore at compile time.
var _ storage.EmbeddingStore = (*Store)(nil)

// Put stores or replaces the embedding for a product (upsert semantics).
func (s *Store) Put(ctx context.Context, productID string, vector []float32, model, textHash string) error {
	if productID == "" {
		return fmt.Errorf("%w: product ID is required", storage.ErrInvalidInput)
	}
	if len(vector) == 0 {
		return fmt.Errorf("%w: embedding vector cannot be empty", storage.ErrInvalidInput)
	}
	if model == "" {
		return fmt.Errorf("%w: model is required", storage.ErrInvalidInput)
	}

	blob := serializeVector(vector)

	query := `
		INSERT INTO embeddings (product_id, embedding, dimension, model, text_hash, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(product_id) DO UPDATE SET
			embedding = excluded.embedding,
			dimension = excluded.dimension,
			model = excluded.model,
			text_hash = excluded.text_hash,
			updated_at = CURRENT_TIMESTAMP
	`

	if _, err := s.db.ExecContext(ctx, query, productID, blob, len(vector), model, textHash); err != nil {
		return fmt.Errorf("sqlite: failed to store embedding: %w", err)
	}
	return nil
}

// Get retrieves the current embedding for a product.
func (s *Store) Get(ctx context.Context, productID string) (*storage.ProductEmbedding, error) {
	if productID == "" {
		return nil, fmt.Errorf("%w: product ID is required", storage.ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT product_id, embedding, dimension, model, text_hash, updated_at
		FROM embeddings WHERE product_id = ?`, productID)

	emb, err := scanEmbedding(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: failed to get embedding: %w", err)
	}
	return emb, nil
}

// GetMany retrieves embeddings for the given products in one query.
// Missing products are simply absent from the result map.
func (s *Store) GetMany(ctx context.Context, productIDs []string) (map[string]*storage.ProductEmbedding, error) {
	result := make(map[string]*storage.ProductEmbedding, len(productIDs))
	if len(productIDs) == 0 {
		return result, nil
	}

	placeholders := strings.Repeat("?,", len(productIDs)-1) + "?"
	args := make([]interface{}, len(productIDs))
	for i, id := range productIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, embedding, dimension, model, text_hash, updated_at
		FROM embeddings WHERE product_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to get embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectEmbeddings(rows, result)
}

// GetAll retrieves every stored embedding, keyed by product ID.
func (s *Store) GetAll(ctx context.Context) (map[string]*storage.ProductEmbedding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, embedding, dimension, model, text_hash, updated_at
		FROM embeddings`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to load embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	return collectEmbeddings(rows, make(map[string]*storage.ProductEmbedding))
}

// Delete removes the embedding for a product; absent rows are not an error.
func (s *Store) Delete(ctx context.Context, productID string) error {
	if productID == "" {
		return fmt.Errorf("%w: product ID is required", storage.ErrInvalidInput)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM embeddings WHERE product_id = ?`, productID); err != nil {
		return fmt.Errorf("sqlite: failed to delete embedding: %w", err)
	}
	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for scanEmbedding.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEmbedding(row rowScanner) (*storage.ProductEmbedding, error) {
	var (
		emb       storage.ProductEmbedding
		blob      []byte
		dimension int
		updatedAt time.Time
	)
	if err := row.Scan(&emb.ProductID, &blob, &dimension, &emb.Model, &emb.TextHash, &updatedAt); err != nil {
		return nil, err
	}

	vector, err := deserializeVector(blob, dimension)
	if err != nil {
		return nil, err
	}
	emb.Vector = vector
	emb.GeneratedAt = updatedAt
	return &emb, nil
}

func collectEmbeddings(rows *sql.Rows, result map[string]*storage.ProductEmbedding) (map[string]*storage.ProductEmbedding, error) {
	for rows.Next() {
		emb, err := scanEmbedding(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: failed to scan embedding: %w", err)
		}
		result[emb.ProductID] = emb
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: embedding iteration failed: %w", err)
	}
	return result, nil
}

// serializeVector converts a vector to a little-endian float32 BLOB.
func serializeVector(vector []float32) []byte {
	buf := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// deserializeVector converts a BLOB back to a float32 slice, validating the
// buffer size against the stored dimension.
func deserializeVector(buf []byte, dimension int) ([]float32, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("invalid dimension: %d", dimension)
	}
	if len(buf) != dimension*4 {
		return nil, fmt.Errorf("buffer size mismatch: expected %d bytes, got %d", dimension*4, len(buf))
	}

	vector := make([]float32, dimension)
	for i := 0; i < dimension; i++ {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vector, nil
}
