package postgres

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/lib/pq" // PostgreSQL driver, also provides pq.Array
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/scrypster/shoprec/internal/storage"
)

// EmbeddingStore implements storage.EmbeddingStore using PostgreSQL.
// Vectors are always stored in a BYTEA column; when the pgvector extension
// is present they are additionally stored in an embedding_vec column so
// operators can run server-side similarity queries.
type EmbeddingStore struct {
	db                *sql.DB
	pgvectorAvailable bool
}

// NewEmbeddingStore connects to PostgreSQL with the given DSN, initialises
// the schema, and probes for the pgvector extension.
func NewEmbeddingStore(dsn string) (*EmbeddingStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to connect: %w", err)
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres: failed to create schema: %w", err)
	}

	store := &EmbeddingStore{db: db}
	store.pgvectorAvailable = probePgvector(db)
	if store.pgvectorAvailable {
		if _, err := db.Exec(vectorColumnSQL); err != nil {
			log.Printf("postgres: failed to add embedding_vec column (continuing BYTEA-only): %v", err)
			store.pgvectorAvailable = false
		}
	}

	return store, nil
}

// probePgvector reports whether the pgvector extension is installed.
func probePgvector(db *sql.DB) bool {
	var name string
	err := db.QueryRow(`SELECT extname FROM pg_extension WHERE extname = 'vector'`).Scan(&name)
	return err == nil
}

// Put stores or replaces the embedding for a product (upsert semantics).
func (s *EmbeddingStore) Put(ctx context.Context, productID string, vector []float32, model, textHash string) error {
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

	if s.pgvectorAvailable {
		vec := pgvector.NewVector(vector)
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO embeddings (product_id, embedding, dimension, model, text_hash, embedding_vec, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
			ON CONFLICT(product_id) DO UPDATE SET
				embedding = excluded.embedding,
				dimension = excluded.dimension,
				model = excluded.model,
				text_hash = excluded.text_hash,
				embedding_vec = excluded.embedding_vec,
				updated_at = CURRENT_TIMESTAMP`,
			productID, blob, len(vector), model, textHash, vec)
		if err == nil {
			return nil
		}
		// pgvector write failed; fall through to the BYTEA-only path.
		log.Printf("postgres: failed to store embedding_vec (falling back to BYTEA only): %v", err)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO embeddings (product_id, embedding, dimension, model, text_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(product_id) DO UPDATE SET
			embedding = excluded.embedding,
			dimension = excluded.dimension,
			model = excluded.model,
			text_hash = excluded.text_hash,
			updated_at = CURRENT_TIMESTAMP`,
		productID, blob, len(vector), model, textHash)
	if err != nil {
		return fmt.Errorf("postgres: failed to store embedding: %w", err)
	}
	return nil
}

// Get retrieves the current embedding for a product.
func (s *EmbeddingStore) Get(ctx context.Context, productID string) (*storage.ProductEmbedding, error) {
	if productID == "" {
		return nil, fmt.Errorf("%w: product ID is required", storage.ErrInvalidInput)
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT product_id, embedding, dimension, model, text_hash, updated_at
		FROM embeddings WHERE product_id = $1`, productID)

	emb, err := scanEmbedding(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("postgres: failed to get embedding: %w", err)
	}
	return emb, nil
}

// GetMany retrieves embeddings for the given products in one query.
func (s *EmbeddingStore) GetMany(ctx context.Context, productIDs []string) (map[string]*storage.ProductEmbedding, error) {
	result := make(map[string]*storage.ProductEmbedding, len(productIDs))
	if len(productIDs) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, embedding, dimension, model, text_hash, updated_at
		FROM embeddings WHERE product_id = ANY($1)`, pq.Array(productIDs))
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to get embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		emb, err := scanEmbedding(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan embedding: %w", err)
		}
		result[emb.ProductID] = emb
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: embedding iteration failed: %w", err)
	}
	return result, nil
}

// GetAll retrieves every stored embedding, keyed by product ID.
func (s *EmbeddingStore) GetAll(ctx context.Context) (map[string]*storage.ProductEmbedding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, embedding, dimension, model, text_hash, updated_at
		FROM embeddings`)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to load embeddings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	result := make(map[string]*storage.ProductEmbedding)
	for rows.Next() {
		emb, err := scanEmbedding(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan embedding: %w", err)
		}
		result[emb.ProductID] = emb
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: embedding iteration failed: %w", err)
	}
	return result, nil
}

// Delete removes the embedding for a product; absent rows are not an error.
func (s *EmbeddingStore) Delete(ctx context.Context, productID string) error {
	if productID == "" {
		return fmt.Errorf("%w: product ID is required", storage.ErrInvalidInput)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM embeddings WHERE product_id = $1`, productID); err != nil {
		return fmt.Errorf("postgres: failed to delete embedding: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *EmbeddingStore) Close() error {
	return s.db.Close()
}

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

// serializeVector converts a vector to a little-endian float32 BYTEA value.
func serializeVector(vector []float32) []byte {
	buf := make([]byte, len(vector)*4)
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// deserializeVector converts a BYTEA value back to a float32 slice.
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

// Compile-time assertion.
var _ storage.EmbeddingStore = (*EmbeddingStore)(nil)
