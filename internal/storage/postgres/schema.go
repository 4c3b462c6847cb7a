// Package postgres provides the PostgreSQL implementation of the embedding
// store, with optional pgvector support for the cosine-distance column.
package postgres

// Schema contains the SQL statements to create the embeddings table.
// The BYTEA column is always written; the pgvector column is added separately
// via vectorColumnSQL when the extension is available.
const Schema = `
CREATE TABLE IF NOT EXISTS embeddings (
    product_id TEXT PRIMARY KEY,
    embedding BYTEA NOT NULL,
    dimension INTEGER NOT NULL,
    model TEXT NOT NULL,
    text_hash TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// vectorColumnSQL adds the pgvector column used for server-side cosine
// ordering. Executed only when the pgvector extension is installed.
const vectorColumnSQL = `
ALTER TABLE embeddings ADD COLUMN IF NOT EXISTS embedding_vec vector;
`
