package sqlite

// Schema is the complete SQLite schema for the recommendation engine.
// It is idempotent (CREATE TABLE IF NOT EXISTS) and executed on every open.
//
// Tables:
//   - products: local mirror of the catalog collaborator's records, enough
//     for category fallbacks and stock filtering.
//   - embeddings: one current vector per product, serialized as a
//     little-endian float32 BLOB, keyed with model and text hash.
//   - events: the append-only view/purchase log that all aggregator state
//     is reconstructible from.
//   - cooccurrence: monotonically incremented pair counts, product_a <
//     product_b enforced by a CHECK constraint.
//   - trending: the replaceable trending snapshot.
//   - recently_viewed: per-subject recency log with position ordering.
const Schema = `
CREATE TABLE IF NOT EXISTS products (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	price_cents INTEGER NOT NULL DEFAULT 0,
	stock INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);

CREATE TABLE IF NOT EXISTS embeddings (
	product_id TEXT PRIMARY KEY,
	embedding BLOB NOT NULL,
	dimension INTEGER NOT NULL,
	model TEXT NOT NULL,
	text_hash TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS events (
	id TEXT PRIMARY KEY,
	event_type TEXT NOT NULL CHECK (event_type IN ('view', 'purchase')),
	subject_id TEXT NOT NULL,
	product_id TEXT NOT NULL,
	timestamp TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_events_timestamp ON events(timestamp);
CREATE INDEX IF NOT EXISTS idx_events_product ON events(product_id);

CREATE TABLE IF NOT EXISTS cooccurrence (
	product_a TEXT NOT NULL,
	product_b TEXT NOT NULL,
	count INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (product_a, product_b),
	CHECK (product_a < product_b)
);

CREATE INDEX IF NOT EXISTS idx_cooccurrence_b ON cooccurrence(product_b);

CREATE TABLE IF NOT EXISTS trending (
	product_id TEXT PRIMARY KEY,
	score REAL NOT NULL,
	window_start TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS recently_viewed (
	subject_id TEXT NOT NULL,
	product_id TEXT NOT NULL,
	viewed_at INTEGER NOT NULL, -- unix nanoseconds; integer keeps ordering exact
	PRIMARY KEY (subject_id, product_id)
);

CREATE INDEX IF NOT EXISTS idx_recently_viewed_subject ON recently_viewed(subject_id, viewed_at DESC);
`
