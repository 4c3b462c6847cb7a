package types

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Product is the catalog record consumed from the storefront's product store.
// The recommendation engine only reads these; CRUD lives with the catalog
// collaborator.
type Product struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	PriceCents  int64     `json:"price_cents"`
	Stock       int       `json:"stock"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// InStock reports whether the product can currently be sold.
func (p *Product) InStock() bool {
	return p.Stock > 0
}

// EmbeddingText returns the text that drives the product's embedding.
// Only title, description, and category are embedding-bearing; price and
// stock changes never trigger regeneration.
func (p *Product) EmbeddingText() string {
	return p.Title + "\n" + p.Description + "\n" + p.Category
}

// TextHash returns the SHA-256 hex digest of the embedding-bearing text.
// The embedding store keeps this hash alongside each vector so the catalog
// change hook can skip provider calls when the text is unchanged.
func (p *Product) TextHash() string {
	sum := sha256.Sum256([]byte(p.EmbeddingText()))
	return hex.EncodeToString(sum[:])
}
