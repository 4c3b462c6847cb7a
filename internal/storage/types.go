package storage

import (
	"errors"
	"time"
)

var (
	// ErrNotFound indicates that the requested resource was not found.
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput indicates that the input parameters are invalid.
	ErrInvalidInput = errors.New("invalid input")
)

// ProductEmbedding is one stored vector, keyed by product and model.
// At most one current embedding exists per (ProductID, Model); vector length
// is constant within a model.
type ProductEmbedding struct {
	ProductID   string
	Vector      []float32
	Model       string
	TextHash    string // SHA-256 of the embedding-bearing product text
	GeneratedAt time.Time
}

// EventCounts aggregates a product's raw event counts within a window.
type EventCounts struct {
	Views     int
	Purchases int
}

// PairKey identifies an unordered product pair. A must sort strictly before
// B so each pair has exactly one representation.
type PairKey struct {
	A string
	B string
}

// NewPairKey normalizes two distinct product IDs into a PairKey.
// The bool result is false when the IDs are equal (no self-pairs).
func NewPairKey(x, y string) (PairKey, bool) {
	if x == y {
		return PairKey{}, false
	}
	if x < y {
		return PairKey{A: x, B: y}, true
	}
	return PairKey{A: y, B: x}, true
}

// PairCount is a co-occurrence lookup result: the counterpart product of a
// query product and how many orders contained both.
type PairCount struct {
	ProductID string
	Count     int
}

// TrendingEntry is one row of the trending snapshot.
type TrendingEntry struct {
	ProductID   string
	Score       float64
	WindowStart time.Time
}
