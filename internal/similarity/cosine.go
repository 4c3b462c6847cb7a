// Package similarity implements cosine similarity and deterministic top-K
// neighbor ranking over product embeddings. Ranking is brute force: the
// catalog scale this engine serves makes a linear scan cheaper and simpler
// than maintaining an approximate index.
package similarity

import (
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch indicates two vectors of different lengths were
// compared. This is a programming or data error, fatal to that computation,
// and is never silently coerced.
var ErrDimensionMismatch = errors.New("similarity: dimension mismatch")

// Cosine returns the cosine similarity of a and b in [-1, 1].
// It is defined as exactly 0 when either vector has zero magnitude, which
// avoids a division by zero without special-casing at call sites.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: len(a)=%d, len(b)=%d", ErrDimensionMismatch, len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))

	// Floating point can push the ratio a hair past the mathematical bounds.
	if sim > 1 {
		sim = 1
	}
	if sim < -1 {
		sim = -1
	}
	return sim, nil
}
