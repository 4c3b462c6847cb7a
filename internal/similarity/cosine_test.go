package similarity

import (
	"math"
	"testing"
)

func TestCosineIdenticalVectors(t *testing.T) {
	v := []float32{1, 2, 3}
	sim, err := Cosine(v, v)
	if err != nil {
		t.Fatalf("Cosine failed: %v", err)
	}
	if math.Abs(sim-1.0) > 1e-9 {
		t.Errorf("Cosine(v, v) = %f, want 1.0", sim)
	}
}

func TestCosineIsSymmetric(t *testing.T) {
	a := []float32{0.3, -1.2, 4.5}
	b := []float32{2.0, 0.1, -0.7}

	ab, err := Cosine(a, b)
	if err != nil {
		t.Fatalf("Cosine(a, b) failed: %v", err)
	}
	ba, err := Cosine(b, a)
	if err != nil {
		t.Fatalf("Cosine(b, a) failed: %v", err)
	}
	if math.Abs(ab-ba) > 1e-9 {
		t.Errorf("Cosine not symmetric: %f vs %f", ab, ba)
	}
}

func TestCosineOppositeVectors(t *testing.T) {
	sim, err := Cosine([]float32{1, 0}, []float32{-1, 0})
	if err != nil {
		t.Fatalf("Cosine failed: %v", err)
	}
	if math.Abs(sim+1.0) > 1e-9 {
		t.Errorf("Cosine(v, -v) = %f, want -1.0", sim)
	}
}

func TestCosineZeroVector(t *testing.T) {
	sim, err := Cosine([]float32{0, 0, 0}, []float32{1, 2, 3})
	if err != nil {
		t.Fatalf("Cosine failed: %v", err)
	}
	if sim != 0 {
		t.Errorf("Cosine(zero, v) = %f, want 0", sim)
	}
}

func TestCosineDimensionMismatch(t *testing.T) {
	if _, err := Cosine([]float32{1, 2}, []float32{1, 2, 3}); err != ErrDimensionMismatch {
		t.Errorf("error = %v, want ErrDimensionMismatch", err)
	}
}

func TestCosineResultStaysInRange(t *testing.T) {
	// Near-parallel vectors can produce values a hair above 1 from float
	// rounding; the result must stay clamped.
	a := []float32{0.1234567, 0.7654321, 0.9999999}
	sim, err := Cosine(a, a)
	if err != nil {
		t.Fatalf("Cosine failed: %v", err)
	}
	if sim > 1.0 || sim < -1.0 {
		t.Errorf("Cosine = %f, outside [-1, 1]", sim)
	}
}
