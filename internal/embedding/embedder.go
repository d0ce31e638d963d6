package embedding

import (
	"fmt"
	"math"

	"docrag/internal/domain"
)

// Embedder converts free text into a numeric vector representation.
type Embedder = domain.Embedder

// Normalize scales v to unit length in place and returns it. Zero vectors are left unchanged.
func Normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	inv := 1 / math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) * inv)
	}
	return v
}

// Float32s converts a float64 vector as returned by JSON APIs.
func Float32s(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

// Dimension tracks the vector size a remote model returns. The first vector
// fixes it; later vectors of a different size are rejected.
type Dimension struct {
	n int
}

// Check records or verifies len(v).
func (d *Dimension) Check(v []float32) error {
	if len(v) == 0 {
		return fmt.Errorf("empty embedding")
	}
	if d.n == 0 {
		d.n = len(v)
		return nil
	}
	if len(v) != d.n {
		return fmt.Errorf("embedding dimension changed from %d to %d", d.n, len(v))
	}
	return nil
}

// Value returns the recorded dimension, or 0 before the first vector.
func (d *Dimension) Value() int { return d.n }
