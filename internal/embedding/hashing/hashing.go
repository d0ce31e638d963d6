// Package hashing implements an offline embedder that hashes terms into a
// fixed number of buckets. It needs no corpus preparation, so vectors stay
// comparable as documents are added one at a time.
package hashing

import (
	"context"
	"hash/fnv"
	"math"

	"docrag/internal/domain"
	"docrag/internal/embedding"
	"docrag/internal/textutil"
)

// DefaultDimension matches the width of small sentence-transformer models.
const DefaultDimension = 384

// Embedder maps text to a signed, sublinear term-frequency vector.
type Embedder struct {
	dimension int
}

// NewEmbedder creates a hashing embedder. A non-positive dimension selects DefaultDimension.
func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{dimension: dimension}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "hashing" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed returns the L2-normalised vector for text. Text without any terms
// yields the zero vector.
func (e *Embedder) Embed(_ context.Context, text string) ([]float32, error) {
	tf := make(map[string]int)
	for _, term := range textutil.Terms(text) {
		tf[term]++
	}
	vec := make([]float32, e.dimension)
	for term, count := range tf {
		bucket, sign := e.bucket(term)
		vec[bucket] += sign * float32(1+math.Log(float64(count)))
	}
	return embedding.Normalize(vec), nil
}

func (e *Embedder) bucket(term string) (int, float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(term))
	sum := h.Sum64()
	sign := float32(1)
	if sum>>63 == 1 {
		sign = -1
	}
	return int(sum % uint64(e.dimension)), sign
}

var _ domain.Embedder = (*Embedder)(nil)
