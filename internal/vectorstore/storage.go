package vectorstore

import (
	"context"

	"docrag/internal/domain"
)

// Entry is one stored vector and the chunk text it was computed from.
type Entry struct {
	ChunkID int64
	Text    string
	Vector  []float32
}

// Storage persists vectors and supports similarity search.
// Vectors handed to Upsert and Search are L2-normalised, so the dot product is
// the cosine similarity. Upsert on an existing chunk id replaces the vector
// but keeps the entry's original insertion position, which Search uses to
// break score ties (oldest first).
type Storage interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, e Entry) error
	Search(ctx context.Context, vector []float32, topK int) ([]domain.Hit, error)
	Len(ctx context.Context) (int, error)
	IDs(ctx context.Context) ([]int64, error)
	Clear(ctx context.Context) error
}
