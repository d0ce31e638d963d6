// Package vectorstore holds the vector index and its storage backends.
package vectorstore

import (
	"context"
	"fmt"

	"docrag/internal/domain"
	"docrag/internal/embedding"
)

// Index embeds chunk texts and keeps their vectors in a Storage backend.
type Index struct {
	embedder domain.Embedder
	storage  Storage
}

var _ domain.VectorIndex = (*Index)(nil)

// NewIndex prepares storage for the embedder's dimension.
func NewIndex(ctx context.Context, embedder domain.Embedder, storage Storage) (*Index, error) {
	if err := storage.Init(ctx, embedder.Dimension()); err != nil {
		return nil, fmt.Errorf("init vector storage: %w", err)
	}
	return &Index{embedder: embedder, storage: storage}, nil
}

// Embedder returns the embedder used for both insertion and queries.
func (ix *Index) Embedder() domain.Embedder { return ix.embedder }

// Add embeds text and stores it under chunkID. Re-adding an id overwrites its vector.
func (ix *Index) Add(ctx context.Context, chunkID int64, text string) error {
	vec, err := ix.vector(ctx, text)
	if err != nil {
		return fmt.Errorf("embed chunk %d: %w", chunkID, err)
	}
	if err := ix.storage.Upsert(ctx, Entry{ChunkID: chunkID, Text: text, Vector: vec}); err != nil {
		return fmt.Errorf("store chunk %d: %w", chunkID, err)
	}
	return nil
}

// Query returns up to k hits ordered by descending cosine similarity.
func (ix *Index) Query(ctx context.Context, text string, k int) ([]domain.Hit, error) {
	if k < 1 {
		return nil, fmt.Errorf("%w: k must be at least 1, got %d", domain.ErrInvalidInput, k)
	}
	n, err := ix.storage.Len(ctx)
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return []domain.Hit{}, nil
	}
	vec, err := ix.vector(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	hits, err := ix.storage.Search(ctx, vec, k)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (ix *Index) Len(ctx context.Context) (int, error) { return ix.storage.Len(ctx) }

func (ix *Index) IDs(ctx context.Context) ([]int64, error) { return ix.storage.IDs(ctx) }

func (ix *Index) vector(ctx context.Context, text string) ([]float32, error) {
	v, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if want := ix.embedder.Dimension(); want > 0 && len(v) != want {
		return nil, fmt.Errorf("embedder %s returned %d dimensions, want %d", ix.embedder.Name(), len(v), want)
	}
	out := make([]float32, len(v))
	copy(out, v)
	return embedding.Normalize(out), nil
}
