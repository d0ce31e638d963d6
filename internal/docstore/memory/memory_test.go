package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/domain"
)

func TestStore_DocumentsAndChunks(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	doc, err := s.CreateDocument(ctx, "notes.pdf", "full text")
	require.NoError(t, err)
	assert.Equal(t, int64(1), doc.ID)
	assert.False(t, doc.CreatedAt.IsZero())

	got, err := s.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, "full text", got.SourceText)

	id1, err := s.InsertChunk(ctx, domain.Chunk{DocumentID: doc.ID, Text: "full", Position: 0})
	require.NoError(t, err)
	id2, err := s.InsertChunk(ctx, domain.Chunk{DocumentID: doc.ID, Text: "text", Position: 1})
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, []int64{id1, id2})

	c, err := s.GetChunk(ctx, id2)
	require.NoError(t, err)
	assert.Equal(t, "notes.pdf", c.DocumentTitle)
	assert.Equal(t, 1, c.Position)
	assert.False(t, c.Indexed)
}

func TestStore_NotFound(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	_, err := s.GetDocument(ctx, 1)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	_, err = s.GetChunk(ctx, 1)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.True(t, errors.Is(s.MarkIndexed(ctx, 1), domain.ErrNotFound))

	_, err = s.InsertChunk(ctx, domain.Chunk{DocumentID: 99, Text: "orphan"})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestStore_IndexedFlag(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	doc, _ := s.CreateDocument(ctx, "t", "abc")
	a, _ := s.InsertChunk(ctx, domain.Chunk{DocumentID: doc.ID, Text: "a"})
	b, _ := s.InsertChunk(ctx, domain.Chunk{DocumentID: doc.ID, Text: "b"})

	require.NoError(t, s.MarkIndexed(ctx, a))

	unindexed, err := s.UnindexedChunks(ctx)
	require.NoError(t, err)
	require.Len(t, unindexed, 1)
	assert.Equal(t, b, unindexed[0].ID)

	all, err := s.ListChunks(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.True(t, all[0].Indexed)
}

func TestStore_IDsAreUniqueUnderConcurrency(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	doc, _ := s.CreateDocument(ctx, "t", "x")

	var wg sync.WaitGroup
	ids := make([]int64, 50)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := s.InsertChunk(ctx, domain.Chunk{DocumentID: doc.ID, Text: "x"})
			assert.NoError(t, err)
			ids[i] = id
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		seen[id] = true
	}
}
