package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/vectorstore"
)

func newStorage(t *testing.T, dim int) *Storage {
	t.Helper()
	s := NewStorage()
	require.NoError(t, s.Init(context.Background(), dim))
	return s
}

func TestStorage_SearchOrdersByScore(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t, 2)
	require.NoError(t, s.Upsert(ctx, vectorstore.Entry{ChunkID: 1, Text: "x", Vector: []float32{1, 0}}))
	require.NoError(t, s.Upsert(ctx, vectorstore.Entry{ChunkID: 2, Text: "y", Vector: []float32{0, 1}}))
	require.NoError(t, s.Upsert(ctx, vectorstore.Entry{ChunkID: 3, Text: "xy", Vector: []float32{0.6, 0.8}}))

	hits, err := s.Search(ctx, []float32{0, 1}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, int64(2), hits[0].ChunkID)
	assert.Equal(t, int64(3), hits[1].ChunkID)
	assert.InDelta(t, 0.8, hits[1].Score, 1e-6)
}

func TestStorage_TiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t, 2)
	for id := int64(10); id > 0; id-- {
		require.NoError(t, s.Upsert(ctx, vectorstore.Entry{ChunkID: id, Vector: []float32{1, 0}}))
	}
	hits, err := s.Search(ctx, []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{10, 9, 8}, []int64{hits[0].ChunkID, hits[1].ChunkID, hits[2].ChunkID})
}

func TestStorage_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t, 2)
	require.NoError(t, s.Upsert(ctx, vectorstore.Entry{ChunkID: 1, Text: "old", Vector: []float32{1, 0}}))
	require.NoError(t, s.Upsert(ctx, vectorstore.Entry{ChunkID: 2, Text: "two", Vector: []float32{1, 0}}))
	require.NoError(t, s.Upsert(ctx, vectorstore.Entry{ChunkID: 1, Text: "new", Vector: []float32{1, 0}}))

	n, err := s.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	ids, err := s.IDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2}, ids)

	hits, err := s.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, "new", hits[0].Text)
}

func TestStorage_Dimension(t *testing.T) {
	ctx := context.Background()

	s := newStorage(t, 0)
	require.NoError(t, s.Upsert(ctx, vectorstore.Entry{ChunkID: 1, Vector: []float32{1, 0, 0}}))
	assert.Error(t, s.Upsert(ctx, vectorstore.Entry{ChunkID: 2, Vector: []float32{1, 0}}))

	_, err := s.Search(ctx, []float32{1, 0}, 1)
	assert.Error(t, err)

	assert.Error(t, NewStorage().Init(ctx, -1))
}

func TestStorage_Clear(t *testing.T) {
	ctx := context.Background()
	s := newStorage(t, 1)
	require.NoError(t, s.Upsert(ctx, vectorstore.Entry{ChunkID: 1, Vector: []float32{1}}))
	require.NoError(t, s.Clear(ctx))

	n, _ := s.Len(ctx)
	assert.Zero(t, n)
	hits, err := s.Search(ctx, []float32{1}, 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
