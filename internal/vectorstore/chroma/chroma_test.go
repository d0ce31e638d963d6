package chroma

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/vectorstore"
)

func TestHitsFrom_ConvertsDistances(t *testing.T) {
	hits := hitsFrom(
		[]string{"doc_3", "doc_1", "doc_2"},
		[]string{"three", "one", "two"},
		[]float64{0.5, 0, 0.5},
	)
	require.Len(t, hits, 3)
	assert.Equal(t, int64(1), hits[0].ChunkID)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	// equal distances fall back to chunk id order
	assert.Equal(t, int64(2), hits[1].ChunkID)
	assert.Equal(t, "two", hits[1].Text)
	assert.Equal(t, int64(3), hits[2].ChunkID)
	assert.InDelta(t, 0.75, hits[2].Score, 1e-9)
}

func TestHitsFrom_SkipsForeignIDs(t *testing.T) {
	hits := hitsFrom([]string{"note-1", "doc_9"}, []string{"x", "nine"}, nil)
	require.Len(t, hits, 1)
	assert.Equal(t, int64(9), hits[0].ChunkID)
	assert.Equal(t, "nine", hits[0].Text)
}

func TestChunkIDs(t *testing.T) {
	assert.Equal(t, []int64{2, 10}, chunkIDs([]string{"doc_10", "other", "doc_2"}))
	assert.Empty(t, chunkIDs(nil))
}

func TestStorage_RequiresInit(t *testing.T) {
	s := &Storage{name: "documents"}
	ctx := context.Background()

	_, err := s.Len(ctx)
	assert.Error(t, err)
	_, err = s.Search(ctx, []float32{1}, 1)
	assert.Error(t, err)
	assert.Error(t, s.Upsert(ctx, vectorstore.Entry{ChunkID: 1, Vector: []float32{1}}))
}
