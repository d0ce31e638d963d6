package domain

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// ManualEntryTitle is the title given to text pasted in directly rather than uploaded as a file.
const ManualEntryTitle = "Manual Entry"

// Document is an ingested unit of input. It is immutable once created.
type Document struct {
	ID         int64
	Title      string
	SourceText string
	CreatedAt  time.Time
}

// Chunk is a contiguous slice of a document's text and the unit of embedding and retrieval.
type Chunk struct {
	ID            int64
	DocumentID    int64
	DocumentTitle string
	Text          string
	Position      int
	Indexed       bool
	CreatedAt     time.Time
}

// Hit is a single retrieval result: a stored chunk and its similarity to the query.
type Hit struct {
	ChunkID int64
	Text    string
	Score   float64
}

// ChunkKey returns the vector index key for a chunk id.
func ChunkKey(id int64) string {
	return "doc_" + strconv.FormatInt(id, 10)
}

// ParseChunkKey is the inverse of ChunkKey.
func ParseChunkKey(key string) (int64, bool) {
	rest, ok := strings.CutPrefix(key, "doc_")
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Embedder converts free text into a fixed-length numeric vector.
// Identical input must give identical output, and every call within a
// session must return the same dimension.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits raw text into ordered chunk texts.
type Chunker interface {
	Chunk(text string) ([]string, error)
}

// DocumentStore is the durable record of documents and their chunks.
// Chunk ids are assigned sequentially and never reused.
type DocumentStore interface {
	CreateDocument(ctx context.Context, title, sourceText string) (Document, error)
	GetDocument(ctx context.Context, id int64) (Document, error)
	InsertChunk(ctx context.Context, chunk Chunk) (int64, error)
	GetChunk(ctx context.Context, id int64) (Chunk, error)
	MarkIndexed(ctx context.Context, id int64) error
	ListChunks(ctx context.Context) ([]Chunk, error)
	UnindexedChunks(ctx context.Context) ([]Chunk, error)
	Close() error
}

// VectorIndex stores chunk vectors keyed by chunk id and answers nearest-neighbour queries.
type VectorIndex interface {
	Add(ctx context.Context, chunkID int64, text string) error
	Query(ctx context.Context, text string, k int) ([]Hit, error)
	Len(ctx context.Context) (int, error)
	IDs(ctx context.Context) ([]int64, error)
}

// Generator produces an answer from a system instruction and a user prompt.
type Generator interface {
	Name() string
	Generate(ctx context.Context, system, prompt string) (Generation, error)
}

// Generation is the raw output of a Generator call.
type Generation struct {
	Text  string
	Usage Usage
}

// Usage reports token counts returned by the generation backend.
// Cost is only filled in when cost tracking is enabled.
type Usage struct {
	PromptTokens     int64
	CompletionTokens int64
	TotalTokens      int64
	Cost             float64
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}
