package api

import (
	"time"

	"docrag/internal/domain"
)

type IngestTextRequest struct {
	Title string `json:"title"`
	Text  string `json:"text" binding:"required"`
}

type QueryRequest struct {
	Query string `json:"query" binding:"required"`
	TopK  int    `json:"top_k,omitempty"`
	// RetrieveOnly skips generation and returns the ranked passages.
	RetrieveOnly bool `json:"retrieve_only,omitempty"`
}

type IngestResponse struct {
	Title      string  `json:"title"`
	DocumentID int64   `json:"document_id,omitempty"`
	ChunkIDs   []int64 `json:"chunk_ids"`
	Unindexed  []int64 `json:"unindexed,omitempty"`
	Skipped    bool    `json:"skipped,omitempty"`
	Error      string  `json:"error,omitempty"`
}

type BatchResponse struct {
	BatchID string           `json:"batch_id"`
	Items   []IngestResponse `json:"items"`
	Chunks  int              `json:"chunks"`
	Summary string           `json:"summary,omitempty"`
}

type SourceDocument struct {
	ChunkID int64   `json:"chunk_id"`
	Text    string  `json:"text"`
	Score   float64 `json:"score"`
}

type UsageResponse struct {
	PromptTokens     int64   `json:"prompt_tokens"`
	CompletionTokens int64   `json:"completion_tokens"`
	TotalTokens      int64   `json:"total_tokens"`
	Cost             float64 `json:"cost,omitempty"`
}

type QueryResponse struct {
	Query      string           `json:"query"`
	Answer     string           `json:"answer,omitempty"`
	SourceDocs []SourceDocument `json:"source_docs"`
	Usage      *UsageResponse   `json:"usage,omitempty"`
	Degraded   bool             `json:"degraded,omitempty"`
}

type ChunkResponse struct {
	ID            int64     `json:"id"`
	DocumentID    int64     `json:"document_id"`
	DocumentTitle string    `json:"document_title"`
	Position      int       `json:"position"`
	Text          string    `json:"text"`
	Indexed       bool      `json:"indexed"`
	CreatedAt     time.Time `json:"created_at"`
}

type ConsistencyResponse struct {
	OK           bool    `json:"ok"`
	StoreChunks  int     `json:"store_chunks"`
	IndexEntries int     `json:"index_entries"`
	MissingIndex []int64 `json:"missing_index,omitempty"`
	Orphaned     []int64 `json:"orphaned,omitempty"`
}

func ingestResponse(r domain.IngestReport) IngestResponse {
	out := IngestResponse{
		Title:      r.Title,
		DocumentID: r.DocumentID,
		ChunkIDs:   r.ChunkIDs,
		Unindexed:  r.Unindexed,
		Skipped:    r.Skipped,
	}
	if out.ChunkIDs == nil {
		out.ChunkIDs = []int64{}
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return out
}

func batchResponse(b domain.BatchReport) BatchResponse {
	out := BatchResponse{BatchID: b.BatchID, Items: make([]IngestResponse, 0, len(b.Items)), Chunks: b.Chunks(), Summary: b.Summary}
	for _, r := range b.Items {
		out.Items = append(out.Items, ingestResponse(r))
	}
	return out
}

func sourceDocuments(hits []domain.Hit) []SourceDocument {
	out := make([]SourceDocument, 0, len(hits))
	for _, h := range hits {
		out = append(out, SourceDocument{ChunkID: h.ChunkID, Text: h.Text, Score: h.Score})
	}
	return out
}

func chunkResponse(c domain.Chunk) ChunkResponse {
	return ChunkResponse{
		ID:            c.ID,
		DocumentID:    c.DocumentID,
		DocumentTitle: c.DocumentTitle,
		Position:      c.Position,
		Text:          c.Text,
		Indexed:       c.Indexed,
		CreatedAt:     c.CreatedAt,
	}
}
