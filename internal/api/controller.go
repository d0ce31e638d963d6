// Package api exposes the RAG service over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"docrag/internal/domain"
	"docrag/internal/extract"
	"docrag/internal/logger"
)

// Service is the part of the orchestrator the HTTP layer drives.
type Service interface {
	TopK() int
	Ingest(ctx context.Context, title, text string) domain.IngestReport
	IngestBatch(ctx context.Context, sources []domain.Source) domain.BatchReport
	Retrieve(ctx context.Context, query string, k int) (domain.Retrieval, error)
	Ask(ctx context.Context, query string) (domain.Answer, error)
	Chunks(ctx context.Context) ([]domain.Chunk, error)
	Chunk(ctx context.Context, id int64) (domain.Chunk, error)
	Consistency(ctx context.Context) (domain.ConsistencyReport, error)
}

// MaxUploadBytes bounds the multipart form kept in memory.
const MaxUploadBytes = 32 << 20

// RAGController handles the HTTP requests for the RAG API.
type RAGController struct {
	service Service
}

func NewRAGController(service Service) *RAGController {
	return &RAGController{service: service}
}

// IngestText handles POST /api/v1/documents.
func (c *RAGController) IngestText(ctx *gin.Context) {
	var req IngestTextRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}
	title := req.Title
	if title == "" {
		title = domain.ManualEntryTitle
	}

	// manual entries are stored trimmed; uploaded files keep their text as is
	report := c.service.Ingest(ctx.Request.Context(), title, strings.TrimSpace(req.Text))
	if report.Err != nil {
		logger.Error("request %s: ingest %q: %v", requestID(ctx), title, report.Err)
		ctx.JSON(statusFor(report.Err), ingestResponse(report))
		return
	}
	status := http.StatusCreated
	if report.Skipped {
		status = http.StatusOK
	}
	ctx.JSON(status, ingestResponse(report))
}

// Upload handles POST /api/v1/documents/upload. Every "files" part becomes
// one item of a batch; unsupported or unreadable files fail individually.
func (c *RAGController) Upload(ctx *gin.Context) {
	form, err := ctx.MultipartForm()
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form: " + err.Error()})
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "no files uploaded"})
		return
	}

	sources := make([]domain.Source, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			sources = append(sources, domain.Source{Title: fh.Filename, Err: fmt.Errorf("%w: %w", domain.ErrExtraction, err)})
			continue
		}
		src, err := extract.Reader(fh.Filename, f)
		f.Close()
		if err != nil {
			src = domain.Source{Title: fh.Filename, Err: err}
		}
		sources = append(sources, src)
	}

	batch := c.service.IngestBatch(ctx.Request.Context(), sources)
	logger.Info("request %s: batch %s ingested %d chunks from %d files", requestID(ctx), batch.BatchID, batch.Chunks(), len(files))
	ctx.JSON(http.StatusOK, batchResponse(batch))
}

// Query handles POST /api/v1/query.
func (c *RAGController) Query(ctx *gin.Context) {
	var req QueryRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	if req.RetrieveOnly {
		r, err := c.service.Retrieve(ctx.Request.Context(), req.Query, req.TopK)
		if err != nil {
			ctx.JSON(statusFor(err), gin.H{"error": err.Error()})
			return
		}
		ctx.JSON(http.StatusOK, QueryResponse{Query: r.Query, SourceDocs: sourceDocuments(r.Hits), Degraded: r.Degraded})
		return
	}

	answer, err := c.service.Ask(ctx.Request.Context(), req.Query)
	if err != nil {
		ctx.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	resp := QueryResponse{
		Query:      answer.Query,
		Answer:     answer.Text,
		SourceDocs: sourceDocuments(answer.Sources),
		Degraded:   answer.Degraded,
	}
	if answer.Usage != (domain.Usage{}) {
		resp.Usage = &UsageResponse{
			PromptTokens:     answer.Usage.PromptTokens,
			CompletionTokens: answer.Usage.CompletionTokens,
			TotalTokens:      answer.Usage.TotalTokens,
			Cost:             answer.Usage.Cost,
		}
	}
	ctx.JSON(http.StatusOK, resp)
}

// ListChunks handles GET /api/v1/chunks.
func (c *RAGController) ListChunks(ctx *gin.Context) {
	chunks, err := c.service.Chunks(ctx.Request.Context())
	if err != nil {
		logger.Error("request %s: list chunks: %v", requestID(ctx), err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve chunks"})
		return
	}
	out := make([]ChunkResponse, 0, len(chunks))
	for _, ch := range chunks {
		out = append(out, chunkResponse(ch))
	}
	ctx.JSON(http.StatusOK, out)
}

// GetChunk handles GET /api/v1/chunks/:id.
func (c *RAGController) GetChunk(ctx *gin.Context) {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "invalid chunk id"})
		return
	}
	ch, err := c.service.Chunk(ctx.Request.Context(), id)
	if err != nil {
		ctx.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, chunkResponse(ch))
}

// Consistency handles GET /api/v1/consistency.
func (c *RAGController) Consistency(ctx *gin.Context) {
	r, err := c.service.Consistency(ctx.Request.Context())
	if err != nil {
		logger.Error("request %s: consistency: %v", requestID(ctx), err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, ConsistencyResponse{
		OK:           r.OK(),
		StoreChunks:  r.StoreChunks,
		IndexEntries: r.IndexEntries,
		MissingIndex: r.MissingIndex,
		Orphaned:     r.Orphaned,
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidQuery), errors.Is(err, domain.ErrInvalidInput), errors.Is(err, domain.ErrExtraction):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
