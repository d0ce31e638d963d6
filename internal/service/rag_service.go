// Package service wires chunking, the document store, the vector index and
// answer generation into the ingestion and question-answering flows.
package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"

	"docrag/internal/domain"
	"docrag/internal/logger"
	"docrag/internal/prompt"
)

// DefaultTopK is the number of passages retrieved per question.
const DefaultTopK = 3

// Options tunes retrieval and the post-ingestion summary.
type Options struct {
	TopK                int
	SummaryMaxSentences int
}

// RAGService is the retrieval orchestrator. A document's whole ingestion
// runs under the write lock and retrievals take the read lock, so a query
// sees either none or all of a document's chunks.
type RAGService struct {
	mu sync.RWMutex

	chunker             domain.Chunker
	store               domain.DocumentStore
	index               domain.VectorIndex
	generator           domain.Generator
	summarizer          domain.Summarizer
	topK                int
	summaryMaxSentences int
	newBatchID          func() string
}

// NewRAGService builds the orchestrator. summarizer may be nil, in which case
// batch reports carry no summary.
func NewRAGService(chunker domain.Chunker, store domain.DocumentStore, index domain.VectorIndex, generator domain.Generator, summarizer domain.Summarizer, opts Options) *RAGService {
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	return &RAGService{
		chunker:             chunker,
		store:               store,
		index:               index,
		generator:           generator,
		summarizer:          summarizer,
		topK:                opts.TopK,
		summaryMaxSentences: opts.SummaryMaxSentences,
		newBatchID:          uuid.NewString,
	}
}

// TopK returns the default number of passages per question.
func (s *RAGService) TopK() int { return s.topK }

// Ingest chunks text and stores each chunk, then indexes it. Blank text is a
// no-op; any other text is chunked and stored exactly as given. A chunk the
// index rejects stays in the store flagged unindexed; a store failure aborts
// the item.
func (s *RAGService) Ingest(ctx context.Context, title, text string) domain.IngestReport {
	report := domain.IngestReport{Title: title}
	if strings.TrimSpace(text) == "" {
		report.Skipped = true
		return report
	}

	chunks, err := s.chunker.Chunk(text)
	if err != nil {
		report.Err = fmt.Errorf("chunk %q: %w", title, err)
		return report
	}
	if len(chunks) == 0 {
		report.Skipped = true
		return report
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.store.CreateDocument(ctx, title, text)
	if err != nil {
		report.Err = fmt.Errorf("%w: create document %q: %w", domain.ErrPersistence, title, err)
		return report
	}
	report.DocumentID = doc.ID

	for pos, chunkText := range chunks {
		id, err := s.store.InsertChunk(ctx, domain.Chunk{DocumentID: doc.ID, Text: chunkText, Position: pos})
		if err != nil {
			report.Err = fmt.Errorf("%w: store chunk %d of %q: %w", domain.ErrPersistence, pos, title, err)
			return report
		}
		report.ChunkIDs = append(report.ChunkIDs, id)

		if !s.indexChunk(ctx, id, chunkText) {
			report.Unindexed = append(report.Unindexed, id)
		}
	}

	if report.Partial() {
		logger.Warn("ingested %q with %d of %d chunks unindexed", title, len(report.Unindexed), len(report.ChunkIDs))
	} else {
		logger.Info("ingested %q: %d chunks", title, len(report.ChunkIDs))
	}
	return report
}

// indexChunk adds one stored chunk to the index and flags it indexed. It
// reports whether both steps succeeded; failures are logged.
func (s *RAGService) indexChunk(ctx context.Context, id int64, text string) bool {
	if err := s.index.Add(ctx, id, text); err != nil {
		logger.Warn("%v", fmt.Errorf("%w: chunk %d: %w", domain.ErrIndex, id, err))
		return false
	}
	if err := s.store.MarkIndexed(ctx, id); err != nil {
		logger.Warn("%v", fmt.Errorf("%w: flag chunk %d indexed: %w", domain.ErrPersistence, id, err))
		return false
	}
	return true
}

// IngestBatch ingests each source independently. Sources carrying an
// extraction error are recorded as failed and skipped.
func (s *RAGService) IngestBatch(ctx context.Context, sources []domain.Source) domain.BatchReport {
	batch := domain.BatchReport{BatchID: s.newBatchID(), Items: make([]domain.IngestReport, 0, len(sources))}
	var ingested []string

	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			batch.Items = append(batch.Items, domain.IngestReport{Title: src.Title, Err: err})
			continue
		}
		if src.Err != nil {
			err := src.Err
			if !errors.Is(err, domain.ErrExtraction) {
				err = fmt.Errorf("%w: %w", domain.ErrExtraction, err)
			}
			logger.Warn("skipping %q: %v", src.Title, err)
			batch.Items = append(batch.Items, domain.IngestReport{Title: src.Title, Err: err})
			continue
		}

		logger.Debug("batch %s: item %d/%d %q", batch.BatchID, i+1, len(sources), src.Title)
		r := s.Ingest(ctx, src.Title, src.Text)
		if r.Err != nil {
			logger.Warn("ingesting %q failed: %v", src.Title, r.Err)
		} else if len(r.ChunkIDs) > 0 {
			ingested = append(ingested, src.Text)
		}
		batch.Items = append(batch.Items, r)
	}

	if s.summarizer != nil && len(ingested) > 0 {
		summary, err := s.summarizer.Summarize(strings.Join(ingested, "\n"), s.summaryMaxSentences)
		if err != nil {
			logger.Warn("summarising batch %s: %v", batch.BatchID, err)
		}
		batch.Summary = summary
	}
	return batch
}

// Retrieve returns up to k passages for query, best first. A non-positive k
// selects the configured default. An index failure degrades to an empty
// result instead of an error. A blank query is rejected; any other query is
// used as given.
func (s *RAGService) Retrieve(ctx context.Context, query string, k int) (domain.Retrieval, error) {
	if strings.TrimSpace(query) == "" {
		return domain.Retrieval{}, domain.ErrInvalidQuery
	}
	if k <= 0 {
		k = s.topK
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	hits, err := s.index.Query(ctx, query, k)
	if err != nil {
		logger.Warn("%v", fmt.Errorf("%w: %w", domain.ErrRetrieval, err))
		return domain.Retrieval{Query: query, Hits: []domain.Hit{}, Degraded: true}, nil
	}
	return domain.Retrieval{Query: query, Hits: hits}, nil
}

// Ask retrieves context for query and asks the generator for an answer.
// Generation failures are returned as an apology in the answer text.
func (s *RAGService) Ask(ctx context.Context, query string) (domain.Answer, error) {
	r, err := s.Retrieve(ctx, query, s.topK)
	if err != nil {
		return domain.Answer{}, err
	}
	answer := domain.Answer{Query: r.Query, Sources: r.Hits, Degraded: r.Degraded}

	gen, err := s.generator.Generate(ctx, prompt.SystemInstruction, prompt.Assemble(r.Query, r.Passages()))
	if err != nil {
		err = fmt.Errorf("%w: %w", domain.ErrGeneration, err)
		logger.Warn("%v", err)
		answer.Text = Apology(err)
		answer.Degraded = true
		return answer, nil
	}
	answer.Text = gen.Text
	answer.Usage = gen.Usage
	return answer, nil
}

// Apology is the answer text shown when generation fails.
func Apology(err error) string {
	return fmt.Sprintf("Sorry, I couldn't get a response from the model: %v", err)
}

// Reindex retries indexing for every chunk still flagged unindexed, and for
// every stored chunk the index no longer holds (an index that did not survive
// a restart, for example). Adding an id that is already indexed overwrites it.
func (s *RAGService) Reindex(ctx context.Context) (domain.IngestReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pending, err := s.pendingChunks(ctx)
	if err != nil {
		return domain.IngestReport{}, err
	}
	report := domain.IngestReport{Title: "reindex"}
	for _, c := range pending {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.ChunkIDs = append(report.ChunkIDs, c.ID)
		if !s.indexChunk(ctx, c.ID, c.Text) {
			report.Unindexed = append(report.Unindexed, c.ID)
		}
	}
	logger.Info("reindexed %d of %d pending chunks", report.Indexed(), len(pending))
	return report, nil
}

// pendingChunks lists, in id order, the chunks flagged unindexed plus the
// chunks flagged indexed that are absent from the index. Callers hold mu.
func (s *RAGService) pendingChunks(ctx context.Context) ([]domain.Chunk, error) {
	pending, err := s.store.UnindexedChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list unindexed chunks: %w", domain.ErrPersistence, err)
	}
	chunks, err := s.store.ListChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list chunks: %w", domain.ErrPersistence, err)
	}
	ids, err := s.index.IDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: list index ids: %w", domain.ErrIndex, err)
	}
	inIndex := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		inIndex[id] = struct{}{}
	}
	for _, c := range chunks {
		if _, ok := inIndex[c.ID]; c.Indexed && !ok {
			pending = append(pending, c)
		}
	}
	slices.SortFunc(pending, func(a, b domain.Chunk) int { return cmp.Compare(a.ID, b.ID) })
	return pending, nil
}

// Consistency compares the chunk ids in the document store with the ids in
// the vector index.
func (s *RAGService) Consistency(ctx context.Context) (domain.ConsistencyReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	chunks, err := s.store.ListChunks(ctx)
	if err != nil {
		return domain.ConsistencyReport{}, fmt.Errorf("%w: list chunks: %w", domain.ErrPersistence, err)
	}
	ids, err := s.index.IDs(ctx)
	if err != nil {
		return domain.ConsistencyReport{}, fmt.Errorf("%w: list index ids: %w", domain.ErrIndex, err)
	}

	report := domain.ConsistencyReport{StoreChunks: len(chunks), IndexEntries: len(ids)}
	inIndex := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		inIndex[id] = struct{}{}
	}
	inStore := make(map[int64]struct{}, len(chunks))
	for _, c := range chunks {
		inStore[c.ID] = struct{}{}
		if _, ok := inIndex[c.ID]; !ok {
			report.MissingIndex = append(report.MissingIndex, c.ID)
		}
	}
	for _, id := range ids {
		if _, ok := inStore[id]; !ok {
			report.Orphaned = append(report.Orphaned, id)
		}
	}
	return report, nil
}

// Chunks lists every stored chunk in id order.
func (s *RAGService) Chunks(ctx context.Context) ([]domain.Chunk, error) {
	return s.store.ListChunks(ctx)
}

// Chunk returns one stored chunk.
func (s *RAGService) Chunk(ctx context.Context, id int64) (domain.Chunk, error) {
	return s.store.GetChunk(ctx, id)
}

// Document returns one stored document.
func (s *RAGService) Document(ctx context.Context, id int64) (domain.Document, error) {
	return s.store.GetDocument(ctx, id)
}
