package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/chunker"
	docmemory "docrag/internal/docstore/memory"
	"docrag/internal/domain"
	"docrag/internal/embedding/hashing"
	"docrag/internal/generation/extractive"
	"docrag/internal/logger"
	"docrag/internal/prompt"
	"docrag/internal/summarizer"
	"docrag/internal/vectorstore"
	vecmemory "docrag/internal/vectorstore/memory"
)

// spyIndex wraps a real index, counts calls and can be told to fail.
type spyIndex struct {
	domain.VectorIndex

	mu        sync.Mutex
	adds      int
	queries   int
	failAdd   map[int64]bool
	failQuery bool
}

func (s *spyIndex) Add(ctx context.Context, id int64, text string) error {
	s.mu.Lock()
	s.adds++
	fail := s.failAdd[id]
	s.mu.Unlock()
	if fail {
		return errors.New("index unavailable")
	}
	return s.VectorIndex.Add(ctx, id, text)
}

func (s *spyIndex) Query(ctx context.Context, text string, k int) ([]domain.Hit, error) {
	s.mu.Lock()
	s.queries++
	fail := s.failQuery
	s.mu.Unlock()
	if fail {
		return nil, errors.New("index unavailable")
	}
	return s.VectorIndex.Query(ctx, text, k)
}

type spyGenerator struct {
	calls  int
	system string
	prompt string
	err    error
}

func (g *spyGenerator) Name() string { return "spy" }

func (g *spyGenerator) Generate(_ context.Context, system, p string) (domain.Generation, error) {
	g.calls++
	g.system, g.prompt = system, p
	if g.err != nil {
		return domain.Generation{}, g.err
	}
	return domain.Generation{Text: "generated", Usage: domain.Usage{TotalTokens: 7}}, nil
}

// failingStore rejects chunk inserts after the first n.
type failingStore struct {
	*docmemory.Store
	allow int
}

func (f *failingStore) InsertChunk(ctx context.Context, c domain.Chunk) (int64, error) {
	if f.allow <= 0 {
		return 0, errors.New("disk full")
	}
	f.allow--
	return f.Store.InsertChunk(ctx, c)
}

type fixture struct {
	svc   *RAGService
	store *docmemory.Store
	index *spyIndex
	gen   *spyGenerator
	logs  *bytes.Buffer
}

func captureLogs(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := &bytes.Buffer{}
	prev := logger.Output()
	logger.SetOutput(buf)
	t.Cleanup(func() { logger.SetOutput(prev) })
	return buf
}

func newFixture(t *testing.T, ch domain.Chunker) *fixture {
	t.Helper()
	if ch == nil {
		w, err := chunker.NewWindow(chunker.DefaultSize, chunker.DefaultOverlap)
		require.NoError(t, err)
		ch = w
	}
	ix, err := vectorstore.NewIndex(context.Background(), hashing.NewEmbedder(0), vecmemory.NewStorage())
	require.NoError(t, err)

	f := &fixture{
		store: docmemory.NewStore(),
		index: &spyIndex{VectorIndex: ix, failAdd: map[int64]bool{}},
		gen:   &spyGenerator{},
		logs:  captureLogs(t),
	}
	f.svc = NewRAGService(ch, f.store, f.index, f.gen, summarizer.NewFrequencySummarizer(), Options{})
	f.svc.newBatchID = func() string { return "batch-1" }
	return f
}

func TestIngest_SkyAndGrass(t *testing.T) {
	w, err := chunker.NewWindow(20, 5)
	require.NoError(t, err)
	f := newFixture(t, w)
	ctx := context.Background()

	r := f.svc.Ingest(ctx, domain.ManualEntryTitle, "The sky is blue. The grass is green.")
	require.NoError(t, r.Err)
	assert.False(t, r.Skipped)
	require.Len(t, r.ChunkIDs, 3)
	assert.Empty(t, r.Unindexed)
	assert.Equal(t, 3, r.Indexed())

	chunks, err := f.store.ListChunks(ctx)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	assert.Equal(t, []int{20, 20, 6}, []int{len(chunks[0].Text), len(chunks[1].Text), len(chunks[2].Text)})
	for i, c := range chunks {
		assert.True(t, c.Indexed)
		assert.Equal(t, i, c.Position)
		assert.Equal(t, domain.ManualEntryTitle, c.DocumentTitle)
	}

	n, err := f.index.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	report, err := f.svc.Consistency(ctx)
	require.NoError(t, err)
	assert.True(t, report.OK())
	assert.Equal(t, 3, report.StoreChunks)
	assert.Equal(t, 3, report.IndexEntries)
}

func TestIngest_KeepsSourceTextAsGiven(t *testing.T) {
	w, err := chunker.NewWindow(10, 2)
	require.NoError(t, err)
	f := newFixture(t, w)
	ctx := context.Background()

	text := "\n  Heading\n\nBody line.\n  "
	batch := f.svc.IngestBatch(ctx, []domain.Source{{Title: "notes.md", Text: text}})
	require.Len(t, batch.Items, 1)
	r := batch.Items[0]
	require.NoError(t, r.Err)

	doc, err := f.store.GetDocument(ctx, r.DocumentID)
	require.NoError(t, err)
	assert.Equal(t, text, doc.SourceText)

	chunks, err := f.store.ListChunks(ctx)
	require.NoError(t, err)
	want, err := chunker.Split(text, 10, 2)
	require.NoError(t, err)
	require.Len(t, chunks, len(want))
	for i, c := range chunks {
		assert.Equal(t, want[i], c.Text)
	}
	assert.True(t, strings.HasPrefix(chunks[0].Text, "\n  "))
	require.Len(t, chunks, 4)
	assert.Equal(t, " line.\n  ", chunks[2].Text)
	assert.Equal(t, " ", chunks[3].Text)
}

func TestRetrieve_CapitalOfFrance(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	r := f.svc.Ingest(ctx, "geo.txt", "Paris is the capital of France.")
	require.NoError(t, r.Err)
	require.Len(t, r.ChunkIDs, 1)

	got, err := f.svc.Retrieve(ctx, "What is the capital of France?", 1)
	require.NoError(t, err)
	assert.False(t, got.Degraded)
	require.Len(t, got.Hits, 1)
	assert.Equal(t, "Paris is the capital of France.", got.Hits[0].Text)
	assert.Equal(t, r.ChunkIDs[0], got.Hits[0].ChunkID)
}

func TestIngest_EmptyText(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, text := range []string{"", "   \n\t"} {
		r := f.svc.Ingest(ctx, domain.ManualEntryTitle, text)
		assert.NoError(t, r.Err)
		assert.True(t, r.Skipped)
		assert.Empty(t, r.ChunkIDs)
	}

	chunks, err := f.store.ListChunks(ctx)
	require.NoError(t, err)
	assert.Empty(t, chunks)
	_, err = f.store.GetDocument(ctx, 1)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.Zero(t, f.index.adds)
}

func TestRetrieve_EmptyQuery(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for _, q := range []string{"", "  \t"} {
		_, err := f.svc.Retrieve(ctx, q, 3)
		assert.ErrorIs(t, err, domain.ErrInvalidQuery)

		_, err = f.svc.Ask(ctx, q)
		assert.ErrorIs(t, err, domain.ErrInvalidQuery)
	}
	assert.Zero(t, f.index.queries)
	assert.Zero(t, f.gen.calls)
}

func TestRetrieve_EmptyIndex(t *testing.T) {
	f := newFixture(t, nil)
	got, err := f.svc.Retrieve(context.Background(), "anything at all", 3)
	require.NoError(t, err)
	assert.Empty(t, got.Hits)
	assert.False(t, got.Degraded)
}

func TestRetrieve_OrderingAndDefaults(t *testing.T) {
	f := newFixture(t, chunker.Whole{})
	ctx := context.Background()
	for _, text := range []string{
		"Goroutines are lightweight threads.",
		"Channels connect goroutines.",
		"Bread is baked in an oven.",
		"Goroutines and channels make Go concurrency simple.",
	} {
		require.NoError(t, f.svc.Ingest(ctx, "go.txt", text).Err)
	}

	got, err := f.svc.Retrieve(ctx, "goroutines channels", 0)
	require.NoError(t, err)
	require.Len(t, got.Hits, DefaultTopK)
	for i := 1; i < len(got.Hits); i++ {
		assert.GreaterOrEqual(t, got.Hits[i-1].Score, got.Hits[i].Score)
	}

	again, err := f.svc.Retrieve(ctx, "goroutines channels", 0)
	require.NoError(t, err)
	assert.Equal(t, got.Hits, again.Hits)

	all, err := f.svc.Retrieve(ctx, "goroutines channels", 10)
	require.NoError(t, err)
	assert.Len(t, all.Hits, 4)
}

func TestIngest_IndexFailureLeavesChunkUnindexed(t *testing.T) {
	w, err := chunker.NewWindow(20, 5)
	require.NoError(t, err)
	f := newFixture(t, w)
	ctx := context.Background()
	f.index.failAdd[2] = true

	r := f.svc.Ingest(ctx, "notes.txt", "The sky is blue. The grass is green.")
	require.NoError(t, r.Err)
	assert.Equal(t, []int64{1, 2, 3}, r.ChunkIDs)
	assert.Equal(t, []int64{2}, r.Unindexed)
	assert.True(t, r.Partial())
	assert.Contains(t, f.logs.String(), "[WARN]")

	c, err := f.store.GetChunk(ctx, 2)
	require.NoError(t, err)
	assert.False(t, c.Indexed)

	report, err := f.svc.Consistency(ctx)
	require.NoError(t, err)
	assert.False(t, report.OK())
	assert.Equal(t, []int64{2}, report.MissingIndex)
	assert.Empty(t, report.Orphaned)

	delete(f.index.failAdd, 2)
	re, err := f.svc.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, re.ChunkIDs)
	assert.Empty(t, re.Unindexed)

	report, err = f.svc.Consistency(ctx)
	require.NoError(t, err)
	assert.True(t, report.OK())

	pending, err := f.store.UnindexedChunks(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestReindex_RestoresChunksMissingFromIndex(t *testing.T) {
	w, err := chunker.NewWindow(20, 5)
	require.NoError(t, err)
	f := newFixture(t, w)
	ctx := context.Background()

	r := f.svc.Ingest(ctx, "notes.txt", "The sky is blue. The grass is green.")
	require.NoError(t, r.Err)
	require.Len(t, r.ChunkIDs, 3)

	// an index that lost its contents, as a non-durable one does on restart
	fresh, err := vectorstore.NewIndex(ctx, hashing.NewEmbedder(0), vecmemory.NewStorage())
	require.NoError(t, err)
	f.svc.index = fresh

	report, err := f.svc.Consistency(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, report.MissingIndex)
	pending, err := f.store.UnindexedChunks(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	re, err := f.svc.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 2, 3}, re.ChunkIDs)
	assert.Empty(t, re.Unindexed)

	report, err = f.svc.Consistency(ctx)
	require.NoError(t, err)
	assert.True(t, report.OK())

	got, err := f.svc.Retrieve(ctx, "sky", 1)
	require.NoError(t, err)
	require.Len(t, got.Hits, 1)
	assert.Contains(t, got.Hits[0].Text, "sky")

	again, err := f.svc.Reindex(ctx)
	require.NoError(t, err)
	assert.Empty(t, again.ChunkIDs)
}

func TestIngest_PersistenceFailureAbortsItem(t *testing.T) {
	w, err := chunker.NewWindow(20, 5)
	require.NoError(t, err)
	f := newFixture(t, w)
	store := &failingStore{Store: f.store, allow: 1}
	f.svc.store = store

	r := f.svc.Ingest(context.Background(), "notes.txt", "The sky is blue. The grass is green.")
	require.Error(t, r.Err)
	assert.ErrorIs(t, r.Err, domain.ErrPersistence)
	assert.Equal(t, []int64{1}, r.ChunkIDs)
	assert.Equal(t, 1, f.index.adds)
}

func TestIngestBatch_ItemsAreIsolated(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	batch := f.svc.IngestBatch(ctx, []domain.Source{
		{Title: "a.txt", Text: "Alpha documents talk about alpha things."},
		{Title: "broken.pdf", Err: errors.New("no text layer")},
		{Title: "blank.txt", Text: "   "},
		{Title: "c.txt", Text: "Gamma documents talk about gamma things."},
	})

	assert.Equal(t, "batch-1", batch.BatchID)
	require.Len(t, batch.Items, 4)
	failed := batch.Failed()
	require.Len(t, failed, 1)
	assert.Equal(t, "broken.pdf", failed[0].Title)
	assert.ErrorIs(t, failed[0].Err, domain.ErrExtraction)
	assert.True(t, batch.Items[2].Skipped)
	assert.Equal(t, 2, batch.Chunks())
	assert.NotEmpty(t, batch.Summary)
	assert.Contains(t, f.logs.String(), "broken.pdf")

	got, err := f.svc.Retrieve(ctx, "gamma", 1)
	require.NoError(t, err)
	require.Len(t, got.Hits, 1)
	assert.Contains(t, got.Hits[0].Text, "Gamma")
}

func TestIngestBatch_CancelledContext(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch := f.svc.IngestBatch(ctx, []domain.Source{{Title: "a", Text: "text"}})
	require.Len(t, batch.Items, 1)
	assert.ErrorIs(t, batch.Items[0].Err, context.Canceled)
	assert.Empty(t, batch.Summary)
}

func TestRetrieve_IndexFailureDegrades(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.svc.Ingest(ctx, "t", "Some stored text.").Err)
	f.index.failQuery = true

	got, err := f.svc.Retrieve(ctx, "stored", 3)
	require.NoError(t, err)
	assert.True(t, got.Degraded)
	assert.Empty(t, got.Hits)

	answer, err := f.svc.Ask(ctx, "stored?")
	require.NoError(t, err)
	assert.True(t, answer.Degraded)
	assert.Contains(t, f.gen.prompt, "Context: "+prompt.NoContext)
	assert.Contains(t, f.logs.String(), domain.ErrRetrieval.Error())
}

func TestAsk_AssemblesPromptFromRankedPassages(t *testing.T) {
	f := newFixture(t, chunker.Whole{})
	ctx := context.Background()
	require.NoError(t, f.svc.Ingest(ctx, "a", "Paris is the capital of France.").Err)
	require.NoError(t, f.svc.Ingest(ctx, "b", "The grass is green.").Err)

	answer, err := f.svc.Ask(ctx, "  What is the capital of France?  ")
	require.NoError(t, err)
	assert.Equal(t, "generated", answer.Text)
	assert.Equal(t, int64(7), answer.Usage.TotalTokens)
	assert.False(t, answer.Degraded)
	require.Len(t, answer.Sources, 2)

	assert.Equal(t, prompt.SystemInstruction, f.gen.system)
	want := prompt.Assemble("  What is the capital of France?  ", []string{answer.Sources[0].Text, answer.Sources[1].Text})
	assert.Equal(t, want, f.gen.prompt)
	assert.Equal(t, "Paris is the capital of France.", answer.Sources[0].Text)
}

func TestAsk_GenerationFailureApologises(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.svc.Ingest(ctx, "t", "Some stored text.").Err)
	f.gen.err = errors.New("rate limited")

	answer, err := f.svc.Ask(ctx, "stored?")
	require.NoError(t, err)
	assert.True(t, answer.Degraded)
	assert.True(t, strings.HasPrefix(answer.Text, "Sorry, I couldn't get a response from the model: "))
	assert.Contains(t, answer.Text, "rate limited")
	assert.Len(t, answer.Sources, 1)
}

func TestAsk_WithExtractiveGenerator(t *testing.T) {
	f := newFixture(t, chunker.Whole{})
	f.svc.generator = extractive.NewGenerator(summarizer.NewFrequencySummarizer(), 1)
	ctx := context.Background()
	require.NoError(t, f.svc.Ingest(ctx, "geo", "Paris is the capital of France. Lyon is known for food.").Err)

	answer, err := f.svc.Ask(ctx, "What is the capital of France?")
	require.NoError(t, err)
	assert.Equal(t, "Paris is the capital of France.", answer.Text)
}

func TestConsistency_ReportsOrphans(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	require.NoError(t, f.svc.Ingest(ctx, "t", "stored text").Err)
	require.NoError(t, f.index.VectorIndex.Add(ctx, 99, "stray vector"))

	report, err := f.svc.Consistency(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{99}, report.Orphaned)
	assert.Empty(t, report.MissingIndex)
}

func TestRetrieve_SeesWholeDocumentsOnly(t *testing.T) {
	w, err := chunker.NewWindow(12, 0)
	require.NoError(t, err)
	f := newFixture(t, w)
	logger.SetOutput(io.Discard)
	ctx := context.Background()

	const docs, perDoc = 8, 5
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for d := 0; d < docs; d++ {
			var b strings.Builder
			for c := 0; c < perDoc; c++ {
				fmt.Fprintf(&b, "marker %03d ", d*perDoc+c)
			}
			assert.NoError(t, f.svc.Ingest(ctx, fmt.Sprintf("doc-%d", d), b.String()).Err)
		}
	}()

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := f.svc.Retrieve(ctx, "marker", docs*perDoc)
			assert.NoError(t, err)
			assert.Zero(t, len(got.Hits)%perDoc, "saw a partially ingested document: %d hits", len(got.Hits))
		}()
	}
	wg.Wait()
}
