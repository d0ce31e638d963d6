// Package chroma keeps chunk vectors in a ChromaDB collection through the
// chroma-go v2 HTTP client. Vectors arrive L2-normalised, so the collection's
// default squared-L2 distance maps onto cosine similarity as 1 - d/2.
package chroma

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	chromago "github.com/amikos-tech/chroma-go/pkg/api/v2"
	"github.com/amikos-tech/chroma-go/pkg/embeddings"

	"docrag/internal/domain"
	"docrag/internal/logger"
	"docrag/internal/vectorstore"
)

const ownerAttr = "created_by"

type Config struct {
	URL        string
	Collection string
}

// Storage is a ChromaDB-backed vectorstore.Storage.
type Storage struct {
	client chromago.Client
	name   string

	mu         sync.Mutex
	collection chromago.Collection
	dimension  int
}

var _ vectorstore.Storage = (*Storage)(nil)

func NewStorage(cfg Config) (*Storage, error) {
	var opts []chromago.ClientOption
	if cfg.URL != "" {
		opts = append(opts, chromago.WithBaseURL(cfg.URL))
	}
	client, err := chromago.NewHTTPClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create chroma client: %w", err)
	}
	name := cfg.Collection
	if name == "" {
		name = "documents"
	}
	return &Storage{client: client, name: name}, nil
}

// Close releases the underlying HTTP client.
func (s *Storage) Close() error { return s.client.Close() }

func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension < 0 {
		return errors.New("invalid dimension")
	}
	collection, err := s.client.GetOrCreateCollection(ctx, s.name,
		chromago.WithCollectionMetadataCreate(
			chromago.NewMetadata(
				chromago.NewStringAttribute("description", "docrag chunk vectors"),
				chromago.NewStringAttribute(ownerAttr, "docrag"),
			),
		),
	)
	if err != nil {
		return fmt.Errorf("get or create collection %q: %w", s.name, err)
	}
	logger.Debug("chroma: using collection %q", s.name)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.collection = collection
	s.dimension = dimension
	return nil
}

func (s *Storage) coll() (chromago.Collection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collection == nil {
		return nil, errors.New("chroma: storage not initialised")
	}
	return s.collection, nil
}

func (s *Storage) Upsert(ctx context.Context, e vectorstore.Entry) error {
	s.mu.Lock()
	if s.dimension == 0 {
		s.dimension = len(e.Vector)
	}
	dim := s.dimension
	s.mu.Unlock()
	if len(e.Vector) != dim {
		return fmt.Errorf("vector dimension mismatch: got %d, want %d", len(e.Vector), dim)
	}

	c, err := s.coll()
	if err != nil {
		return err
	}
	metadata := chromago.NewDocumentMetadata(
		chromago.NewIntAttribute("chunk_id", e.ChunkID),
		chromago.NewStringAttribute(ownerAttr, "docrag"),
	)
	err = c.Upsert(ctx,
		chromago.WithIDs(chromago.DocumentID(domain.ChunkKey(e.ChunkID))),
		chromago.WithTexts(e.Text),
		chromago.WithEmbeddings(embeddings.NewEmbeddingFromFloat32(e.Vector)),
		chromago.WithMetadatas(metadata),
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", domain.ChunkKey(e.ChunkID), err)
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.Hit, error) {
	if topK <= 0 {
		topK = 5
	}
	c, err := s.coll()
	if err != nil {
		return nil, err
	}
	results, err := c.Query(ctx,
		chromago.WithQueryEmbeddings(embeddings.NewEmbeddingFromFloat32(vector)),
		chromago.WithNResults(topK),
	)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	idGroups := results.GetIDGroups()
	if len(idGroups) == 0 {
		return []domain.Hit{}, nil
	}
	var (
		keys  []string
		texts []string
		dists []float64
	)
	for _, id := range idGroups[0] {
		keys = append(keys, string(id))
	}
	if groups := results.GetDocumentsGroups(); len(groups) > 0 {
		for _, d := range groups[0] {
			texts = append(texts, d.ContentString())
		}
	}
	if groups := results.GetDistancesGroups(); len(groups) > 0 {
		for _, d := range groups[0] {
			dists = append(dists, float64(d))
		}
	}
	return hitsFrom(keys, texts, dists), nil
}

// hitsFrom converts one query group into hits. Keys that are not chunk keys
// are skipped; missing texts or distances are left zero.
func hitsFrom(keys, texts []string, dists []float64) []domain.Hit {
	hits := make([]domain.Hit, 0, len(keys))
	for i, key := range keys {
		id, ok := domain.ParseChunkKey(key)
		if !ok {
			logger.Warn("chroma: ignoring foreign id %q", key)
			continue
		}
		h := domain.Hit{ChunkID: id}
		if i < len(texts) {
			h.Text = texts[i]
		}
		if i < len(dists) {
			h.Score = 1 - dists[i]/2
		}
		hits = append(hits, h)
	}
	// chunk ids grow with insertion order
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	return hits
}

func (s *Storage) Len(ctx context.Context) (int, error) {
	c, err := s.coll()
	if err != nil {
		return 0, err
	}
	n, err := c.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count collection: %w", err)
	}
	return int(n), nil
}

func (s *Storage) IDs(ctx context.Context) ([]int64, error) {
	c, err := s.coll()
	if err != nil {
		return nil, err
	}
	results, err := c.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}
	keys := make([]string, 0)
	for _, id := range results.GetIDs() {
		keys = append(keys, string(id))
	}
	return chunkIDs(keys), nil
}

func chunkIDs(keys []string) []int64 {
	ids := make([]int64, 0, len(keys))
	for _, k := range keys {
		if id, ok := domain.ParseChunkKey(k); ok {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Clear deletes every record this application wrote to the collection.
func (s *Storage) Clear(ctx context.Context) error {
	c, err := s.coll()
	if err != nil {
		return err
	}
	if err := c.Delete(ctx, chromago.WithWhereDelete(chromago.EqString(ownerAttr, "docrag"))); err != nil {
		return fmt.Errorf("clear collection: %w", err)
	}
	s.mu.Lock()
	s.dimension = 0
	s.mu.Unlock()
	return nil
}
