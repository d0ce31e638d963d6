package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"docrag/internal/domain"
)

// Store is an in-memory document store.
type Store struct {
	mu        sync.RWMutex
	nextDoc   int64
	nextChunk int64
	docs      map[int64]domain.Document
	chunks    map[int64]domain.Chunk
	order     []int64
	now       func() time.Time
}

func NewStore() *Store {
	return &Store{
		docs:   make(map[int64]domain.Document),
		chunks: make(map[int64]domain.Chunk),
		now:    time.Now,
	}
}

func (s *Store) CreateDocument(_ context.Context, title, sourceText string) (domain.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextDoc++
	doc := domain.Document{ID: s.nextDoc, Title: title, SourceText: sourceText, CreatedAt: s.now()}
	s.docs[doc.ID] = doc
	return doc, nil
}

func (s *Store) GetDocument(_ context.Context, id int64) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return domain.Document{}, fmt.Errorf("memory: document %d: %w", id, domain.ErrNotFound)
	}
	return doc, nil
}

func (s *Store) InsertChunk(_ context.Context, chunk domain.Chunk) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[chunk.DocumentID]
	if !ok {
		return 0, fmt.Errorf("memory: document %d: %w", chunk.DocumentID, domain.ErrNotFound)
	}
	s.nextChunk++
	chunk.ID = s.nextChunk
	chunk.DocumentTitle = doc.Title
	chunk.Indexed = false
	chunk.CreatedAt = s.now()
	s.chunks[chunk.ID] = chunk
	s.order = append(s.order, chunk.ID)
	return chunk.ID, nil
}

func (s *Store) GetChunk(_ context.Context, id int64) (domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chunks[id]
	if !ok {
		return domain.Chunk{}, fmt.Errorf("memory: chunk %d: %w", id, domain.ErrNotFound)
	}
	return c, nil
}

func (s *Store) MarkIndexed(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.chunks[id]
	if !ok {
		return fmt.Errorf("memory: chunk %d: %w", id, domain.ErrNotFound)
	}
	c.Indexed = true
	s.chunks[id] = c
	return nil
}

func (s *Store) ListChunks(_ context.Context) ([]domain.Chunk, error) {
	return s.filter(func(domain.Chunk) bool { return true }), nil
}

func (s *Store) UnindexedChunks(_ context.Context) ([]domain.Chunk, error) {
	return s.filter(func(c domain.Chunk) bool { return !c.Indexed }), nil
}

func (s *Store) filter(keep func(domain.Chunk) bool) []domain.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Chunk, 0, len(s.order))
	for _, id := range s.order {
		if c := s.chunks[id]; keep(c) {
			out = append(out, c)
		}
	}
	return out
}

func (s *Store) Close() error { return nil }

var _ domain.DocumentStore = (*Store)(nil)
