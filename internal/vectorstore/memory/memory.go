package memory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"docrag/internal/domain"
	"docrag/internal/vectorstore"
)

// Storage is a simple in-memory vector store using brute-force cosine similarity.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	slots     map[int64]int
	entries   []vectorstore.Entry
}

var _ vectorstore.Storage = (*Storage)(nil)

func NewStorage() *Storage { return &Storage{slots: make(map[int64]int)} }

// Init resets the store. A zero dimension is fixed by the first Upsert.
func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension < 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.slots = make(map[int64]int)
	s.entries = nil
	return nil
}

func (s *Storage) Upsert(_ context.Context, e vectorstore.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension == 0 {
		s.dimension = len(e.Vector)
	}
	if len(e.Vector) != s.dimension {
		return fmt.Errorf("vector dimension mismatch: got %d, want %d", len(e.Vector), s.dimension)
	}
	if i, ok := s.slots[e.ChunkID]; ok {
		s.entries[i] = e
		return nil
	}
	s.slots[e.ChunkID] = len(s.entries)
	s.entries = append(s.entries, e)
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float32, topK int) ([]domain.Hit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = 5
	}
	if len(s.entries) > 0 && len(vector) != s.dimension {
		return nil, fmt.Errorf("query dimension mismatch: got %d, want %d", len(vector), s.dimension)
	}
	// vectors are assumed L2-normalized
	hits := make([]domain.Hit, len(s.entries))
	for i, e := range s.entries {
		hits[i] = domain.Hit{ChunkID: e.ChunkID, Text: e.Text, Score: dot(e.Vector, vector)}
	}
	// entries are in insertion order, so a stable sort breaks ties oldest first
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if topK > len(hits) {
		topK = len(hits)
	}
	return hits[:topK], nil
}

func (s *Storage) Len(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries), nil
}

func (s *Storage) IDs(_ context.Context) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]int64, len(s.entries))
	for i, e := range s.entries {
		ids[i] = e.ChunkID
	}
	return ids, nil
}

func (s *Storage) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots = make(map[int64]int)
	s.entries = nil
	return nil
}

func dot(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	sum := 0.0
	for i := 0; i < n; i++ {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
