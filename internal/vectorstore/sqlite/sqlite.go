// Package sqlite stores chunk vectors as float32 BLOBs in SQLite and ranks
// them with a vec_cosine scalar function registered on the modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	sqlite "modernc.org/sqlite"

	"docrag/internal/domain"
	"docrag/internal/vectorstore"
)

const schema = `
CREATE TABLE IF NOT EXISTS vectors (
    seq INTEGER PRIMARY KEY AUTOINCREMENT,
    key TEXT NOT NULL UNIQUE,
    chunk_id INTEGER NOT NULL,
    content TEXT NOT NULL,
    embedding BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS vector_meta (
    name TEXT PRIMARY KEY,
    value INTEGER NOT NULL
);
`

var (
	registerScalar = sqlite.RegisterDeterministicScalarFunction
	registerOnce   sync.Once
	registerErr    error
)

// registerFunctions makes vec_cosine available on connections opened
// afterwards. The outcome of the one registration is returned on every call.
func registerFunctions() error {
	registerOnce.Do(func() {
		if err := registerScalar("vec_cosine", 2, vecCosine); err != nil {
			registerErr = fmt.Errorf("registering vec_cosine: %w", err)
		}
	})
	return registerErr
}

// Storage is a SQLite-backed vectorstore.Storage.
type Storage struct {
	db        *sql.DB
	mu        sync.Mutex
	dimension int
}

var _ vectorstore.Storage = (*Storage)(nil)

// NewStorage opens (creating if needed) the database file at path. The
// vector tables can share a file with the document store.
func NewStorage(path string) (*Storage, error) {
	if path == "" {
		return nil, errors.New("sqlite vector storage: empty path")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}
	if err := registerFunctions(); err != nil {
		return nil, err
	}

	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	if path == ":memory:" {
		dsn = path
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if path == ":memory:" {
		// each pooled connection would otherwise get its own empty database
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating vector schema: %w", err)
	}
	return &Storage{db: db}, nil
}

// Close closes the database connection.
func (s *Storage) Close() error { return s.db.Close() }

// Init checks dimension against the one recorded by earlier sessions. A zero
// dimension adopts the recorded one, or the first upserted vector's.
func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension < 0 {
		return errors.New("invalid dimension")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	var stored int
	err := s.db.QueryRowContext(ctx, "SELECT value FROM vector_meta WHERE name = 'dimension'").Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		stored = 0
	case err != nil:
		return fmt.Errorf("reading dimension: %w", err)
	}

	switch {
	case stored == 0 && dimension > 0:
		if err := s.recordDimension(ctx, dimension); err != nil {
			return err
		}
		s.dimension = dimension
	case stored > 0 && dimension > 0 && stored != dimension:
		return fmt.Errorf("vector dimension mismatch: store holds %d, embedder produces %d", stored, dimension)
	default:
		s.dimension = stored
	}
	return nil
}

func (s *Storage) recordDimension(ctx context.Context, dimension int) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO vector_meta (name, value) VALUES ('dimension', ?) ON CONFLICT(name) DO UPDATE SET value = excluded.value",
		dimension)
	if err != nil {
		return fmt.Errorf("recording dimension: %w", err)
	}
	return nil
}

func (s *Storage) Upsert(ctx context.Context, e vectorstore.Entry) error {
	s.mu.Lock()
	if s.dimension == 0 && len(e.Vector) > 0 {
		if err := s.recordDimension(ctx, len(e.Vector)); err != nil {
			s.mu.Unlock()
			return err
		}
		s.dimension = len(e.Vector)
	}
	dim := s.dimension
	s.mu.Unlock()

	if len(e.Vector) != dim {
		return fmt.Errorf("vector dimension mismatch: got %d, want %d", len(e.Vector), dim)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vectors (key, chunk_id, content, embedding) VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET content = excluded.content, embedding = excluded.embedding`,
		domain.ChunkKey(e.ChunkID), e.ChunkID, e.Text, encodeEmbedding(e.Vector))
	if err != nil {
		return fmt.Errorf("upserting %s: %w", domain.ChunkKey(e.ChunkID), err)
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.Hit, error) {
	if topK <= 0 {
		topK = 5
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT chunk_id, content, vec_cosine(embedding, ?) AS score
		FROM vectors
		ORDER BY score DESC, seq ASC
		LIMIT ?`, encodeEmbedding(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w", err)
	}
	defer rows.Close()

	hits := make([]domain.Hit, 0, topK)
	for rows.Next() {
		var (
			h     domain.Hit
			score sql.NullFloat64
		)
		if err := rows.Scan(&h.ChunkID, &h.Text, &score); err != nil {
			return nil, fmt.Errorf("scanning hit: %w", err)
		}
		h.Score = score.Float64
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

func (s *Storage) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM vectors").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting vectors: %w", err)
	}
	return n, nil
}

func (s *Storage) IDs(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT chunk_id FROM vectors ORDER BY seq")
	if err != nil {
		return nil, fmt.Errorf("listing vectors: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Storage) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, "DELETE FROM vectors; DELETE FROM vector_meta;"); err != nil {
		return fmt.Errorf("clearing vectors: %w", err)
	}
	s.dimension = 0
	return nil
}

func vecCosine(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("vec_cosine: expected 2 arguments, got %d", len(args))
	}
	a, err := asEmbedding(args[0])
	if err != nil {
		return nil, err
	}
	b, err := asEmbedding(args[1])
	if err != nil {
		return nil, err
	}
	if a == nil || b == nil {
		return nil, nil
	}
	if len(a) != len(b) {
		return nil, fmt.Errorf("vec_cosine: dimension mismatch %d != %d", len(a), len(b))
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0.0, nil
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb)), nil
}

func asEmbedding(arg driver.Value) ([]float32, error) {
	switch v := arg.(type) {
	case nil:
		return nil, nil
	case []byte:
		return decodeEmbedding(v)
	default:
		return nil, fmt.Errorf("vec: unsupported argument type %T for embedding; want BLOB", arg)
	}
}

// encodeEmbedding writes vec as little-endian IEEE 754 float32 values.
func encodeEmbedding(vec []float32) []byte {
	b := make([]byte, len(vec)*4)
	for i, v := range vec {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

func decodeEmbedding(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vec: invalid embedding blob length %d", len(b))
	}
	vec := make([]float32, len(b)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}
