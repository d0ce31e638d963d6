// Package sqlite is the durable document store. It keeps documents and their
// chunks in a single SQLite file using the pure-Go modernc driver.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"docrag/internal/docstore/sqlite/migrations"
	"docrag/internal/domain"
)

// DefaultFile is the database file name used when only a directory is known.
const DefaultFile = "docrag.db"

// Store is a SQLite-backed domain.DocumentStore.
type Store struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

var _ domain.DocumentStore = (*Store)(nil)

// NewStore opens (creating if needed) the database at path.
// If path is empty, defaults to ~/.config/docrag/docrag.db.
func NewStore(path string) (*Store, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		path = filepath.Join(home, ".config", "docrag", DefaultFile)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: path, now: time.Now}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending NNN_name.up.sql migrations in order.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}
	var upFiles []string
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			upFiles = append(upFiles, e.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) CreateDocument(ctx context.Context, title, sourceText string) (domain.Document, error) {
	created := s.now()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO documents (title, source_text, created_at) VALUES (?, ?, ?)",
		title, sourceText, created.UnixMilli())
	if err != nil {
		return domain.Document{}, fmt.Errorf("inserting document: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return domain.Document{}, fmt.Errorf("reading document id: %w", err)
	}
	return domain.Document{ID: id, Title: title, SourceText: sourceText, CreatedAt: time.UnixMilli(created.UnixMilli())}, nil
}

func (s *Store) GetDocument(ctx context.Context, id int64) (domain.Document, error) {
	var (
		doc     domain.Document
		created int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT id, title, source_text, created_at FROM documents WHERE id = ?", id).
		Scan(&doc.ID, &doc.Title, &doc.SourceText, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Document{}, fmt.Errorf("document %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Document{}, fmt.Errorf("querying document %d: %w", id, err)
	}
	doc.CreatedAt = time.UnixMilli(created)
	return doc, nil
}

func (s *Store) InsertChunk(ctx context.Context, chunk domain.Chunk) (int64, error) {
	var exists int
	err := s.db.QueryRowContext(ctx, "SELECT 1 FROM documents WHERE id = ?", chunk.DocumentID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("document %d: %w", chunk.DocumentID, domain.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("querying document %d: %w", chunk.DocumentID, err)
	}

	res, err := s.db.ExecContext(ctx,
		"INSERT INTO chunks (document_id, position, content, indexed, created_at) VALUES (?, ?, ?, 0, ?)",
		chunk.DocumentID, chunk.Position, chunk.Text, s.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("inserting chunk: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading chunk id: %w", err)
	}
	return id, nil
}

const chunkColumns = `c.id, c.document_id, d.title, c.content, c.position, c.indexed, c.created_at
	FROM chunks c JOIN documents d ON d.id = c.document_id`

func (s *Store) GetChunk(ctx context.Context, id int64) (domain.Chunk, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+chunkColumns+" WHERE c.id = ?", id)
	c, err := scanChunk(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Chunk{}, fmt.Errorf("chunk %d: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.Chunk{}, fmt.Errorf("querying chunk %d: %w", id, err)
	}
	return c, nil
}

func (s *Store) MarkIndexed(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, "UPDATE chunks SET indexed = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("marking chunk %d indexed: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("marking chunk %d indexed: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("chunk %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *Store) ListChunks(ctx context.Context) ([]domain.Chunk, error) {
	return s.queryChunks(ctx, "SELECT "+chunkColumns+" ORDER BY c.id")
}

func (s *Store) UnindexedChunks(ctx context.Context) ([]domain.Chunk, error) {
	return s.queryChunks(ctx, "SELECT "+chunkColumns+" WHERE c.indexed = 0 ORDER BY c.id")
}

func (s *Store) queryChunks(ctx context.Context, query string) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var out []domain.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanChunk(row scanner) (domain.Chunk, error) {
	var (
		c       domain.Chunk
		indexed int
		created int64
	)
	if err := row.Scan(&c.ID, &c.DocumentID, &c.DocumentTitle, &c.Text, &c.Position, &indexed, &created); err != nil {
		return domain.Chunk{}, err
	}
	c.Indexed = indexed != 0
	c.CreatedAt = time.UnixMilli(created)
	return c, nil
}
