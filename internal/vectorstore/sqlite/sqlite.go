// Package sqlite stores a collection in a SQLite file under a data directory.
// Similarity search is brute force over the collection's embeddings.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"ragdocs/internal/domain"
	"ragdocs/internal/vectorstore"
)

// FileName is the database file created inside the data directory.
const FileName = "collections.db"

const schema = `
CREATE TABLE IF NOT EXISTS records (
	seq        INTEGER PRIMARY KEY AUTOINCREMENT,
	collection TEXT NOT NULL,
	id         TEXT NOT NULL,
	document   TEXT NOT NULL,
	embedding  BLOB NOT NULL,
	metadata   TEXT NOT NULL,
	UNIQUE (collection, id)
);
CREATE INDEX IF NOT EXISTS idx_records_document_id
	ON records (collection, json_extract(metadata, '$.document_id'));
`

type Config struct {
	Dir        string
	Collection string
}

// Storage is a vectorstore.Storage backed by modernc.org/sqlite.
type Storage struct {
	db         *sql.DB
	path       string
	collection string
}

// NewStorage opens (creating if needed) the database in cfg.Dir.
func NewStorage(ctx context.Context, cfg Config) (*Storage, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("%w: sqlite data directory is empty", domain.ErrInvalidConfig)
	}
	if cfg.Collection == "" {
		cfg.Collection = vectorstore.DefaultCollection
	}
	if err := os.MkdirAll(cfg.Dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	path := filepath.Join(cfg.Dir, FileName)
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &Storage{db: db, path: path, collection: cfg.Collection}, nil
}

// Path returns the database file path.
func (s *Storage) Path() string { return s.path }

func (s *Storage) Add(ctx context.Context, records []domain.Record) error {
	if err := vectorstore.ValidateRecords(records); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Wrap(domain.ErrStoreWrite, err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO records (collection, id, document, embedding, metadata) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return domain.Wrap(domain.ErrStoreWrite, err)
	}
	defer stmt.Close()

	for _, r := range records {
		meta, err := json.Marshal(r.Metadata)
		if err != nil {
			return domain.Wrap(domain.ErrStoreWrite, err)
		}
		if _, err := stmt.ExecContext(ctx, s.collection, r.ID, r.Document, encodeEmbedding(r.Embedding), string(meta)); err != nil {
			return fmt.Errorf("%w: inserting %q: %w", domain.ErrStoreWrite, r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return domain.Wrap(domain.ErrStoreWrite, err)
	}
	return nil
}

func (s *Storage) Get(ctx context.Context, req vectorstore.GetRequest) ([]domain.Record, error) {
	var (
		where = []string{"collection = ?"}
		args  = []any{s.collection}
	)
	if len(req.IDs) > 0 {
		where = append(where, "id IN ("+strings.TrimSuffix(strings.Repeat("?,", len(req.IDs)), ",")+")")
		for _, id := range req.IDs {
			args = append(args, id)
		}
	}
	for k, v := range req.Where {
		where = append(where, "json_extract(metadata, ?) = ?")
		args = append(args, jsonPath(k), v)
	}
	query := "SELECT id, document, embedding, metadata FROM records WHERE " +
		strings.Join(where, " AND ") + " ORDER BY seq"
	out, err := s.scan(ctx, query, args...)
	if err != nil {
		return nil, domain.Wrap(domain.ErrStoreQuery, err)
	}
	return out, nil
}

func (s *Storage) Query(ctx context.Context, embedding []float32, topN int) ([]domain.Record, error) {
	if err := vectorstore.CheckTopN(topN); err != nil {
		return nil, err
	}
	all, err := s.scan(ctx,
		"SELECT id, document, embedding, metadata FROM records WHERE collection = ? ORDER BY seq", s.collection)
	if err != nil {
		return nil, domain.Wrap(domain.ErrStoreQuery, err)
	}
	return vectorstore.Nearest(all, embedding, topN)
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	var n int
	row := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM records WHERE collection = ?", s.collection)
	if err := row.Scan(&n); err != nil {
		return 0, domain.Wrap(domain.ErrStoreQuery, err)
	}
	return n, nil
}

func (s *Storage) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM records WHERE collection = ?", s.collection); err != nil {
		return domain.Wrap(domain.ErrStoreWrite, err)
	}
	return nil
}

// Close closes the database connection.
func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) scan(ctx context.Context, query string, args ...any) ([]domain.Record, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Record{}
	for rows.Next() {
		var (
			r    domain.Record
			blob []byte
			meta string
		)
		if err := rows.Scan(&r.ID, &r.Document, &blob, &meta); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		if err := json.Unmarshal([]byte(meta), &r.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata of %q: %w", r.ID, err)
		}
		r.Embedding = decodeEmbedding(blob)
		out = append(out, r)
	}
	return out, rows.Err()
}

func jsonPath(key string) string {
	return `$."` + strings.ReplaceAll(key, `"`, `\"`) + `"`
}

func encodeEmbedding(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeEmbedding(data []byte) []float32 {
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
