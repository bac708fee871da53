package pgvector

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"ragdocs/internal/domain"
	"ragdocs/internal/vectorstore"
)

const DefaultTable = "rag_records"

type Config struct {
	DSN        string
	Table      string
	Collection string
}

// Storage keeps a collection in a Postgres table with a pgvector column.
// Distances come from the <=> (cosine distance) operator.
type Storage struct {
	pool       *pgxpool.Pool
	table      string
	collection string
}

func NewStorage(ctx context.Context, cfg Config) (*Storage, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: pgvector dsn is empty", domain.ErrInvalidConfig)
	}
	if cfg.Table == "" {
		cfg.Table = DefaultTable
	}
	if cfg.Collection == "" {
		cfg.Collection = vectorstore.DefaultCollection
	}
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	s := &Storage{
		pool:       pool,
		table:      pgx.Identifier{cfg.Table}.Sanitize(),
		collection: cfg.Collection,
	}
	if err := s.createTables(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}
	return s, nil
}

func (s *Storage) createTables(ctx context.Context) error {
	query := fmt.Sprintf(`
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS %[1]s (
		seq        BIGSERIAL,
		collection TEXT NOT NULL,
		id         TEXT NOT NULL,
		document   TEXT NOT NULL,
		embedding  vector NOT NULL,
		metadata   JSONB NOT NULL,
		PRIMARY KEY (collection, id)
	);

	CREATE INDEX IF NOT EXISTS %[2]s ON %[1]s (collection, (metadata->>'document_id'));
	`, s.table, pgx.Identifier{strings.Trim(s.table, `"`) + "_document_id_idx"}.Sanitize())
	_, err := s.pool.Exec(ctx, query)
	return err
}

func (s *Storage) Add(ctx context.Context, records []domain.Record) error {
	if err := vectorstore.ValidateRecords(records); err != nil {
		return err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return domain.Wrap(domain.ErrStoreWrite, err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	query := fmt.Sprintf(`INSERT INTO %s (collection, id, document, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5)`, s.table)
	for _, r := range records {
		_, err := tx.Exec(ctx, query, s.collection, r.ID, r.Document, pgvector.NewVector(r.Embedding), r.Metadata)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return fmt.Errorf("%w: id %q already exists", domain.ErrStoreWrite, r.ID)
			}
			return fmt.Errorf("%w: inserting %q: %w", domain.ErrStoreWrite, r.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.Wrap(domain.ErrStoreWrite, err)
	}
	return nil
}

func (s *Storage) Get(ctx context.Context, req vectorstore.GetRequest) ([]domain.Record, error) {
	args := []any{s.collection}
	where := []string{"collection = $1"}
	if len(req.IDs) > 0 {
		args = append(args, req.IDs)
		where = append(where, fmt.Sprintf("id = ANY($%d)", len(args)))
	}
	if len(req.Where) > 0 {
		args = append(args, req.Where)
		where = append(where, fmt.Sprintf("metadata @> $%d", len(args)))
	}
	query := fmt.Sprintf(`SELECT id, document, embedding, metadata, 0::float8 FROM %s WHERE %s ORDER BY seq`,
		s.table, strings.Join(where, " AND "))
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
	query := fmt.Sprintf(`
		SELECT id, document, embedding, metadata, embedding <=> $2 AS distance
		FROM %s
		WHERE collection = $1
		ORDER BY distance, id
		LIMIT $3`, s.table)
	out, err := s.scan(ctx, query, s.collection, pgvector.NewVector(embedding), topN)
	if err != nil {
		return nil, domain.Wrap(domain.ErrStoreQuery, err)
	}
	return out, nil
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE collection = $1", s.table), s.collection).Scan(&n)
	if err != nil {
		return 0, domain.Wrap(domain.ErrStoreQuery, err)
	}
	return n, nil
}

func (s *Storage) Clear(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE collection = $1", s.table), s.collection)
	return domain.Wrap(domain.ErrStoreWrite, err)
}

// Close closes the connection pool.
func (s *Storage) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

func (s *Storage) scan(ctx context.Context, query string, args ...any) ([]domain.Record, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Record{}
	for rows.Next() {
		var (
			r   domain.Record
			vec pgvector.Vector
		)
		if err := rows.Scan(&r.ID, &r.Document, &vec, &r.Metadata, &r.Distance); err != nil {
			return nil, err
		}
		r.Embedding = vec.Slice()
		out = append(out, r)
	}
	return out, rows.Err()
}
