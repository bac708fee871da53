package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"ragdocs/internal/domain"
)

// DefaultCollection is the collection every backend uses unless configured otherwise.
const DefaultCollection = "rag_docs"

// GetRequest selects records by id, by exact metadata equality, or both.
// An empty request matches every record.
type GetRequest struct {
	IDs   []string
	Where map[string]string
}

// Storage persists chunk records and supports similarity search.
type Storage interface {
	// Add inserts records. Ids must not exist yet.
	Add(ctx context.Context, records []domain.Record) error
	// Get returns the matching records, or an empty slice.
	Get(ctx context.Context, req GetRequest) ([]domain.Record, error)
	// Query returns up to topN records ordered by ascending distance.
	Query(ctx context.Context, embedding []float32, topN int) ([]domain.Record, error)
	Count(ctx context.Context) (int, error)
	// Clear drops every record of the collection.
	Clear(ctx context.Context) error
	Close() error
}

// Batch is the column-oriented form of an Add call.
type Batch struct {
	IDs        []string
	Documents  []string
	Embeddings [][]float32
	Metadatas  []map[string]string
}

// Records converts the parallel columns into records, failing with
// ErrStoreWrite when their lengths differ.
func (b Batch) Records() ([]domain.Record, error) {
	n := len(b.IDs)
	if len(b.Documents) != n || len(b.Embeddings) != n || len(b.Metadatas) != n {
		return nil, fmt.Errorf("%w: batch length mismatch (ids=%d documents=%d embeddings=%d metadatas=%d)",
			domain.ErrStoreWrite, n, len(b.Documents), len(b.Embeddings), len(b.Metadatas))
	}
	out := make([]domain.Record, n)
	for i := range b.IDs {
		out[i] = domain.Record{
			ID:        b.IDs[i],
			Document:  b.Documents[i],
			Embedding: b.Embeddings[i],
			Metadata:  b.Metadatas[i],
		}
	}
	return out, nil
}

// ValidateRecords checks a batch before it reaches a backend: non-empty
// unique ids, one embedding dimension and the document_id metadata key.
func ValidateRecords(records []domain.Record) error {
	seen := make(map[string]struct{}, len(records))
	dim := -1
	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("%w: empty record id", domain.ErrStoreWrite)
		}
		if _, dup := seen[r.ID]; dup {
			return fmt.Errorf("%w: duplicate id %q in batch", domain.ErrStoreWrite, r.ID)
		}
		seen[r.ID] = struct{}{}
		if len(r.Embedding) == 0 {
			return fmt.Errorf("%w: record %q has no embedding", domain.ErrStoreWrite, r.ID)
		}
		if dim >= 0 && len(r.Embedding) != dim {
			return fmt.Errorf("%w: record %q has dimension %d, want %d", domain.ErrStoreWrite, r.ID, len(r.Embedding), dim)
		}
		dim = len(r.Embedding)
		if r.DocumentID() == "" {
			return fmt.Errorf("%w: record %q lacks %s metadata", domain.ErrStoreWrite, r.ID, domain.MetadataDocumentID)
		}
	}
	return nil
}

// ErrInvalidTopN is returned by Query for a non-positive topN.
var ErrInvalidTopN = errors.New("top_n must be positive")

// CheckTopN wraps ErrInvalidTopN as a query error.
func CheckTopN(topN int) error {
	if topN <= 0 {
		return fmt.Errorf("%w: %w (got %d)", domain.ErrStoreQuery, ErrInvalidTopN, topN)
	}
	return nil
}

// CosineDistance returns 1 - cos(a, b). Zero vectors are at distance 1.
func CosineDistance(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

// UniqueIDs drops repeated ids, keeping first occurrences in order.
func UniqueIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// MatchesWhere reports whether metadata contains every key/value of where.
func MatchesWhere(metadata, where map[string]string) bool {
	for k, v := range where {
		if got, ok := metadata[k]; !ok || got != v {
			return false
		}
	}
	return true
}

// Nearest scores candidates against embedding and keeps the topN closest,
// ties broken by id. It backs the brute-force backends. A query whose
// dimension differs from a stored record's is an ErrStoreQuery.
func Nearest(candidates []domain.Record, embedding []float32, topN int) ([]domain.Record, error) {
	scored := make([]domain.Record, len(candidates))
	for i, r := range candidates {
		if len(r.Embedding) != len(embedding) {
			return nil, fmt.Errorf("%w: query has dimension %d, record %q has %d",
				domain.ErrStoreQuery, len(embedding), r.ID, len(r.Embedding))
		}
		r.Distance = CosineDistance(r.Embedding, embedding)
		scored[i] = r
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Distance != scored[j].Distance {
			return scored[i].Distance < scored[j].Distance
		}
		return scored[i].ID < scored[j].ID
	})
	if topN > len(scored) {
		topN = len(scored)
	}
	return scored[:topN], nil
}
