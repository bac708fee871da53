// Package retrieve finds the documents relevant to a question and rebuilds
// their full text from stored chunks.
package retrieve

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"ragdocs/internal/domain"
	"ragdocs/internal/embedding"
	"ragdocs/internal/vectorstore"
)

const DefaultTopN = 3

// DocumentContext is one hit document, reassembled from all of its chunks.
type DocumentContext struct {
	DocumentID string
	Chunks     []domain.Record
	Text       string
}

// Result holds the nearest chunks and the documents they belong to, in
// order of each document's best hit.
type Result struct {
	Query     string
	Hits      []domain.Record
	Documents []DocumentContext
}

// Context concatenates the reassembled documents, separated by a blank line.
func (r Result) Context() string {
	parts := make([]string, len(r.Documents))
	for i, d := range r.Documents {
		parts[i] = d.Text
	}
	return strings.Join(parts, "\n\n")
}

type Retriever struct {
	embedder embedding.Embedder
	store    vectorstore.Storage
	topN     int
	logger   *zap.Logger
}

func NewRetriever(embedder embedding.Embedder, store vectorstore.Storage, topN int, logger *zap.Logger) *Retriever {
	if topN <= 0 {
		topN = DefaultTopN
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{embedder: embedder, store: store, topN: topN, logger: logger}
}

// Retrieve embeds the query, takes the top N nearest chunks and returns
// every chunk of each distinct document among them.
func (r *Retriever) Retrieve(ctx context.Context, query string) (Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return Result{}, fmt.Errorf("%w: query is empty", domain.ErrInvalidQuery)
	}
	vec, err := r.embedder.Embed(ctx, query, domain.TaskRetrievalQuery)
	if err != nil {
		return Result{}, domain.Wrap(domain.ErrEmbeddingService, err)
	}
	hits, err := r.store.Query(ctx, vec, r.topN)
	if err != nil {
		return Result{}, domain.Wrap(domain.ErrStoreQuery, err)
	}
	res := Result{Query: query, Hits: hits}

	seen := map[string]struct{}{}
	for _, h := range hits {
		id := h.DocumentID()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		chunks, err := r.store.Get(ctx, vectorstore.GetRequest{
			Where: map[string]string{domain.MetadataDocumentID: id},
		})
		if err != nil {
			return Result{}, domain.Wrap(domain.ErrStoreQuery, err)
		}
		SortChunks(chunks)
		res.Documents = append(res.Documents, DocumentContext{
			DocumentID: id,
			Chunks:     chunks,
			Text:       joinChunks(chunks),
		})
	}
	r.logger.Debug("retrieved",
		zap.Int("hits", len(hits)),
		zap.Int("documents", len(res.Documents)))
	return res, nil
}

// SortChunks orders records by the numeric suffix of their "_chunk_N" id.
// Ids without a parsable suffix sort last, by id.
func SortChunks(records []domain.Record) {
	sort.SliceStable(records, func(i, j int) bool {
		a, aok := chunkIndex(records[i].ID)
		b, bok := chunkIndex(records[j].ID)
		switch {
		case aok && bok:
			return a < b
		case aok != bok:
			return aok
		default:
			return records[i].ID < records[j].ID
		}
	})
}

func chunkIndex(id string) (int, bool) {
	i := strings.LastIndex(id, "_chunk_")
	if i < 0 {
		return 0, false
	}
	n, err := strconv.Atoi(id[i+len("_chunk_"):])
	if err != nil {
		return 0, false
	}
	return n, true
}

func joinChunks(records []domain.Record) string {
	parts := make([]string, 0, len(records))
	for _, r := range records {
		if t := strings.TrimSpace(r.Document); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}
