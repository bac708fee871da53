// Package ingest turns source text files into stored chunk records.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"ragdocs/internal/domain"
	"ragdocs/internal/embedding"
	"ragdocs/internal/vectorstore"
)

// State is the furthest step a document reached during a run.
type State int

const (
	NotStarted State = iota
	CheckedExisting
	Skipped
	Split
	Embedded
	Stored
	Failed
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "not_started"
	case CheckedExisting:
		return "checked_existing"
	case Skipped:
		return "skipped"
	case Split:
		return "split"
	case Embedded:
		return "embedded"
	case Stored:
		return "stored"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DocumentResult is the outcome for one source file.
type DocumentResult struct {
	DocumentID string
	Path       string
	State      State
	Chunks     int
	Err        error
}

// Report collects the per-document results of a run, in processing order.
type Report struct {
	Documents []DocumentResult
}

// Count returns how many documents ended in state s.
func (r Report) Count(s State) int {
	n := 0
	for _, d := range r.Documents {
		if d.State == s {
			n++
		}
	}
	return n
}

// Err joins the errors of failed documents, or returns nil.
func (r Report) Err() error {
	var errs []error
	for _, d := range r.Documents {
		if d.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.DocumentID, d.Err))
		}
	}
	return errors.Join(errs...)
}

// Pipeline ingests documents one at a time. A document is stored in full
// with a single Add, or not at all; a document whose first chunk already
// exists is skipped.
type Pipeline struct {
	chunker  domain.Chunker
	embedder embedding.Embedder
	store    vectorstore.Storage
	logger   *zap.Logger
}

func NewPipeline(chunker domain.Chunker, embedder embedding.Embedder, store vectorstore.Storage, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{chunker: chunker, embedder: embedder, store: store, logger: logger}
}

// IngestDir ingests every *.txt file directly inside dir, sorted by name.
// Only a listing failure or cancellation returns an error; per-document
// failures are recorded in the report.
func (p *Pipeline) IngestDir(ctx context.Context, dir string) (Report, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return Report{}, domain.Wrap(domain.ErrIO, err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !isText(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	sort.Strings(paths)
	return p.run(ctx, paths)
}

// IngestFiles ingests the given paths. Each entry may be a glob pattern,
// with ** matching any number of directories. A pattern that matches nothing
// is dropped; a plain path is kept so that a missing file is reported as a
// failed document. Non-.txt files are ignored.
func (p *Pipeline) IngestFiles(ctx context.Context, patterns []string) (Report, error) {
	paths, err := ExpandPatterns(patterns)
	if err != nil {
		return Report{}, err
	}
	return p.run(ctx, paths)
}

// ExpandPatterns resolves patterns to a deduplicated list of .txt paths,
// each pattern's matches sorted by name.
func ExpandPatterns(patterns []string) ([]string, error) {
	var paths []string
	seen := map[string]struct{}{}
	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", pattern, err)
		}
		if len(matches) == 0 && !hasMeta(pattern) {
			matches = []string{pattern}
		}
		sort.Strings(matches)
		for _, m := range matches {
			if !isText(m) {
				continue
			}
			if _, dup := seen[m]; dup {
				continue
			}
			seen[m] = struct{}{}
			paths = append(paths, m)
		}
	}
	return paths, nil
}

// hasMeta reports whether pattern uses any doublestar syntax.
func hasMeta(pattern string) bool {
	return strings.ContainsAny(filepath.ToSlash(pattern), "*?[{")
}

func (p *Pipeline) run(ctx context.Context, paths []string) (Report, error) {
	var report Report
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res := p.IngestDocument(ctx, path)
		report.Documents = append(report.Documents, res)
	}
	p.logger.Info("ingestion finished",
		zap.Int("documents", len(report.Documents)),
		zap.Int("stored", report.Count(Stored)),
		zap.Int("skipped", report.Count(Skipped)),
		zap.Int("failed", report.Count(Failed)))
	return report, nil
}

// IngestDocument runs one file through probe, read, split, embed and store.
func (p *Pipeline) IngestDocument(ctx context.Context, path string) DocumentResult {
	res := DocumentResult{DocumentID: DocumentID(path), Path: path, State: NotStarted}
	log := p.logger.With(zap.String("document_id", res.DocumentID), zap.String("path", path))

	fail := func(kind error, err error) DocumentResult {
		res.State = Failed
		res.Err = domain.Wrap(kind, err)
		log.Error("document ingestion failed", zap.Error(res.Err))
		return res
	}

	existing, err := p.store.Get(ctx, vectorstore.GetRequest{IDs: []string{domain.ChunkID(res.DocumentID, 0)}})
	if err != nil {
		return fail(domain.ErrStoreQuery, err)
	}
	res.State = CheckedExisting
	if len(existing) > 0 {
		res.State = Skipped
		log.Info("document already indexed, skipping")
		return res
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fail(domain.ErrIO, err)
	}
	chunks, err := p.chunker.Chunk(domain.Document{ID: res.DocumentID, Path: path, Content: string(data)})
	if err != nil {
		return fail(domain.ErrInvalidConfig, err)
	}
	res.State = Split
	res.Chunks = len(chunks)
	if len(chunks) == 0 {
		// nothing to store; the document will be probed again next run
		res.State = Stored
		log.Warn("document has no text")
		return res
	}

	batch := vectorstore.Batch{
		IDs:        make([]string, len(chunks)),
		Documents:  make([]string, len(chunks)),
		Embeddings: make([][]float32, len(chunks)),
		Metadatas:  make([]map[string]string, len(chunks)),
	}
	for i, ch := range chunks {
		vec, err := p.embedder.Embed(ctx, ch.Text, domain.TaskRetrievalDocument)
		if err != nil {
			return fail(domain.ErrEmbeddingService, err)
		}
		batch.IDs[i] = ch.ID
		batch.Documents[i] = ch.Text
		batch.Embeddings[i] = vec
		batch.Metadatas[i] = map[string]string{domain.MetadataDocumentID: res.DocumentID}
	}
	res.State = Embedded

	records, err := batch.Records()
	if err != nil {
		return fail(domain.ErrStoreWrite, err)
	}
	if err := p.store.Add(ctx, records); err != nil {
		return fail(domain.ErrStoreWrite, err)
	}
	res.State = Stored
	log.Info("document stored", zap.Int("chunks", len(chunks)))
	return res
}

// DocumentID is the file's base name without its extension.
func DocumentID(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func isText(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".txt")
}
