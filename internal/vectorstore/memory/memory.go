package memory

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"ragdocs/internal/domain"
	"ragdocs/internal/vectorstore"
)

// Storage is an in-memory collection using brute-force cosine distance.
type Storage struct {
	mu      sync.RWMutex
	records map[string]domain.Record
	// insertion order keeps Get results stable
	order []string
}

func NewStorage() *Storage {
	return &Storage{records: make(map[string]domain.Record)}
}

func (s *Storage) Add(_ context.Context, records []domain.Record) error {
	if err := vectorstore.ValidateRecords(records); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		if _, ok := s.records[r.ID]; ok {
			return fmt.Errorf("%w: id %q already exists", domain.ErrStoreWrite, r.ID)
		}
	}
	for _, r := range records {
		s.records[r.ID] = clone(r)
		s.order = append(s.order, r.ID)
	}
	return nil
}

func (s *Storage) Get(_ context.Context, req vectorstore.GetRequest) ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.order
	if len(req.IDs) > 0 {
		ids = vectorstore.UniqueIDs(req.IDs)
	}
	out := []domain.Record{}
	for _, id := range ids {
		r, ok := s.records[id]
		if !ok || !vectorstore.MatchesWhere(r.Metadata, req.Where) {
			continue
		}
		out = append(out, clone(r))
	}
	return out, nil
}

func (s *Storage) Query(_ context.Context, embedding []float32, topN int) ([]domain.Record, error) {
	if err := vectorstore.CheckTopN(topN); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	candidates := make([]domain.Record, 0, len(s.order))
	for _, id := range s.order {
		candidates = append(candidates, clone(s.records[id]))
	}
	return vectorstore.Nearest(candidates, embedding, topN)
}

func (s *Storage) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

func (s *Storage) Clear(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]domain.Record)
	s.order = nil
	return nil
}

func (s *Storage) Close() error { return nil }

func clone(r domain.Record) domain.Record {
	r.Embedding = slices.Clone(r.Embedding)
	r.Metadata = maps.Clone(r.Metadata)
	return r
}
