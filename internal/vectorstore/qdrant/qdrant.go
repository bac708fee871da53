package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"ragdocs/internal/domain"
	"ragdocs/internal/vectorstore"
)

const scrollPage = 256

// errNotFound marks a 404 from Qdrant, i.e. a missing collection.
var errNotFound = errors.New("qdrant: not found")

// Storage is a minimal REST client to Qdrant.
// It assumes cosine distance and creates the collection on first write.
// Point ids are UUIDv5 of the record id; the record id itself lives in the payload.
type Storage struct {
	url        string
	apiKey     string
	collection string
	client     *http.Client

	mu    sync.Mutex
	ready bool
}

type Config struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
}

func NewStorage(cfg Config) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	if cfg.Collection == "" {
		cfg.Collection = vectorstore.DefaultCollection
	}
	return &Storage{
		url:        cfg.URL,
		apiKey:     cfg.APIKey,
		collection: cfg.Collection,
		client:     &http.Client{Timeout: timeout},
	}
}

type point struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
	Score   float64        `json:"score,omitempty"`
}

func (s *Storage) pointID(id string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(s.collection+"/"+id)).String()
}

func (s *Storage) ensureCollection(ctx context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}
	err := s.do(ctx, http.MethodGet, s.collectionURL(""), nil, nil)
	if errors.Is(err, errNotFound) {
		body := map[string]any{
			"vectors": map[string]any{
				"size":     dimension,
				"distance": "Cosine",
			},
		}
		err = s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil)
	}
	if err != nil {
		return err
	}
	s.ready = true
	return nil
}

func (s *Storage) Add(ctx context.Context, records []domain.Record) error {
	if err := vectorstore.ValidateRecords(records); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	if err := s.ensureCollection(ctx, len(records[0].Embedding)); err != nil {
		return domain.Wrap(domain.ErrStoreWrite, err)
	}
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ID
	}
	existing, err := s.retrieve(ctx, ids, false)
	if err != nil {
		return domain.Wrap(domain.ErrStoreWrite, err)
	}
	if len(existing) > 0 {
		return fmt.Errorf("%w: id %q already exists", domain.ErrStoreWrite, existing[0].ID)
	}

	points := make([]point, len(records))
	for i, r := range records {
		meta := make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			meta[k] = v
		}
		points[i] = point{
			ID:     s.pointID(r.ID),
			Vector: r.Embedding,
			Payload: map[string]any{
				"record_id": r.ID,
				"document":  r.Document,
				"metadata":  meta,
			},
		}
	}
	body := map[string]any{"points": points}
	if err := s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), body, nil); err != nil {
		return domain.Wrap(domain.ErrStoreWrite, err)
	}
	return nil
}

func (s *Storage) Get(ctx context.Context, req vectorstore.GetRequest) ([]domain.Record, error) {
	var (
		out []domain.Record
		err error
	)
	if len(req.IDs) > 0 {
		out, err = s.retrieve(ctx, vectorstore.UniqueIDs(req.IDs), true)
	} else {
		out, err = s.scroll(ctx, req.Where)
	}
	if errors.Is(err, errNotFound) {
		return []domain.Record{}, nil
	}
	if err != nil {
		return nil, domain.Wrap(domain.ErrStoreQuery, err)
	}
	filtered := out[:0]
	for _, r := range out {
		if vectorstore.MatchesWhere(r.Metadata, req.Where) {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

func (s *Storage) Query(ctx context.Context, embedding []float32, topN int) ([]domain.Record, error) {
	if err := vectorstore.CheckTopN(topN); err != nil {
		return nil, err
	}
	req := map[string]any{
		"vector":       embedding,
		"limit":        topN,
		"with_payload": true,
		"with_vector":  true,
	}
	var resp struct {
		Result []point `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), req, &resp)
	if errors.Is(err, errNotFound) {
		return []domain.Record{}, nil
	}
	if err != nil {
		return nil, domain.Wrap(domain.ErrStoreQuery, err)
	}
	out := make([]domain.Record, 0, len(resp.Result))
	for _, p := range resp.Result {
		r := toRecord(p)
		r.Distance = 1 - p.Score
		out = append(out, r)
	}
	return out, nil
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	var resp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	err := s.do(ctx, http.MethodPost, s.collectionURL("/points/count"), map[string]any{"exact": true}, &resp)
	if errors.Is(err, errNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, domain.Wrap(domain.ErrStoreQuery, err)
	}
	return resp.Result.Count, nil
}

// Clear drops the collection; it is recreated on the next Add.
func (s *Storage) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.do(ctx, http.MethodDelete, s.collectionURL(""), nil, nil)
	if err != nil && !errors.Is(err, errNotFound) {
		return domain.Wrap(domain.ErrStoreWrite, err)
	}
	s.ready = false
	return nil
}

func (s *Storage) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *Storage) retrieve(ctx context.Context, ids []string, withVector bool) ([]domain.Record, error) {
	pointIDs := make([]string, len(ids))
	for i, id := range ids {
		pointIDs[i] = s.pointID(id)
	}
	req := map[string]any{
		"ids":          pointIDs,
		"with_payload": true,
		"with_vector":  withVector,
	}
	var resp struct {
		Result []point `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, s.collectionURL("/points"), req, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Record, 0, len(resp.Result))
	for _, p := range resp.Result {
		out = append(out, toRecord(p))
	}
	return out, nil
}

func (s *Storage) scroll(ctx context.Context, where map[string]string) ([]domain.Record, error) {
	must := make([]map[string]any, 0, len(where))
	for k, v := range where {
		must = append(must, map[string]any{
			"key":   "metadata." + k,
			"match": map[string]any{"value": v},
		})
	}
	out := []domain.Record{}
	var offset any
	for {
		req := map[string]any{
			"limit":        scrollPage,
			"with_payload": true,
			"with_vector":  true,
		}
		if len(must) > 0 {
			req["filter"] = map[string]any{"must": must}
		}
		if offset != nil {
			req["offset"] = offset
		}
		var resp struct {
			Result struct {
				Points         []point `json:"points"`
				NextPageOffset any     `json:"next_page_offset"`
			} `json:"result"`
		}
		if err := s.do(ctx, http.MethodPost, s.collectionURL("/points/scroll"), req, &resp); err != nil {
			return nil, err
		}
		for _, p := range resp.Result.Points {
			out = append(out, toRecord(p))
		}
		if resp.Result.NextPageOffset == nil {
			return out, nil
		}
		offset = resp.Result.NextPageOffset
	}
}

func toRecord(p point) domain.Record {
	r := domain.Record{Embedding: p.Vector, Metadata: map[string]string{}}
	if v, ok := p.Payload["record_id"].(string); ok {
		r.ID = v
	}
	if v, ok := p.Payload["document"].(string); ok {
		r.Document = v
	}
	if meta, ok := p.Payload["metadata"].(map[string]any); ok {
		for k, v := range meta {
			if s, ok := v.(string); ok {
				r.Metadata[k] = s
			}
		}
	}
	return r
}

func (s *Storage) collectionURL(suffix string) string {
	return fmt.Sprintf("%s/collections/%s%s", s.url, s.collection, suffix)
}

func (s *Storage) do(ctx context.Context, method, url string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s %s", errNotFound, method, url)
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant %s %s failed: %s", method, url, resp.Status)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
