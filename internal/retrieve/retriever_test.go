package retrieve

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragdocs/internal/domain"
	"ragdocs/internal/vectorstore/memory"
	"ragdocs/internal/vectorstore/storetest"
)

// axisEmbedder maps known texts to fixed vectors.
type axisEmbedder struct {
	vectors map[string][]float32
	tasks   []domain.TaskType
}

func (a *axisEmbedder) Name() string { return "axis" }

func (a *axisEmbedder) Embed(_ context.Context, text string, task domain.TaskType) ([]float32, error) {
	a.tasks = append(a.tasks, task)
	v, ok := a.vectors[text]
	if !ok {
		return nil, errors.New("unknown text")
	}
	return v, nil
}

func seed(t *testing.T) *memory.Storage {
	t.Helper()
	s := memory.NewStorage()
	// chunks are added out of order to exercise suffix sorting
	require.NoError(t, s.Add(context.Background(), []domain.Record{
		storetest.Record("D1", 10, "D1 tail.", 0.9, 0.1, 0),
		storetest.Record("D1", 2, "D1 middle.", 0.1, 0.9, 0),
		storetest.Record("D1", 0, "D1 head.", 1, 0, 0),
		storetest.Record("D2", 0, "D2 only.", 0.95, 0.05, 0),
		storetest.Record("D3", 0, "D3 unrelated.", 0, 0, 1),
		storetest.Record("D3", 1, "D3 more.", 0, 0.1, 1),
	}))
	return s
}

func TestRetrieve_Completeness(t *testing.T) {
	emb := &axisEmbedder{vectors: map[string][]float32{"question": {1, 0, 0}}}
	r := NewRetriever(emb, seed(t), 3, nil)

	res, err := r.Retrieve(context.Background(), "  question ")
	require.NoError(t, err)
	assert.Equal(t, "question", res.Query)
	assert.Equal(t, []domain.TaskType{domain.TaskRetrievalQuery}, emb.tasks)
	require.Len(t, res.Hits, 3)

	require.Len(t, res.Documents, 2)
	assert.Equal(t, "D1", res.Documents[0].DocumentID)
	assert.Equal(t, "D1 head.\nD1 middle.\nD1 tail.", res.Documents[0].Text)
	assert.Len(t, res.Documents[0].Chunks, 3)
	assert.Equal(t, "D2", res.Documents[1].DocumentID)
	assert.Equal(t, "D1 head.\nD1 middle.\nD1 tail.\n\nD2 only.", res.Context())
	assert.NotContains(t, res.Context(), "D3")
}

func TestRetrieve_EmptyQuery(t *testing.T) {
	emb := &axisEmbedder{}
	r := NewRetriever(emb, seed(t), 0, nil)
	_, err := r.Retrieve(context.Background(), " \n\t")
	assert.ErrorIs(t, err, domain.ErrInvalidQuery)
	assert.Empty(t, emb.tasks, "empty query must not reach the embedder")
}

func TestRetrieve_EmptyStore(t *testing.T) {
	emb := &axisEmbedder{vectors: map[string][]float32{"q": {1, 0}}}
	r := NewRetriever(emb, memory.NewStorage(), 3, nil)
	res, err := r.Retrieve(context.Background(), "q")
	require.NoError(t, err)
	assert.Empty(t, res.Hits)
	assert.Empty(t, res.Documents)
	assert.Equal(t, "", res.Context())
}

func TestRetrieve_EmbedFailure(t *testing.T) {
	r := NewRetriever(&axisEmbedder{}, seed(t), 3, nil)
	_, err := r.Retrieve(context.Background(), "unknown")
	assert.ErrorIs(t, err, domain.ErrEmbeddingService)
}

func TestSortChunks(t *testing.T) {
	recs := []domain.Record{{ID: "d_chunk_10"}, {ID: "other"}, {ID: "d_chunk_9"}, {ID: "d_chunk_0"}}
	SortChunks(recs)
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ID
	}
	assert.Equal(t, []string{"d_chunk_0", "d_chunk_9", "d_chunk_10", "other"}, ids)
}
