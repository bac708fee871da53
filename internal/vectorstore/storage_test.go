package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragdocs/internal/domain"
)

func TestBatch_Records(t *testing.T) {
	t.Run("length mismatch", func(t *testing.T) {
		_, err := Batch{
			IDs:        []string{"a_chunk_0", "a_chunk_1"},
			Documents:  []string{"x"},
			Embeddings: [][]float32{{1}, {2}},
			Metadatas:  []map[string]string{{}, {}},
		}.Records()
		assert.ErrorIs(t, err, domain.ErrStoreWrite)
	})

	t.Run("parallel columns", func(t *testing.T) {
		recs, err := Batch{
			IDs:        []string{"a_chunk_0"},
			Documents:  []string{"x"},
			Embeddings: [][]float32{{1, 2}},
			Metadatas:  []map[string]string{{domain.MetadataDocumentID: "a"}},
		}.Records()
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "a", recs[0].DocumentID())
		assert.Equal(t, []float32{1, 2}, recs[0].Embedding)
	})
}

func TestValidateRecords(t *testing.T) {
	meta := map[string]string{domain.MetadataDocumentID: "a"}
	tests := []struct {
		name    string
		records []domain.Record
		wantErr bool
	}{
		{"ok", []domain.Record{{ID: "a_chunk_0", Embedding: []float32{1}, Metadata: meta}}, false},
		{"empty id", []domain.Record{{Embedding: []float32{1}, Metadata: meta}}, true},
		{"duplicate", []domain.Record{
			{ID: "a_chunk_0", Embedding: []float32{1}, Metadata: meta},
			{ID: "a_chunk_0", Embedding: []float32{1}, Metadata: meta},
		}, true},
		{"no embedding", []domain.Record{{ID: "a_chunk_0", Metadata: meta}}, true},
		{"dimension mismatch", []domain.Record{
			{ID: "a_chunk_0", Embedding: []float32{1}, Metadata: meta},
			{ID: "a_chunk_1", Embedding: []float32{1, 2}, Metadata: meta},
		}, true},
		{"missing document_id", []domain.Record{{ID: "a_chunk_0", Embedding: []float32{1}}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRecords(tt.records)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrStoreWrite)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestCosineDistance(t *testing.T) {
	assert.InDelta(t, 0, CosineDistance([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 1, CosineDistance([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, 2, CosineDistance([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 1.0, CosineDistance([]float32{0, 0}, []float32{1, 0}))
}

func TestNearest_TiesBrokenByID(t *testing.T) {
	recs := []domain.Record{
		{ID: "b", Embedding: []float32{1, 0}},
		{ID: "a", Embedding: []float32{1, 0}},
		{ID: "c", Embedding: []float32{0, 1}},
	}
	got, err := Nearest(recs, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
}

func TestUniqueIDs(t *testing.T) {
	assert.Equal(t, []string{"b", "a"}, UniqueIDs([]string{"b", "a", "b", "a"}))
	assert.Empty(t, UniqueIDs(nil))
}

func TestNearest_DimensionMismatch(t *testing.T) {
	recs := []domain.Record{{ID: "a", Embedding: []float32{1, 0, 0}}}
	_, err := Nearest(recs, []float32{1, 0}, 1)
	assert.ErrorIs(t, err, domain.ErrStoreQuery)

	got, err := Nearest(nil, []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Empty(t, got)
}
