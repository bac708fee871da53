// Package storetest holds behaviour checks shared by every vectorstore backend.
package storetest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragdocs/internal/domain"
	"ragdocs/internal/vectorstore"
)

// Record builds a chunk record of document doc with a 3-dimensional embedding.
func Record(doc string, index int, text string, embedding ...float32) domain.Record {
	return domain.Record{
		ID:        domain.ChunkID(doc, index),
		Document:  text,
		Embedding: embedding,
		Metadata:  map[string]string{domain.MetadataDocumentID: doc},
	}
}

// Run exercises the Storage contract. newStore must return an empty store.
func Run(t *testing.T, newStore func(t *testing.T) vectorstore.Storage) {
	t.Helper()
	ctx := context.Background()

	t.Run("empty store", func(t *testing.T) {
		s := newStore(t)
		res, err := s.Query(ctx, []float32{1, 0, 0}, 3)
		require.NoError(t, err)
		assert.Empty(t, res)

		got, err := s.Get(ctx, vectorstore.GetRequest{IDs: []string{"missing_chunk_0"}})
		require.NoError(t, err)
		assert.Empty(t, got)

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("add get query", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Add(ctx, []domain.Record{
			Record("a", 0, "alpha zero", 1, 0, 0),
			Record("a", 1, "alpha one", 0.9, 0.1, 0),
			Record("b", 0, "beta zero", 0, 1, 0),
		}))

		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		got, err := s.Get(ctx, vectorstore.GetRequest{IDs: []string{"a_chunk_1"}})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "alpha one", got[0].Document)
		assert.Equal(t, "a", got[0].DocumentID())

		got, err = s.Get(ctx, vectorstore.GetRequest{Where: map[string]string{domain.MetadataDocumentID: "a"}})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a_chunk_0", "a_chunk_1"}, ids(got))

		got, err = s.Get(ctx, vectorstore.GetRequest{Where: map[string]string{domain.MetadataDocumentID: "zzz"}})
		require.NoError(t, err)
		assert.Empty(t, got)

		res, err := s.Query(ctx, []float32{1, 0, 0}, 2)
		require.NoError(t, err)
		require.Len(t, res, 2)
		assert.Equal(t, "a_chunk_0", res[0].ID)
		assert.Equal(t, "a_chunk_1", res[1].ID)
		assert.LessOrEqual(t, res[0].Distance, res[1].Distance)
		assert.InDelta(t, 0, res[0].Distance, 1e-5)
	})

	t.Run("top_n is clamped", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Add(ctx, []domain.Record{Record("a", 0, "only", 1, 0, 0)}))
		res, err := s.Query(ctx, []float32{0, 1, 0}, 10)
		require.NoError(t, err)
		assert.Len(t, res, 1)
	})

	t.Run("non-positive top_n", func(t *testing.T) {
		s := newStore(t)
		_, err := s.Query(ctx, []float32{1, 0, 0}, 0)
		assert.ErrorIs(t, err, domain.ErrStoreQuery)
	})

	t.Run("query dimension mismatch", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Add(ctx, []domain.Record{Record("a", 0, "x", 1, 0, 0)}))
		_, err := s.Query(ctx, []float32{1, 0}, 1)
		assert.ErrorIs(t, err, domain.ErrStoreQuery)
	})

	t.Run("repeated ids are returned once", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Add(ctx, []domain.Record{
			Record("a", 0, "zero", 1, 0, 0),
			Record("a", 1, "one", 0, 1, 0),
		}))
		got, err := s.Get(ctx, vectorstore.GetRequest{IDs: []string{"a_chunk_1", "a_chunk_0", "a_chunk_1"}})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a_chunk_0", "a_chunk_1"}, ids(got))
	})

	t.Run("duplicate id is rejected", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Add(ctx, []domain.Record{Record("a", 0, "first", 1, 0, 0)}))
		err := s.Add(ctx, []domain.Record{Record("a", 0, "again", 1, 0, 0)})
		assert.ErrorIs(t, err, domain.ErrStoreWrite)

		got, err := s.Get(ctx, vectorstore.GetRequest{IDs: []string{"a_chunk_0"}})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "first", got[0].Document)
	})

	t.Run("clear", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Add(ctx, []domain.Record{Record("a", 0, "x", 1, 0, 0)}))
		require.NoError(t, s.Clear(ctx))
		n, err := s.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func ids(records []domain.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}
