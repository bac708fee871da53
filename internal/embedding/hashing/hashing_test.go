package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragdocs/internal/domain"
	"ragdocs/internal/vectorstore"
)

func TestEmbedder_Deterministic(t *testing.T) {
	e := NewEmbedder(64)
	a, err := e.Embed(context.Background(), "The return policy allows refunds.", domain.TaskRetrievalDocument)
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), "The return policy allows refunds.", domain.TaskRetrievalQuery)
	require.NoError(t, err)
	assert.Equal(t, a, b)
	assert.Len(t, a, 64)

	var norm float64
	for _, v := range a {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1, math.Sqrt(norm), 1e-5)
}

func TestEmbedder_EmptyTextIsZeroVector(t *testing.T) {
	e := NewEmbedder(0)
	v, err := e.Embed(context.Background(), "   ", domain.TaskRetrievalQuery)
	require.NoError(t, err)
	assert.Len(t, v, DefaultDimension)
	for _, x := range v {
		assert.Zero(t, x)
	}
}

func TestEmbedder_SimilarTextIsCloser(t *testing.T) {
	e := NewEmbedder(256)
	ctx := context.Background()
	doc, _ := e.Embed(ctx, "返品は購入から30日以内に受け付けます。", domain.TaskRetrievalDocument)
	other, _ := e.Embed(ctx, "営業時間は平日の9時から18時です。", domain.TaskRetrievalDocument)
	query, _ := e.Embed(ctx, "返品は何日以内ですか", domain.TaskRetrievalQuery)

	assert.Less(t, vectorstore.CosineDistance(query, doc), vectorstore.CosineDistance(query, other))
}

func TestEmbedder_Tokens(t *testing.T) {
	e := NewEmbedder(16)
	assert.Equal(t, []string{"return", "policy"}, e.Tokens("The Return policy"))
	assert.Equal(t, []string{"返品", "品ポ", "ポリ", "リシ", "シー"}, e.Tokens("返品ポリシー"))
	assert.Equal(t, []string{"猫"}, e.Tokens("猫"))
}
