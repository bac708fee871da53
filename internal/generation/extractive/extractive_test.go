package extractive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragdocs/internal/generation"
)

func TestGenerator_PicksMatchingSentences(t *testing.T) {
	g := NewGenerator(1)
	out, err := g.Generate(context.Background(), generation.Request{
		Query:   "返品は何日以内ですか",
		Context: "営業時間は平日の9時から18時です。\n返品は購入から30日以内に受け付けます。送料は無料です。",
	})
	require.NoError(t, err)
	assert.Equal(t, "返品は購入から30日以内に受け付けます。", out)
}

func TestGenerator_KeepsExcerptOrder(t *testing.T) {
	g := NewGenerator(2)
	out, err := g.Generate(context.Background(), generation.Request{
		Query:   "refunds and shipping",
		Context: "Shipping is free. Stores open at nine. Refunds take a week.",
	})
	require.NoError(t, err)
	assert.Equal(t, "Shipping is free. Refunds take a week.", out)
}

func TestGenerator_NotFound(t *testing.T) {
	g := NewGenerator(0)
	out, err := g.Generate(context.Background(), generation.Request{Query: "warranty", Context: ""})
	require.NoError(t, err)
	assert.Equal(t, generation.NotFound, out)

	out, err = g.Generate(context.Background(), generation.Request{Query: "warranty", Context: "Shipping is free."})
	require.NoError(t, err)
	assert.Equal(t, generation.NotFound, out)
	assert.Equal(t, "extractive", g.Name())
}
