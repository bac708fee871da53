// Package hashing is an offline embedder: hashed bag of words with
// sublinear term frequency. It needs no corpus preparation, so vectors stay
// comparable across ingestion runs.
package hashing

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"

	"ragdocs/internal/domain"
	"ragdocs/internal/tokenize"
)

const DefaultDimension = 512

// Embedder hashes tokens into a fixed number of buckets.
// Runs of Han, Hiragana or Katakana are split into character bigrams.
type Embedder struct {
	dimension int
	tokenizer *tokenize.Tokenizer
}

// NewEmbedder creates an embedder producing vectors of the given dimension.
func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{
		dimension: dimension,
		tokenizer: tokenize.New(),
	}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return fmt.Sprintf("hashing:%d", e.dimension) }

// Embed ignores the task type: the encoding is symmetric.
func (e *Embedder) Embed(_ context.Context, text string, _ domain.TaskType) ([]float32, error) {
	tf := make(map[int]int)
	for _, tok := range e.Tokens(text) {
		tf[e.bucket(tok)]++
	}
	vec := make([]float64, e.dimension)
	for idx, count := range tf {
		vec[idx] = 1 + math.Log(float64(count))
	}
	// L2 normalize
	norm := 0.0
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	out := make([]float32, e.dimension)
	if norm > 0 {
		for i, v := range vec {
			out[i] = float32(v / norm)
		}
	}
	return out, nil
}

// Tokens returns the terms Embed hashes.
func (e *Embedder) Tokens(text string) []string {
	return e.tokenizer.Tokens(text)
}

func (e *Embedder) bucket(token string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return int(h.Sum32() % uint32(e.dimension))
}
