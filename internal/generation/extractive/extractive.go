// Package extractive answers from the retrieved excerpt without a language
// model: it picks the excerpt sentences that best match the question.
package extractive

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"

	"ragdocs/internal/generation"
	"ragdocs/internal/tokenize"
)

const DefaultMaxSentences = 3

var sentencePattern = regexp.MustCompile(`[^.!?。！？\n]+[.!?。！？]?`)

// Generator ranks excerpt sentences by query overlap, then by word frequency
// across the excerpt.
type Generator struct {
	maxSentences int
	tokenizer    *tokenize.Tokenizer
}

func NewGenerator(maxSentences int) *Generator {
	if maxSentences <= 0 {
		maxSentences = DefaultMaxSentences
	}
	return &Generator{maxSentences: maxSentences, tokenizer: tokenize.New()}
}

func (g *Generator) Name() string { return "extractive" }

// Generate returns generation.NotFound when no excerpt sentence shares a
// term with the query.
func (g *Generator) Generate(_ context.Context, req generation.Request) (string, error) {
	var sentences []string
	for _, s := range sentencePattern.FindAllString(req.Context, -1) {
		if s = strings.TrimSpace(s); s != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) == 0 {
		return generation.NotFound, nil
	}

	query := map[string]struct{}{}
	for _, tok := range g.tokenizer.Tokens(req.Query) {
		query[tok] = struct{}{}
	}

	tokens := make([][]string, len(sentences))
	freq := map[string]float64{}
	for i, sent := range sentences {
		tokens[i] = g.tokenizer.Tokens(sent)
		for _, tok := range tokens[i] {
			freq[tok]++
		}
	}
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}

	type scored struct {
		idx     int
		overlap int
		score   float64
	}
	scores := make([]scored, 0, len(sentences))
	for i, toks := range tokens {
		s := scored{idx: i}
		seen := map[string]struct{}{}
		for _, tok := range toks {
			s.score += freq[tok]
			if _, ok := query[tok]; ok {
				if _, dup := seen[tok]; !dup {
					seen[tok] = struct{}{}
					s.overlap++
				}
			}
		}
		// Normalize by sentence length to avoid bias
		if l := float64(len(toks)); l > 0 {
			s.score /= math.Sqrt(l)
		}
		if s.overlap > 0 {
			scores = append(scores, s)
		}
	}
	if len(scores) == 0 {
		return generation.NotFound, nil
	}
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].overlap != scores[j].overlap {
			return scores[i].overlap > scores[j].overlap
		}
		return scores[i].score > scores[j].score
	})
	n := min(g.maxSentences, len(scores))
	// Keep excerpt order among selected
	selected := make([]int, n)
	for i := range selected {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, n)
	for i, idx := range selected {
		out[i] = sentences[idx]
	}
	return strings.Join(out, " "), nil
}
