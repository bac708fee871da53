// Package tokenize splits text into lowercase terms for the offline
// embedder and the extractive generator.
package tokenize

import (
	"regexp"
	"strings"
	"unicode"
)

var tokenPattern = regexp.MustCompile(`[\p{L}\p{N}]+(?:['’][\p{L}\p{N}]+)*`)

// Tokenizer lowercases text, drops stopwords and splits runs of Han,
// Hiragana or Katakana into character bigrams.
type Tokenizer struct {
	stopwords map[string]struct{}
}

func New() *Tokenizer {
	return &Tokenizer{stopwords: defaultStopwords()}
}

func (t *Tokenizer) Tokens(text string) []string {
	raw := tokenPattern.FindAllString(strings.ToLower(text), -1)
	var out []string
	for _, tok := range raw {
		if _, isStop := t.stopwords[tok]; isStop {
			continue
		}
		if isCJK(tok) {
			out = append(out, bigrams(tok)...)
			continue
		}
		out = append(out, tok)
	}
	return out
}

func isCJK(s string) bool {
	for _, r := range s {
		if unicode.In(r, unicode.Han, unicode.Hiragana, unicode.Katakana) {
			return true
		}
	}
	return false
}

func bigrams(s string) []string {
	runes := []rune(s)
	if len(runes) < 2 {
		return []string{s}
	}
	out := make([]string, 0, len(runes)-1)
	for i := 0; i+1 < len(runes); i++ {
		out = append(out, string(runes[i:i+2]))
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
