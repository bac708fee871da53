package chunker

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"ragdocs/internal/domain"
)

const (
	DefaultMaxLen   = 400
	DefaultOverlap  = 50
	DefaultBoundary = "。"
)

// SentenceChunker packs whole sentences into chunks of at most maxLen runes.
// Each chunk after the first starts with the last overlap runes of the
// buffer that preceded it.
type SentenceChunker struct {
	maxLen   int
	overlap  int
	sentence *regexp.Regexp
}

// NewSentenceChunker validates the limits and compiles the sentence rule.
// boundary is the set of runes that terminate a sentence.
func NewSentenceChunker(maxLen, overlap int, boundary string) (*SentenceChunker, error) {
	if maxLen <= 0 {
		return nil, fmt.Errorf("%w: max_len must be positive, got %d", domain.ErrInvalidConfig, maxLen)
	}
	if overlap < 0 {
		return nil, fmt.Errorf("%w: overlap must not be negative, got %d", domain.ErrInvalidConfig, overlap)
	}
	if overlap >= maxLen {
		return nil, fmt.Errorf("%w: overlap (%d) must be less than max_len (%d)", domain.ErrInvalidConfig, overlap, maxLen)
	}
	re, err := sentencePattern(boundary)
	if err != nil {
		return nil, err
	}
	return &SentenceChunker{maxLen: maxLen, overlap: overlap, sentence: re}, nil
}

// Split is the functional form of SentenceChunker.Split.
func Split(text string, maxLen, overlap int, boundary string) ([]string, error) {
	c, err := NewSentenceChunker(maxLen, overlap, boundary)
	if err != nil {
		return nil, err
	}
	return c.Split(text), nil
}

// Chunk splits the document and assigns "<document>_chunk_<i>" ids.
func (c *SentenceChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	texts := c.Split(document.Content)
	chunks := make([]domain.Chunk, len(texts))
	for i, text := range texts {
		chunks[i] = domain.Chunk{
			DocumentID: document.ID,
			ID:         domain.ChunkID(document.ID, i),
			Text:       text,
			Index:      i,
		}
	}
	return chunks, nil
}

// Split returns the ordered chunk texts of text. Output depends only on the
// input and the chunker's limits.
func (c *SentenceChunker) Split(text string) []string {
	var (
		chunks []string
		buf    strings.Builder
		bufLen int
	)
	emit := func() {
		if trimmed := strings.TrimSpace(buf.String()); trimmed != "" {
			chunks = append(chunks, trimmed)
		}
	}
	for _, sentence := range c.Sentences(text) {
		n := utf8.RuneCountInString(sentence)
		if bufLen+n <= c.maxLen {
			buf.WriteString(sentence)
			bufLen += n
			continue
		}
		// An oversized first sentence has nothing before it to emit or carry.
		if bufLen == 0 {
			buf.WriteString(sentence)
			bufLen = n
			continue
		}
		emit()
		tail := lastRunes(buf.String(), c.overlap)
		buf.Reset()
		buf.WriteString(tail)
		buf.WriteString(sentence)
		bufLen = utf8.RuneCountInString(tail) + n
	}
	if bufLen > 0 {
		emit()
	}
	return chunks
}

// Sentences segments text keeping each terminator with its sentence. Text
// after the last terminator forms a final sentence.
func (c *SentenceChunker) Sentences(text string) []string {
	if text == "" {
		return nil
	}
	locs := c.sentence.FindAllStringIndex(text, -1)
	out := make([]string, 0, len(locs)+1)
	end := 0
	for _, loc := range locs {
		out = append(out, text[loc[0]:loc[1]])
		end = loc[1]
	}
	if end < len(text) {
		out = append(out, text[end:])
	}
	return out
}

func sentencePattern(boundary string) (*regexp.Regexp, error) {
	if boundary == "" {
		return nil, fmt.Errorf("%w: sentence boundary must not be empty", domain.ErrInvalidConfig)
	}
	var class strings.Builder
	for _, r := range boundary {
		fmt.Fprintf(&class, `\x{%x}`, r)
	}
	set := class.String()
	return regexp.Compile(`(?s)[^` + set + `]*[` + set + `]`)
}

func lastRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[len(runes)-n:])
}
