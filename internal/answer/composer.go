// Package answer composes grounded answers from retrieved context.
package answer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"ragdocs/internal/domain"
	"ragdocs/internal/generation"
	"ragdocs/internal/retrieve"
)

const promptTemplate = `The following is an excerpt from the internal knowledge base. Answer the user's question based on it.

[Knowledge base excerpt]
%s

[User question]
%s

[Instructions]
- Answer strictly from the knowledge base excerpt.
- If the answer is not stated in the excerpt, reply "%s".
`

// BuildPrompt renders the fixed answer prompt for a question and its context.
func BuildPrompt(query, context string) string {
	return fmt.Sprintf(promptTemplate, strings.TrimSpace(context), strings.TrimSpace(query), generation.NotFound)
}

// Retriever is the retrieval step the composer depends on.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (retrieve.Result, error)
}

// Answer is a generated reply and the retrieval it was grounded on.
type Answer struct {
	Text      string
	Retrieval retrieve.Result
}

// Sources lists the document ids the answer drew from.
func (a Answer) Sources() []string {
	ids := make([]string, len(a.Retrieval.Documents))
	for i, d := range a.Retrieval.Documents {
		ids[i] = d.DocumentID
	}
	return ids
}

type Composer struct {
	retriever Retriever
	generator generation.Generator
	logger    *zap.Logger
}

func NewComposer(retriever Retriever, generator generation.Generator, logger *zap.Logger) *Composer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{retriever: retriever, generator: generator, logger: logger}
}

// Answer retrieves context for query and asks the generator. With no
// matching documents the generator still runs on an empty excerpt.
func (c *Composer) Answer(ctx context.Context, query string) (Answer, error) {
	res, err := c.retriever.Retrieve(ctx, query)
	if err != nil {
		return Answer{}, err
	}
	excerpt := res.Context()
	text, err := c.generator.Generate(ctx, generation.Request{
		Prompt:  BuildPrompt(res.Query, excerpt),
		Query:   res.Query,
		Context: excerpt,
	})
	if err != nil {
		return Answer{}, domain.Wrap(domain.ErrGenerationService, err)
	}
	c.logger.Debug("answered",
		zap.String("generator", c.generator.Name()),
		zap.Int("documents", len(res.Documents)))
	return Answer{Text: text, Retrieval: res}, nil
}
