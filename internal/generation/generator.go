// Package generation defines the answer-writing port of the pipeline.
package generation

import "context"

// NotFound is the reply the model is told to give when the excerpt lacks the answer.
const NotFound = "that content was not found in the knowledge base"

// Request carries the rendered prompt plus its parts, so backends that do
// not call a language model can work from the query and context directly.
type Request struct {
	Prompt  string
	Query   string
	Context string
}

// Generator produces an answer for a request.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req Request) (string, error)
}
