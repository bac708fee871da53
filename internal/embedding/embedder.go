package embedding

import (
	"context"

	"ragdocs/internal/domain"
)

// Embedder converts text into a vector for the given retrieval task.
// Remote implementations report failures wrapped in domain.ErrEmbeddingService.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, text string, task domain.TaskType) ([]float32, error)
}
