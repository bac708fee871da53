package embedding

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"ragdocs/internal/domain"
)

// Limited spaces calls to the wrapped embedder to stay under a request quota.
type Limited struct {
	next    Embedder
	limiter *rate.Limiter
}

// NewLimited allows perMinute calls per minute with a burst of one.
// A non-positive perMinute disables limiting.
func NewLimited(next Embedder, perMinute int) *Limited {
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &Limited{next: next, limiter: rate.NewLimiter(limit, 1)}
}

func (l *Limited) Name() string { return l.next.Name() }

func (l *Limited) Embed(ctx context.Context, text string, task domain.TaskType) ([]float32, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, domain.Wrap(domain.ErrEmbeddingService, err)
	}
	return l.next.Embed(ctx, text, task)
}
