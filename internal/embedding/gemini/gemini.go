package gemini

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/genai"

	"ragdocs/internal/domain"
	"ragdocs/internal/retry"
)

const DefaultModel = "models/text-embedding-004"

// contentEmbedder is the part of *genai.Models the embedder calls.
type contentEmbedder interface {
	EmbedContent(ctx context.Context, model string, contents []*genai.Content, config *genai.EmbedContentConfig) (*genai.EmbedContentResponse, error)
}

type Config struct {
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// Embedder calls the Gemini embedContent endpoint, one text per call.
type Embedder struct {
	models     contentEmbedder
	model      string
	timeout    time.Duration
	maxRetries int
}

// NewEmbedder creates a Gemini API client for the configured key.
func NewEmbedder(ctx context.Context, cfg Config) (*Embedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: gemini api key is required", domain.ErrInvalidConfig)
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return newEmbedder(client.Models, cfg), nil
}

func newEmbedder(models contentEmbedder, cfg Config) *Embedder {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	return &Embedder{
		models:     models,
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
	}
}

func (e *Embedder) Name() string { return "gemini:" + e.model }

func (e *Embedder) Embed(ctx context.Context, text string, task domain.TaskType) ([]float32, error) {
	taskType, err := geminiTask(task)
	if err != nil {
		return nil, err
	}
	var values []float32
	err = retry.Do(ctx, e.maxRetries, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()
		resp, err := e.models.EmbedContent(callCtx, e.model, genai.Text(text), &genai.EmbedContentConfig{TaskType: taskType})
		if err != nil {
			var apiErr genai.APIError
			if errors.As(err, &apiErr) && retry.StatusTemporary(apiErr.Code) {
				return &retry.Temporary{Err: err}
			}
			return err
		}
		if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
			return errors.New("no embedding returned")
		}
		values = resp.Embeddings[0].Values
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: gemini embed: %w", domain.ErrEmbeddingService, err)
	}
	return values, nil
}

func geminiTask(task domain.TaskType) (string, error) {
	switch task {
	case domain.TaskRetrievalDocument:
		return "RETRIEVAL_DOCUMENT", nil
	case domain.TaskRetrievalQuery:
		return "RETRIEVAL_QUERY", nil
	default:
		return "", fmt.Errorf("%w: unknown task type %q", domain.ErrEmbeddingService, task)
	}
}
