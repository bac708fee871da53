package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"ragdocs/internal/domain"
	"ragdocs/internal/generation"
	"ragdocs/internal/retry"
)

const DefaultModel = "models/gemini-1.5-flash"

// contentGenerator is the part of *genai.Models the generator calls.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type Config struct {
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// Generator sends the rendered prompt to a Gemini model as a single user turn.
type Generator struct {
	models     contentGenerator
	model      string
	timeout    time.Duration
	maxRetries int
}

func NewGenerator(ctx context.Context, cfg Config) (*Generator, error) {
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
	return newGenerator(client.Models, cfg), nil
}

func newGenerator(models contentGenerator, cfg Config) *Generator {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 3
	}
	return &Generator{
		models:     models,
		model:      cfg.Model,
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
	}
}

func (g *Generator) Name() string { return "gemini:" + g.model }

func (g *Generator) Generate(ctx context.Context, req generation.Request) (string, error) {
	var text string
	err := retry.Do(ctx, g.maxRetries, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, g.timeout)
		defer cancel()
		resp, err := g.models.GenerateContent(callCtx, g.model, genai.Text(req.Prompt), nil)
		if err != nil {
			var apiErr genai.APIError
			if errors.As(err, &apiErr) && retry.StatusTemporary(apiErr.Code) {
				return &retry.Temporary{Err: err}
			}
			return err
		}
		text = strings.TrimSpace(resp.Text())
		if text == "" {
			return errors.New("empty response")
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: gemini generate: %w", domain.ErrGenerationService, err)
	}
	return text, nil
}
