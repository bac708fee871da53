package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"time"

	"ragdocs/internal/domain"
	"ragdocs/internal/retry"
)

// Client is an OpenAI-compatible embeddings client. It also understands the
// Ollama-native response shape.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	client     *http.Client
	maxRetries int
	prefixes   map[domain.TaskType]string
}

// Config configures the OpenAI-compatible embeddings client.
// QueryPrefix and DocumentPrefix are prepended to the input for models that
// encode the retrieval task in the text (e.g. "search_query: ").
type Config struct {
	BaseURL        string
	APIKey         string
	APIKeyEnv      string
	Model          string
	Timeout        time.Duration
	MaxRetries     int
	QueryPrefix    string
	DocumentPrefix string
}

// NewClient creates a new embeddings client using the provided configuration.
func NewClient(cfg Config) (*Client, error) {
	key := cfg.APIKey
	if key == "" && cfg.APIKeyEnv != "" {
		key = os.Getenv(cfg.APIKeyEnv)
	}
	if key == "" {
		return nil, fmt.Errorf("%w: missing API key (env %s)", domain.ErrInvalidConfig, cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	t := cfg.Timeout
	if t == 0 {
		t = 30 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	return &Client{
		baseURL:    cfg.BaseURL,
		apiKey:     key,
		model:      cfg.Model,
		timeout:    t,
		client:     &http.Client{Timeout: t},
		maxRetries: cfg.MaxRetries,
		prefixes: map[domain.TaskType]string{
			domain.TaskRetrievalQuery:    cfg.QueryPrefix,
			domain.TaskRetrievalDocument: cfg.DocumentPrefix,
		},
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (c *Client) Name() string { return "openai:" + c.model }

// Embed returns an embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string, task domain.TaskType) ([]float32, error) {
	prefix, ok := c.prefixes[task]
	if !ok {
		return nil, fmt.Errorf("%w: unknown task type %q", domain.ErrEmbeddingService, task)
	}
	var out []float32
	err := retry.Do(ctx, c.maxRetries, func(ctx context.Context) error {
		v, err := c.embedOnce(ctx, prefix+text)
		out = v
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai embeddings: %w", domain.ErrEmbeddingService, err)
	}
	return out, nil
}

func (c *Client) embedOnce(ctx context.Context, input string) ([]float32, error) {
	type reqBody struct {
		Input  string `json:"input,omitempty"`
		Prompt string `json:"prompt,omitempty"`
		Model  string `json:"model"`
	}
	data, err := json.Marshal(reqBody{Input: input, Prompt: input, Model: c.model})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &retry.Temporary{Err: err}
	}
	defer resp.Body.Close()

	if retry.StatusTemporary(resp.StatusCode) {
		tmp := &retry.Temporary{Err: fmt.Errorf("openai embeddings failed: %s", resp.Status)}
		// Respect Retry-After if provided
		if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
			tmp.After = time.Duration(secs) * time.Second
		}
		return nil, tmp
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("openai embeddings failed: %s", resp.Status)
	}

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &retry.Temporary{Err: err}
	}
	// Try OpenAI-compatible response first
	var openaiOut struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &openaiOut); err == nil {
		if len(openaiOut.Data) > 0 && len(openaiOut.Data[0].Embedding) > 0 {
			return openaiOut.Data[0].Embedding, nil
		}
	}
	// Fallback to Ollama-native shape: { "embedding": [...] }
	var ollamaOut struct {
		Embedding []float32 `json:"embedding"`
	}
	if err := json.Unmarshal(payload, &ollamaOut); err == nil && len(ollamaOut.Embedding) > 0 {
		return ollamaOut.Embedding, nil
	}
	return nil, errors.New("no embedding returned")
}
