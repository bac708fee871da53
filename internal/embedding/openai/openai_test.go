package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragdocs/internal/domain"
)

func TestClient_Embed(t *testing.T) {
	var inputs []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		var body struct {
			Input string `json:"input"`
			Model string `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		inputs = append(inputs, body.Input)
		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.5,0.25]}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "k", QueryPrefix: "search_query: ", DocumentPrefix: "search_document: "})
	require.NoError(t, err)

	v, err := c.Embed(context.Background(), "hello", domain.TaskRetrievalQuery)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25}, v)

	_, err = c.Embed(context.Background(), "hello", domain.TaskRetrievalDocument)
	require.NoError(t, err)
	assert.Equal(t, []string{"search_query: hello", "search_document: hello"}, inputs)
}

func TestClient_OllamaShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"embedding":[1,2,3]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "k"})
	require.NoError(t, err)
	v, err := c.Embed(context.Background(), "x", domain.TaskRetrievalDocument)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, v)
}

func TestClient_RetriesOnTooManyRequests(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"embedding":[1]}]}`))
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "k", MaxRetries: 2})
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), "x", domain.TaskRetrievalDocument)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClient_PermanentFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c, err := NewClient(Config{BaseURL: srv.URL, APIKey: "k"})
	require.NoError(t, err)
	_, err = c.Embed(context.Background(), "x", domain.TaskRetrievalDocument)
	assert.ErrorIs(t, err, domain.ErrEmbeddingService)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNewClient_KeyFromEnv(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "from-env")
	c, err := NewClient(Config{APIKeyEnv: "TEST_EMBED_KEY"})
	require.NoError(t, err)
	assert.Equal(t, "from-env", c.apiKey)

	_, err = NewClient(Config{APIKeyEnv: "TEST_EMBED_KEY_MISSING"})
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}
