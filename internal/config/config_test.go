package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragdocs/internal/domain"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"GEMINI_API_KEY", "EMBEDDING_MODEL", "GENERATION_MODEL", "RAG_SOURCE_DIR", "RAG_DATA_DIR"} {
		t.Setenv(k, "")
	}
}

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "data", cfg.SourceDir)
	assert.Equal(t, filepath.Join("data", "chroma_db"), cfg.DataDir)
	assert.Equal(t, "rag_docs", cfg.Collection)
	assert.Equal(t, ChunkerConfig{MaxLen: 400, Overlap: 50, Boundary: "。"}, cfg.Chunker)
	assert.Equal(t, 3, cfg.Retrieval.TopN)
	assert.Equal(t, "models/text-embedding-004", cfg.EmbeddingModel)
	assert.Equal(t, "models/gemini-1.5-flash", cfg.GenerationModel)
	assert.Equal(t, "sqlite", cfg.VectorStore.Type)
	assert.Equal(t, 30*time.Second, cfg.Embedder.Timeout())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
source_dir: docs
chunker:
  max_len: 200
  overlap: 20
  boundary: "。.!?"
retrieval:
  top_n: 5
embedder:
  type: openai
  cache:
    type: none
generator:
  type: extractive
vector_store:
  type: qdrant
  qdrant:
    url: http://localhost:6333
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "docs", cfg.SourceDir)
	assert.Equal(t, 200, cfg.Chunker.MaxLen)
	assert.Equal(t, "。.!?", cfg.Chunker.Boundary)
	assert.Equal(t, 5, cfg.Retrieval.TopN)
	require.NotNil(t, cfg.Embedder.OpenAI)
	assert.Equal(t, "https://api.openai.com/v1", cfg.Embedder.OpenAI.BaseURL)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKeyEnv)
	assert.Equal(t, "http://localhost:6333", cfg.VectorStore.Qdrant.URL)
	// untouched sections keep their defaults
	assert.Equal(t, "rag_docs", cfg.Collection)
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("GEMINI_API_KEY", "k-123")
	t.Setenv("EMBEDDING_MODEL", "models/other-embed")
	t.Setenv("RAG_SOURCE_DIR", "/srv/docs")
	t.Setenv("RAG_DATA_DIR", "/srv/index")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "k-123", cfg.APIKey)
	assert.Equal(t, "models/other-embed", cfg.EmbeddingModel)
	assert.Equal(t, "/srv/docs", cfg.SourceDir)
	assert.Equal(t, "/srv/index", cfg.DataDir)
}

func TestLoad_Invalid(t *testing.T) {
	clearEnv(t)
	cases := map[string]string{
		"overlap not below max_len": "chunker: {max_len: 10, overlap: 10, boundary: x}",
		"unknown store":             "vector_store: {type: chroma}",
		"qdrant without section":    "vector_store: {type: qdrant}",
		"zero top_n":                "retrieval: {top_n: 0}",
		"empty boundary":            `chunker: {max_len: 10, overlap: 1, boundary: ""}`,
		"redis without addr":        "embedder: {type: hashing, cache: {type: redis}}",
		"malformed yaml":            "chunker: [",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
			_, err := Load(path)
			assert.ErrorIs(t, err, domain.ErrInvalidConfig)
		})
	}
}

func TestSaveThenLoad(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Retrieval.TopN = 7
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, got.Retrieval.TopN)
}
