package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ragdocs/internal/domain"
)

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	MaxLen   int    `yaml:"max_len" validate:"gt=0"`
	Overlap  int    `yaml:"overlap" validate:"gte=0,ltfield=MaxLen"`
	Boundary string `yaml:"boundary" validate:"required"`
}

type RetrievalConfig struct {
	TopN int `yaml:"top_n" validate:"gt=0"`
}

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL        string `yaml:"base_url" validate:"omitempty,url"`
	APIKeyEnv      string `yaml:"api_key_env"`
	Model          string `yaml:"model"`
	QueryPrefix    string `yaml:"query_prefix"`
	DocumentPrefix string `yaml:"document_prefix"`
}

type HashingEmbedderConfig struct {
	Dimension int `yaml:"dimension" validate:"gte=0"`
}

// CacheConfig selects where embeddings are memoized.
type CacheConfig struct {
	Type          string `yaml:"type" validate:"oneof=none memory redis"`
	TTLSecs       int    `yaml:"ttl_secs" validate:"gte=0"`
	RedisAddr     string `yaml:"redis_addr" validate:"required_if=Type redis"`
	RedisPassword string `yaml:"redis_password"`
	RedisDB       int    `yaml:"redis_db" validate:"gte=0"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type              string                `yaml:"type" validate:"oneof=gemini openai hashing"`
	TimeoutSecs       int                   `yaml:"timeout_secs" validate:"gte=0"`
	MaxRetries        int                   `yaml:"max_retries" validate:"gte=0"`
	RequestsPerMinute int                   `yaml:"requests_per_minute" validate:"gte=0"`
	Cache             CacheConfig           `yaml:"cache"`
	OpenAI            *OpenAIEmbedderConfig `yaml:"openai,omitempty"`
	Hashing           HashingEmbedderConfig `yaml:"hashing"`
}

// GeneratorConfig selects the answer generator.
type GeneratorConfig struct {
	Type         string `yaml:"type" validate:"oneof=gemini extractive"`
	TimeoutSecs  int    `yaml:"timeout_secs" validate:"gte=0"`
	MaxRetries   int    `yaml:"max_retries" validate:"gte=0"`
	MaxSentences int    `yaml:"max_sentences" validate:"gte=0"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type     string          `yaml:"type" validate:"oneof=sqlite memory qdrant pgvector"`
	Qdrant   *QdrantConfig   `yaml:"qdrant,omitempty" validate:"required_if=Type qdrant"`
	PGVector *PGVectorConfig `yaml:"pgvector,omitempty" validate:"required_if=Type pgvector"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	URL         string `yaml:"url" validate:"required,url"`
	APIKey      string `yaml:"api_key"`
	TimeoutSecs int    `yaml:"timeout_secs" validate:"gte=0"`
}

type PGVectorConfig struct {
	DSN   string `yaml:"dsn" validate:"required"`
	Table string `yaml:"table"`
}

type LogConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`
	File  string `yaml:"file"`
	JSON  bool   `yaml:"json"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" validate:"required"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	SourceDir       string            `yaml:"source_dir" validate:"required"`
	DataDir         string            `yaml:"data_dir" validate:"required"`
	Collection      string            `yaml:"collection" validate:"required"`
	APIKey          string            `yaml:"api_key"`
	EmbeddingModel  string            `yaml:"embedding_model"`
	GenerationModel string            `yaml:"generation_model"`
	Chunker         ChunkerConfig     `yaml:"chunker"`
	Retrieval       RetrievalConfig   `yaml:"retrieval"`
	Embedder        EmbedderConfig    `yaml:"embedder"`
	Generator       GeneratorConfig   `yaml:"generator"`
	VectorStore     VectorStoreConfig `yaml:"vector_store"`
	Log             LogConfig         `yaml:"log"`
	Server          ServerConfig      `yaml:"server"`
}

// Duration helpers turn the *_secs fields into time.Duration.
func (c EmbedderConfig) Timeout() time.Duration  { return secs(c.TimeoutSecs) }
func (c GeneratorConfig) Timeout() time.Duration { return secs(c.TimeoutSecs) }
func (c QdrantConfig) Timeout() time.Duration    { return secs(c.TimeoutSecs) }
func (c CacheConfig) TTL() time.Duration         { return secs(c.TTLSecs) }

func secs(n int) time.Duration { return time.Duration(n) * time.Second }

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Environment overrides and validation are applied in both cases.
func Load(path string) (*AppConfig, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("%w: reading %s: %w", domain.ErrInvalidConfig, path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("%w: parsing %s: %w", domain.ErrInvalidConfig, path, err)
		}
	}
	applyEnv(cfg)
	applyConfigDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault loads .env, then tries ./config.yaml and ~/.config/ragdocs/config.yaml.
// If neither exists, it writes defaults to the user path and returns them.
func LoadDefault() (*AppConfig, string, error) {
	_ = godotenv.Load()
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err != nil {
		if err := Save(userPath, Default()); err != nil {
			return nil, "", err
		}
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints. A missing API key is reported by the
// component that needs it, so commands that never call the API still work.
func Validate(cfg *AppConfig) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "ragdocs", "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	return &AppConfig{
		SourceDir:       "data",
		DataDir:         filepath.Join("data", "chroma_db"),
		Collection:      "rag_docs",
		EmbeddingModel:  "models/text-embedding-004",
		GenerationModel: "models/gemini-1.5-flash",
		Chunker:         ChunkerConfig{MaxLen: 400, Overlap: 50, Boundary: "。"},
		Retrieval:       RetrievalConfig{TopN: 3},
		Embedder: EmbedderConfig{
			Type:        "gemini",
			TimeoutSecs: 30,
			MaxRetries:  3,
			Cache:       CacheConfig{Type: "memory"},
		},
		Generator:   GeneratorConfig{Type: "gemini", TimeoutSecs: 60, MaxRetries: 3, MaxSentences: 3},
		VectorStore: VectorStoreConfig{Type: "sqlite"},
		Log:         LogConfig{Level: "info"},
		Server:      ServerConfig{Addr: ":8080"},
	}
}

func applyEnv(cfg *AppConfig) {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}
	for env, dst := range map[string]*string{
		"EMBEDDING_MODEL":  &cfg.EmbeddingModel,
		"GENERATION_MODEL": &cfg.GenerationModel,
		"RAG_SOURCE_DIR":   &cfg.SourceDir,
		"RAG_DATA_DIR":     &cfg.DataDir,
	} {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			*dst = v
		}
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Embedder.Cache.Type == "" {
		cfg.Embedder.Cache.Type = "none"
	}
	if cfg.Embedder.Type == "openai" {
		if cfg.Embedder.OpenAI == nil {
			cfg.Embedder.OpenAI = &OpenAIEmbedderConfig{}
		}
		if cfg.Embedder.OpenAI.BaseURL == "" {
			cfg.Embedder.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.Embedder.OpenAI.APIKeyEnv == "" {
			cfg.Embedder.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.Embedder.OpenAI.Model == "" {
			cfg.Embedder.OpenAI.Model = "text-embedding-3-small"
		}
	}
	if cfg.VectorStore.Type == "" {
		cfg.VectorStore.Type = "sqlite"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}
