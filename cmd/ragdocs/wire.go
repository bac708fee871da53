package main

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"ragdocs/internal/answer"
	"ragdocs/internal/chunker"
	"ragdocs/internal/config"
	"ragdocs/internal/domain"
	"ragdocs/internal/embedding"
	"ragdocs/internal/embedding/gemini"
	"ragdocs/internal/embedding/hashing"
	"ragdocs/internal/embedding/openai"
	"ragdocs/internal/generation"
	"ragdocs/internal/generation/extractive"
	gemgen "ragdocs/internal/generation/gemini"
	"ragdocs/internal/ingest"
	"ragdocs/internal/retrieve"
	"ragdocs/internal/vectorstore"
	"ragdocs/internal/vectorstore/memory"
	"ragdocs/internal/vectorstore/pgvector"
	"ragdocs/internal/vectorstore/qdrant"
	"ragdocs/internal/vectorstore/sqlite"
)

// components assembles backends on first use, so commands only need the
// credentials of the parts they touch.
type components struct {
	cfg      *config.AppConfig
	logger   *zap.Logger
	store    vectorstore.Storage
	embedder embedding.Embedder
	closers  []func() error
}

func newComponents(cfg *config.AppConfig, logger *zap.Logger) *components {
	return &components{cfg: cfg, logger: logger}
}

func (c *components) Store(ctx context.Context) (vectorstore.Storage, error) {
	if c.store != nil {
		return c.store, nil
	}
	st, err := newStore(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	c.store = st
	c.closers = append(c.closers, st.Close)
	return st, nil
}

func (c *components) Embedder(ctx context.Context) (embedding.Embedder, error) {
	if c.embedder != nil {
		return c.embedder, nil
	}
	emb, err := c.newEmbedder(ctx)
	if err != nil {
		return nil, err
	}
	c.embedder = emb
	return emb, nil
}

func (c *components) Pipeline(ctx context.Context) (*ingest.Pipeline, error) {
	ch, err := chunker.NewSentenceChunker(c.cfg.Chunker.MaxLen, c.cfg.Chunker.Overlap, c.cfg.Chunker.Boundary)
	if err != nil {
		return nil, err
	}
	emb, err := c.Embedder(ctx)
	if err != nil {
		return nil, err
	}
	st, err := c.Store(ctx)
	if err != nil {
		return nil, err
	}
	return ingest.NewPipeline(ch, emb, st, c.logger.Named("ingest")), nil
}

func (c *components) Retriever(ctx context.Context) (*retrieve.Retriever, error) {
	emb, err := c.Embedder(ctx)
	if err != nil {
		return nil, err
	}
	st, err := c.Store(ctx)
	if err != nil {
		return nil, err
	}
	return retrieve.NewRetriever(emb, st, c.cfg.Retrieval.TopN, c.logger.Named("retrieve")), nil
}

func (c *components) Composer(ctx context.Context) (*answer.Composer, error) {
	r, err := c.Retriever(ctx)
	if err != nil {
		return nil, err
	}
	gen, err := newGenerator(ctx, c.cfg)
	if err != nil {
		return nil, err
	}
	return answer.NewComposer(r, gen, c.logger.Named("answer")), nil
}

func (c *components) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	return errors.Join(errs...)
}

func newStore(ctx context.Context, cfg *config.AppConfig) (vectorstore.Storage, error) {
	vs := cfg.VectorStore
	switch vs.Type {
	case "sqlite", "":
		return sqlite.NewStorage(ctx, sqlite.Config{Dir: cfg.DataDir, Collection: cfg.Collection})
	case "memory":
		return memory.NewStorage(), nil
	case "qdrant":
		return qdrant.NewStorage(qdrant.Config{
			URL:        vs.Qdrant.URL,
			APIKey:     vs.Qdrant.APIKey,
			Collection: cfg.Collection,
			Timeout:    vs.Qdrant.Timeout(),
		}), nil
	case "pgvector":
		return pgvector.NewStorage(ctx, pgvector.Config{
			DSN:        vs.PGVector.DSN,
			Table:      vs.PGVector.Table,
			Collection: cfg.Collection,
		})
	default:
		return nil, fmt.Errorf("%w: unknown vector store: %s", domain.ErrInvalidConfig, vs.Type)
	}
}

// newEmbedder builds the configured backend, rate limits it, then puts the
// cache in front so hits do not spend quota.
func (c *components) newEmbedder(ctx context.Context) (embedding.Embedder, error) {
	ec := c.cfg.Embedder
	var emb embedding.Embedder
	switch ec.Type {
	case "gemini", "":
		g, err := gemini.NewEmbedder(ctx, gemini.Config{
			APIKey:     c.cfg.APIKey,
			Model:      c.cfg.EmbeddingModel,
			Timeout:    ec.Timeout(),
			MaxRetries: ec.MaxRetries,
		})
		if err != nil {
			return nil, err
		}
		emb = g
	case "openai":
		client, err := openai.NewClient(openai.Config{
			BaseURL:        ec.OpenAI.BaseURL,
			APIKeyEnv:      ec.OpenAI.APIKeyEnv,
			Model:          ec.OpenAI.Model,
			Timeout:        ec.Timeout(),
			MaxRetries:     ec.MaxRetries,
			QueryPrefix:    ec.OpenAI.QueryPrefix,
			DocumentPrefix: ec.OpenAI.DocumentPrefix,
		})
		if err != nil {
			return nil, err
		}
		emb = client
	case "hashing":
		emb = hashing.NewEmbedder(ec.Hashing.Dimension)
	default:
		return nil, fmt.Errorf("%w: unknown embedder: %s", domain.ErrInvalidConfig, ec.Type)
	}

	if ec.RequestsPerMinute > 0 {
		emb = embedding.NewLimited(emb, ec.RequestsPerMinute)
	}

	switch ec.Cache.Type {
	case "none", "":
	case "memory":
		emb = embedding.NewCached(emb, embedding.NewMemoryCache(ec.Cache.TTL()), c.logger)
	case "redis":
		rc, err := embedding.NewRedisCache(ctx, embedding.RedisConfig{
			Addr:     ec.Cache.RedisAddr,
			Password: ec.Cache.RedisPassword,
			DB:       ec.Cache.RedisDB,
			TTL:      ec.Cache.TTL(),
		})
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, rc.Close)
		emb = embedding.NewCached(emb, rc, c.logger)
	default:
		return nil, fmt.Errorf("%w: unknown embedding cache: %s", domain.ErrInvalidConfig, ec.Cache.Type)
	}
	return emb, nil
}

func newGenerator(ctx context.Context, cfg *config.AppConfig) (generation.Generator, error) {
	gc := cfg.Generator
	switch gc.Type {
	case "gemini", "":
		return gemgen.NewGenerator(ctx, gemgen.Config{
			APIKey:     cfg.APIKey,
			Model:      cfg.GenerationModel,
			Timeout:    gc.Timeout(),
			MaxRetries: gc.MaxRetries,
		})
	case "extractive":
		return extractive.NewGenerator(gc.MaxSentences), nil
	default:
		return nil, fmt.Errorf("%w: unknown generator: %s", domain.ErrInvalidConfig, gc.Type)
	}
}
