package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"math"
	"slices"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"ragdocs/internal/domain"
)

// Cache stores vectors by key. A miss is (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]float32, bool, error)
	Set(ctx context.Context, key string, vector []float32) error
}

// Cached serves repeated (embedder, task, text) lookups from a cache.
// Cache errors are logged and fall through to the wrapped embedder.
type Cached struct {
	next   Embedder
	cache  Cache
	logger *zap.Logger
}

func NewCached(next Embedder, cache Cache, logger *zap.Logger) *Cached {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cached{next: next, cache: cache, logger: logger}
}

func (c *Cached) Name() string { return c.next.Name() }

func (c *Cached) Embed(ctx context.Context, text string, task domain.TaskType) ([]float32, error) {
	key := CacheKey(c.next.Name(), task, text)
	if v, ok, err := c.cache.Get(ctx, key); err != nil {
		c.logger.Warn("embedding cache get failed", zap.Error(err))
	} else if ok {
		return v, nil
	}
	v, err := c.next.Embed(ctx, text, task)
	if err != nil {
		return nil, err
	}
	if err := c.cache.Set(ctx, key, v); err != nil {
		c.logger.Warn("embedding cache set failed", zap.Error(err))
	}
	return v, nil
}

// CacheKey derives a fixed-size key from the embedder name, task and text.
func CacheKey(embedder string, task domain.TaskType, text string) string {
	h := sha256.New()
	h.Write([]byte(embedder))
	h.Write([]byte{0})
	h.Write([]byte(task))
	h.Write([]byte{0})
	h.Write([]byte(text))
	return "emb:" + hex.EncodeToString(h.Sum(nil))
}

// MemoryCache is an in-process cache with expiry.
type MemoryCache struct {
	c *gocache.Cache
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	return &MemoryCache{c: gocache.New(ttl, 10*time.Minute)}
}

func (m *MemoryCache) Get(_ context.Context, key string) ([]float32, bool, error) {
	v, ok := m.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(v.([]float32)), true, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, vector []float32) error {
	m.c.SetDefault(key, slices.Clone(vector))
	return nil
}

// RedisCache shares vectors between processes.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisCache connects and pings the server.
func NewRedisCache(ctx context.Context, cfg RedisConfig) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Join(domain.ErrInvalidConfig, err)
	}
	return &RedisCache{client: client, ttl: cfg.TTL}, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) ([]float32, bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return decodeVector(data), true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, vector []float32) error {
	return r.client.Set(ctx, key, encodeVector(vector), r.ttl).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return out
}
