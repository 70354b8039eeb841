package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"vcard-wallet-go/internal/models"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ResponseCache remembers successful create-card responses by idempotency key.
type ResponseCache interface {
	Get(ctx context.Context, key string) (*models.IssuedCard, bool)
	Set(ctx context.Context, key string, value *models.IssuedCard)
}

// RedisCache is a JSON-backed Redis cache bound to one value type.
type RedisCache[T any] struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache[T any](client *goredis.Client, prefix string, ttl time.Duration) *RedisCache[T] {
	return &RedisCache[T]{client: client, prefix: prefix, ttl: ttl}
}

// Get returns (nil, false) on a miss or an unreadable entry.
func (c *RedisCache[T]) Get(ctx context.Context, key string) (*T, bool) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			zap.L().Warn("Idempotency cache read failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		zap.L().Warn("Idempotency cache entry unreadable", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	return &v, true
}

// Set stores value under key. A failed write is logged, not returned.
func (c *RedisCache[T]) Set(ctx context.Context, key string, value *T) {
	data, err := json.Marshal(value)
	if err != nil {
		zap.L().Warn("Idempotency cache marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, c.prefix+key, data, c.ttl).Err(); err != nil {
		zap.L().Warn("Idempotency cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// NewRedisClient connects and pings Redis.
func NewRedisClient(ctx context.Context, cfg models.RedisConfig) (*goredis.Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

// NewResponseCache picks the create-card replay cache. Redis is used when
// configured and reachable; otherwise responses are kept in process. The
// returned func releases the cache.
func NewResponseCache(ctx context.Context, cfg models.RedisConfig, ttl time.Duration) (ResponseCache, func()) {
	if cfg.Addr == "" {
		zap.L().Info("Using in-process idempotency cache", zap.Duration("ttl", ttl))
		return NewMemoryCache[models.IssuedCard](ttl), func() {}
	}

	rdb, err := NewRedisClient(ctx, cfg)
	if err != nil {
		zap.L().Warn("Redis unavailable, falling back to in-process idempotency cache",
			zap.String("addr", cfg.Addr),
			zap.Error(err))
		return NewMemoryCache[models.IssuedCard](ttl), func() {}
	}

	zap.L().Info("Using Redis idempotency cache", zap.String("addr", cfg.Addr), zap.Duration("ttl", ttl))
	return NewRedisCache[models.IssuedCard](rdb, "relay:create-card:", ttl), func() {
		if err := rdb.Close(); err != nil {
			zap.L().Warn("Failed to close Redis client", zap.Error(err))
		}
	}
}

type memoryEntry[T any] struct {
	value   T
	expires time.Time
}

// MemoryCache is the in-process fallback used when no Redis is configured.
type MemoryCache[T any] struct {
	mu      sync.Mutex
	entries map[string]memoryEntry[T]
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryCache[T any](ttl time.Duration) *MemoryCache[T] {
	return &MemoryCache[T]{
		entries: make(map[string]memoryEntry[T]),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (c *MemoryCache[T]) Get(_ context.Context, key string) (*T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.ttl > 0 && c.now().After(e.expires) {
		delete(c.entries, key)
		return nil, false
	}
	v := e.value
	return &v, true
}

func (c *MemoryCache[T]) Set(_ context.Context, key string, value *T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, e := range c.entries {
		if c.ttl > 0 && now.After(e.expires) {
			delete(c.entries, k)
		}
	}
	c.entries[key] = memoryEntry[T]{value: *value, expires: now.Add(c.ttl)}
}
