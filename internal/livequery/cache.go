package livequery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/capitalize-ai/community-platform/internal/docstore"
)

// Cache keeps the last snapshot of each live feed so a new subscriber, or
// another instance, can be primed before the upstream listener answers.
type Cache interface {
	Get(ctx context.Context, key string) ([]docstore.Document, bool, error)
	Set(ctx context.Context, key string, docs []docstore.Document) error
}

type cached struct {
	docs    []docstore.Document
	expires time.Time
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]cached
}

// NewMemoryCache creates a cache whose entries live for ttl. Zero keeps
// them until overwritten.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{ttl: ttl, now: time.Now, entries: make(map[string]cached)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]docstore.Document, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false, nil
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil, false, nil
	}
	return cloneDocs(e.docs), true, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, docs []docstore.Document) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := cached{docs: cloneDocs(docs)}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}
	c.entries[key] = e
	return nil
}

// RedisCache stores snapshots as JSON in Redis.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisOptions holds the connection settings of a RedisCache.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// NewRedisCache connects to Redis and checks the connection.
func NewRedisCache(ctx context.Context, opt RedisOptions) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opt.Addr,
		Password: opt.Password,
		DB:       opt.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisCacheFromClient(client, opt.TTL), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, prefix: "livequery:", ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]docstore.Document, bool, error) {
	raw, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var docs []docstore.Document
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, false, fmt.Errorf("failed to decode snapshot %s: %w", key, err)
	}
	return docs, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, docs []docstore.Document) error {
	raw, err := json.Marshal(docs)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot %s: %w", key, err)
	}
	return c.client.Set(ctx, c.prefix+key, raw, c.ttl).Err()
}

// Ping checks the Redis connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

func cloneDocs(docs []docstore.Document) []docstore.Document {
	if docs == nil {
		return nil
	}
	out := make([]docstore.Document, len(docs))
	for i, d := range docs {
		out[i] = docstore.Document{ID: d.ID, Collection: d.Collection, Data: docstore.CloneMap(d.Data)}
	}
	return out
}
