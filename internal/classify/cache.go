package classify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/matsen/citethreads/internal/logger"
	"github.com/matsen/citethreads/internal/paper"
)

// Cache stores annotations by (citing, cited) pair. Implementations must be
// safe for concurrent use. A miss and a backend failure look the same to
// callers.
type Cache interface {
	Get(ctx context.Context, key paper.EdgeKey) (paper.Annotation, bool)
	Set(ctx context.Context, key paper.EdgeKey, ann paper.Annotation)
}

// MemoryCache is a process-local Cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[paper.EdgeKey]paper.Annotation
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[paper.EdgeKey]paper.Annotation)}
}

func (c *MemoryCache) Get(_ context.Context, key paper.EdgeKey) (paper.Annotation, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ann, ok := c.entries[key]
	return ann, ok
}

func (c *MemoryCache) Set(_ context.Context, key paper.EdgeKey, ann paper.Annotation) {
	c.mu.Lock()
	c.entries[key] = ann
	c.mu.Unlock()
}

// Len returns the number of cached pairs.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// redisKeyPrefix namespaces classification entries in a shared Redis.
const redisKeyPrefix = "citethreads:intent:"

// RedisCache shares classifications across processes through Redis.
type RedisCache struct {
	rdb *goredis.Client
	ttl time.Duration
	log *logger.Logger
}

// NewRedisCache connects to addr and verifies the connection with a ping.
func NewRedisCache(ctx context.Context, addr, password string, db int, ttl time.Duration, log *logger.Logger) (*RedisCache, error) {
	if addr == "" {
		return nil, errors.New("missing redis address")
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return newRedisCache(rdb, ttl, log), nil
}

func newRedisCache(rdb *goredis.Client, ttl time.Duration, log *logger.Logger) *RedisCache {
	return &RedisCache{
		rdb: rdb,
		ttl: ttl,
		log: logger.OrNop(log).With("component", "classify_cache"),
	}
}

func redisKey(key paper.EdgeKey) string {
	return redisKeyPrefix + key.String()
}

func (c *RedisCache) Get(ctx context.Context, key paper.EdgeKey) (paper.Annotation, bool) {
	raw, err := c.rdb.Get(ctx, redisKey(key)).Bytes()
	if err != nil {
		if !errors.Is(err, goredis.Nil) {
			c.log.Warn("redis get failed", "key", key.String(), "error", err)
		}
		return paper.Annotation{}, false
	}
	var ann paper.Annotation
	if err := json.Unmarshal(raw, &ann); err != nil {
		c.log.Warn("discarding corrupt cache entry", "key", key.String(), "error", err)
		return paper.Annotation{}, false
	}
	return ann, true
}

func (c *RedisCache) Set(ctx context.Context, key paper.EdgeKey, ann paper.Annotation) {
	raw, err := json.Marshal(ann)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, redisKey(key), raw, c.ttl).Err(); err != nil {
		c.log.Warn("redis set failed", "key", key.String(), "error", err)
	}
}

// Close releases the Redis connection pool.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
