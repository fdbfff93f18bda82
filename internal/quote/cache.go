package quote

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tokenuniverse/paper-engine/internal/model"
)

// Cache holds recent lookups. A cached nil quote records a miss.
type Cache interface {
	Get(ctx context.Context, tokenMint string) (*model.Quote, bool)
	Set(ctx context.Context, tokenMint string, q *model.Quote, ttl time.Duration)
}

type memoryEntry struct {
	quote     *model.Quote
	expiresAt time.Time
}

// MemoryCache is an in-process TTL cache.
type MemoryCache struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryEntry
}

// NewMemoryCache creates an empty cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (c *MemoryCache) Get(_ context.Context, tokenMint string) (*model.Quote, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[tokenMint]
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		delete(c.entries, tokenMint)
		return nil, false
	}
	return e.quote, true
}

func (c *MemoryCache) Set(_ context.Context, tokenMint string, q *model.Quote, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[tokenMint] = memoryEntry{quote: q, expiresAt: c.now().Add(ttl)}
}

// RedisCache stores quotes as JSON strings at "quote:{mint}" with a TTL.
// Redis errors degrade to cache misses.
type RedisCache struct {
	rdb *redis.Client
}

// NewRedisCache creates a cache backed by rdb.
func NewRedisCache(rdb *redis.Client) *RedisCache {
	return &RedisCache{rdb: rdb}
}

func quoteKey(tokenMint string) string { return "quote:" + tokenMint }

func (c *RedisCache) Get(ctx context.Context, tokenMint string) (*model.Quote, bool) {
	data, err := c.rdb.Get(ctx, quoteKey(tokenMint)).Bytes()
	if err != nil {
		return nil, false
	}
	var q *model.Quote
	if err := json.Unmarshal(data, &q); err != nil {
		return nil, false
	}
	return q, true
}

func (c *RedisCache) Set(ctx context.Context, tokenMint string, q *model.Quote, ttl time.Duration) {
	data, err := json.Marshal(q)
	if err != nil {
		return
	}
	c.rdb.Set(ctx, quoteKey(tokenMint), data, ttl)
}
