package cache

import (
	"context"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryClient guarda las entradas en el proceso; cada réplica tiene su copia.
type MemoryClient struct {
	prefix string
	c      *gocache.Cache
	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemory crea el cache; el janitor de go-cache purga vencidas cada minuto.
func NewMemory(prefix string) *MemoryClient {
	return &MemoryClient{
		prefix: prefix,
		c:      gocache.New(gocache.NoExpiration, time.Minute),
	}
}

func (c *MemoryClient) Get(ctx context.Context, key string) (string, error) {
	v, ok := c.c.Get(c.prefix + key)
	if !ok {
		c.misses.Add(1)
		return "", ErrNotFound
	}
	c.hits.Add(1)
	s, _ := v.(string)
	return s, nil
}

func (c *MemoryClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	c.c.Set(c.prefix+key, value, ttl)
	return nil
}

func (c *MemoryClient) Delete(ctx context.Context, key string) error {
	c.c.Delete(c.prefix + key)
	return nil
}

func (c *MemoryClient) Ping(ctx context.Context) error { return nil }

func (c *MemoryClient) Close() error {
	c.c.Flush()
	return nil
}

func (c *MemoryClient) Stats(ctx context.Context) (Stats, error) {
	return Stats{
		Driver: "memory",
		Keys:   int64(c.c.ItemCount()),
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}, nil
}
