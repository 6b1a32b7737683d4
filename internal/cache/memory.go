package cache

import (
	"context"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryClient implementa Client sobre go-cache.
// Útil para desarrollo y despliegues single-node.
type memoryClient struct {
	prefix string
	c      *gocache.Cache
	hits   atomic.Int64
	misses atomic.Int64
}

// NewMemory crea un cliente de cache en memoria.
// Entradas expiradas se purgan cada minuto; Set con ttl 0 nunca expira.
func NewMemory(prefix string, defaultTTL time.Duration) *memoryClient {
	if defaultTTL <= 0 {
		defaultTTL = gocache.NoExpiration
	}
	return &memoryClient{
		prefix: prefix,
		c:      gocache.New(defaultTTL, time.Minute),
	}
}

func (c *memoryClient) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

func (c *memoryClient) Get(ctx context.Context, key string) (string, error) {
	v, ok := c.c.Get(c.key(key))
	if !ok {
		c.misses.Add(1)
		return "", ErrNotFound
	}
	s, ok := v.(string)
	if !ok {
		c.misses.Add(1)
		return "", ErrNotFound
	}
	c.hits.Add(1)
	return s, nil
}

func (c *memoryClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	d := ttl
	if ttl == 0 {
		d = gocache.NoExpiration
	}
	c.c.Set(c.key(key), value, d)
	return nil
}

func (c *memoryClient) Delete(ctx context.Context, key string) error {
	c.c.Delete(c.key(key))
	return nil
}

func (c *memoryClient) Exists(ctx context.Context, key string) (bool, error) {
	_, ok := c.c.Get(c.key(key))
	return ok, nil
}

func (c *memoryClient) Ping(ctx context.Context) error { return nil }

func (c *memoryClient) Close() error {
	c.c.Flush()
	return nil
}

func (c *memoryClient) Stats(ctx context.Context) (Stats, error) {
	return Stats{
		Driver: "memory",
		Keys:   int64(c.c.ItemCount()),
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}, nil
}
