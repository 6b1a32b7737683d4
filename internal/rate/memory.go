package rate

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter: la misma ventana fija de RedisLimiter pero en memoria
// del proceso. Suficiente para single-node; con réplicas cada nodo
// cuenta por su cuenta y el límite efectivo se multiplica.
type MemoryLimiter struct {
	store  *gocache.Cache
	prefix string
	max    int64
	window time.Duration
}

// NewMemoryLimiter crea el limiter. max hits por window.
func NewMemoryLimiter(prefix string, max int, window time.Duration) *MemoryLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &MemoryLimiter{
		store:  gocache.New(window, 2*window),
		prefix: prefix,
		max:    int64(max),
		window: window,
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(l.window)
	winEnd := winStart.Add(l.window)
	k := fmt.Sprintf("%s%s:%d", l.prefix, sanitizeKey(key), winStart.Unix())

	// Add falla si la key ya existe; el Increment posterior es atómico.
	_ = l.store.Add(k, int64(0), winEnd.Sub(now))
	hits, err := l.store.IncrementInt64(k, 1)
	if err != nil {
		// La key expiró entre Add e Increment: ventana recién rotada.
		l.store.Set(k, int64(1), winEnd.Sub(now))
		hits = 1
	}

	return verdict(hits, l.max, winEnd.Sub(now)), nil
}
