// Package rate implementa rate limiting de ventana fija para los
// endpoints sensibles del IDP (login interactivo y token exchange).
// Dos backends con el mismo algoritmo: memoria para despliegues
// single-node y Redis cuando hay réplicas detrás de un balanceador.
package rate

import (
	"context"
	"fmt"
	"strings"
	"time"

	rdb "github.com/redis/go-redis/v9"
)

// Result es el veredicto del limiter para un hit.
type Result struct {
	Allowed     bool
	Remaining   int64
	RetryAfter  time.Duration
	WindowTTL   time.Duration
	CurrentHits int64
}

// Limiter decide si un hit identificado por key entra en la ventana.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// RedisLimiter: ventana fija sobre INCR + EXPIRE NX. La key incluye el
// inicio de la ventana, así el contador muere solo con el TTL.
type RedisLimiter struct {
	client *rdb.Client
	prefix string
	max    int64
	window time.Duration
}

// NewRedisLimiter crea el limiter. max hits por window.
func NewRedisLimiter(client *rdb.Client, prefix string, max int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		max:    int64(max),
		window: window,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	now := time.Now().UTC()
	winStart := now.Truncate(l.window)
	winEnd := winStart.Add(l.window)
	redisKey := fmt.Sprintf("%s%s:%d", l.prefix, sanitizeKey(key), winStart.Unix())

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{}, err
	}

	return verdict(incr.Val(), l.max, winEnd.Sub(now)), nil
}

// verdict arma el Result común a ambos backends.
func verdict(hits, max int64, ttl time.Duration) Result {
	res := Result{
		Allowed:     hits <= max,
		Remaining:   max - hits,
		CurrentHits: hits,
		WindowTTL:   ttl,
	}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	if !res.Allowed {
		res.RetryAfter = ttl
	}
	return res
}

func sanitizeKey(key string) string {
	return strings.ReplaceAll(key, " ", "_")
}
