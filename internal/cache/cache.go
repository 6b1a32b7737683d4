// Package cache provee abstracciones para caching con soporte multi-backend.
//
// Soporta:
//   - Memory (in-process, para desarrollo y single-node)
//   - Redis (distribuido, para producción)
//
// Lo usan el gateway LLM/RAG para respuestas cacheadas y cualquier
// componente que necesite un KV efímero con TTL.
package cache

import (
	"context"
	"errors"
	"time"
)

// Client define las operaciones de cache.
type Client interface {
	// Get obtiene un valor. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, key string) (string, error)

	// Set guarda un valor con TTL opcional.
	// Si ttl es 0, no expira.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Delete elimina una key.
	Delete(ctx context.Context, key string) error

	// Exists verifica si una key existe.
	Exists(ctx context.Context, key string) (bool, error)

	// Ping verifica la conexión.
	Ping(ctx context.Context) error

	// Close cierra la conexión.
	Close() error

	// Stats retorna estadísticas del cache.
	Stats(ctx context.Context) (Stats, error)
}

// Stats contiene estadísticas del cache.
type Stats struct {
	Driver     string
	Keys       int64
	UsedMemory string
	Hits       int64
	Misses     int64
}

// Config configuración para crear un cliente de cache.
type Config struct {
	Kind       string // "memory" | "redis"
	Addr       string // host:port (redis)
	Password   string
	DB         int
	Prefix     string        // Prefijo para todas las keys
	DefaultTTL time.Duration // TTL por defecto del backend memory
}

// ErrNotFound indica que la key no existe (o expiró).
var ErrNotFound = errors.New("cache: key not found")

// IsNotFound verifica si el error es porque la key no existe.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// New crea un cliente de cache según la configuración.
func New(cfg Config) (Client, error) {
	switch cfg.Kind {
	case "redis":
		return NewRedis(cfg)
	case "memory", "":
		return NewMemory(cfg.Prefix, cfg.DefaultTTL), nil
	default:
		return NewMemory(cfg.Prefix, cfg.DefaultTTL), nil
	}
}
