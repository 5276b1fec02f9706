// Package cache guarda strings con TTL en memoria (go-cache) o en Redis.
// El único consumidor es ClientRepository, que cachea la configuración de
// clientes OAuth leída en cada emisión de token.
package cache

import (
	"context"
	"errors"
	"time"
)

// Client es el backend de cache. Las keys llegan sin prefijo; cada
// implementación antepone el suyo tal cual, sin separador.
type Client interface {
	// Get devuelve ErrNotFound si la key no existe o venció.
	Get(ctx context.Context, key string) (string, error)
	// Set con ttl <= 0 no vence.
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

// Stats es lo que expone /health sobre el cache.
type Stats struct {
	Driver string
	Keys   int64
	Hits   int64
	Misses int64
}

var ErrNotFound = errors.New("cache: key not found")

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
