package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dropDatabas3/staffauth/internal/domain/repository"
	"github.com/dropDatabas3/staffauth/internal/observability/logger"
	"golang.org/x/sync/singleflight"
)

// DefaultClientTTL es el TTL por defecto de clientes y configs cacheados.
const DefaultClientTTL = 5 * time.Minute

// ClientRepository cachea un repository.ClientRepository. Las cargas
// concurrentes de la misma key se colapsan en una sola consulta.
type ClientRepository struct {
	next  repository.ClientRepository
	cache Client
	ttl   time.Duration
	group singleflight.Group
}

// NewClientRepository envuelve next con cache.
func NewClientRepository(next repository.ClientRepository, c Client, ttl time.Duration) *ClientRepository {
	if ttl <= 0 {
		ttl = DefaultClientTTL
	}
	return &ClientRepository{next: next, cache: c, ttl: ttl}
}

func (r *ClientRepository) GetClient(ctx context.Context, clientID string) (*repository.Client, error) {
	var out repository.Client
	err := r.load(ctx, "client:"+clientID, &out, func() (any, error) {
		return r.next.GetClient(ctx, clientID)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *ClientRepository) GetConfig(ctx context.Context, baseClientID string) (*repository.ClientConfig, error) {
	var out repository.ClientConfig
	err := r.load(ctx, "clientcfg:"+baseClientID, &out, func() (any, error) {
		return r.next.GetConfig(ctx, baseClientID)
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Invalidate borra las entradas del cliente.
func (r *ClientRepository) Invalidate(ctx context.Context, clientID string) {
	_ = r.cache.Delete(ctx, "client:"+clientID)
	_ = r.cache.Delete(ctx, "clientcfg:"+repository.BaseClientID(clientID))
}

// Los "no encontrado" no se cachean.
func (r *ClientRepository) load(ctx context.Context, key string, dst any, fetch func() (any, error)) error {
	if raw, err := r.cache.Get(ctx, key); err == nil {
		if json.Unmarshal([]byte(raw), dst) == nil {
			return nil
		}
	} else if !IsNotFound(err) {
		logger.From(ctx).Warn("client cache read failed", logger.Component("cache.clients"), logger.Err(err))
	}

	v, err, _ := r.group.Do(key, func() (any, error) {
		rec, err := fetch()
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		if err := r.cache.Set(ctx, key, string(b), r.ttl); err != nil {
			logger.From(ctx).Warn("client cache write failed", logger.Component("cache.clients"), logger.Err(err))
		}
		return b, nil
	})
	if err != nil {
		return err
	}
	return json.Unmarshal(v.([]byte), dst)
}
