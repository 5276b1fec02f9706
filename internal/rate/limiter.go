// Package rate limita intentos de login por ventana fija. Complementa el
// ledger de reintentos: el ledger bloquea cuentas, el limiter frena ráfagas
// desde una misma IP contra muchos usernames.
package rate

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	rdb "github.com/redis/go-redis/v9"
)

// Result es la decisión para un hit. RetryAfter solo se llena si !Allowed.
type Result struct {
	Allowed    bool
	Remaining  int64
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// RedisLimiter comparte la ventana entre réplicas. La key incluye el inicio
// de la ventana, así una ventana nueva arranca en cero aunque la anterior
// no haya vencido todavía.
type RedisLimiter struct {
	client *rdb.Client
	prefix string
	max    int64
	window time.Duration
}

func NewRedisLimiter(client *rdb.Client, prefix string, max int, window time.Duration) *RedisLimiter {
	if prefix == "" {
		prefix = "rl:"
	}
	return &RedisLimiter{client: client, prefix: prefix, max: int64(max), window: window}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	k, _ := windowKey(l.prefix+key, l.window, time.Now())

	var incr *rdb.IntCmd
	var ttl *rdb.DurationCmd
	_, err := l.client.TxPipelined(ctx, func(p rdb.Pipeliner) error {
		p.SetNX(ctx, k, 0, l.window)
		incr = p.Incr(ctx, k)
		ttl = p.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return decide(incr.Val(), l.max, ttl.Val(), l.window), nil
}

// MemoryLimiter es la misma ventana sobre go-cache, para una sola réplica.
type MemoryLimiter struct {
	max    int64
	window time.Duration

	mu sync.Mutex
	c  *gocache.Cache
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{max: int64(max), window: window, c: gocache.New(window, window)}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	now := time.Now()
	k, end := windowKey(key, l.window, now)

	l.mu.Lock()
	defer l.mu.Unlock()
	hits, err := l.c.IncrementInt64(k, 1)
	if err != nil {
		hits = 1
		l.c.Set(k, hits, l.window)
	}
	return decide(hits, l.max, end.Sub(now), l.window), nil
}

// windowKey devuelve la key de la ventana que contiene now y su fin.
func windowKey(key string, window time.Duration, now time.Time) (string, time.Time) {
	start := now.UTC().Truncate(window)
	return strings.ReplaceAll(key, " ", "_") + ":" + strconv.FormatInt(start.Unix(), 10), start.Add(window)
}

// decide arma el Result. Un ttl no positivo (key sin expiración o ya
// vencida) cae a la ventana completa.
func decide(hits, max int64, ttl, window time.Duration) Result {
	res := Result{Allowed: hits <= max, Remaining: max - hits}
	if res.Remaining < 0 {
		res.Remaining = 0
	}
	if !res.Allowed {
		res.RetryAfter = ttl
		if res.RetryAfter <= 0 {
			res.RetryAfter = window
		}
	}
	return res
}
