package cache

import (
	"bufio"
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient comparte la conexión de store.Open; Close no la cierra.
type RedisClient struct {
	rdb    *redis.Client
	prefix string
}

func NewRedis(rdb *redis.Client, prefix string) *RedisClient {
	return &RedisClient{rdb: rdb, prefix: prefix}
}

func (c *RedisClient) Get(ctx context.Context, key string) (string, error) {
	v, err := c.rdb.Get(ctx, c.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return v, err
}

func (c *RedisClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return c.rdb.Set(ctx, c.prefix+key, value, ttl).Err()
}

func (c *RedisClient) Delete(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, c.prefix+key).Err()
}

func (c *RedisClient) Ping(ctx context.Context) error { return c.rdb.Ping(ctx).Err() }

func (c *RedisClient) Close() error { return nil }

// Stats cuenta solo las keys con el prefijo propio; hits y misses son los
// del servidor completo.
func (c *RedisClient) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Driver: "redis"}
	iter := c.rdb.Scan(ctx, 0, c.prefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		st.Keys++
	}
	if err := iter.Err(); err != nil {
		return Stats{}, err
	}
	info, err := c.rdb.Info(ctx, "stats").Result()
	if err != nil {
		return st, nil
	}
	sc := bufio.NewScanner(strings.NewReader(info))
	for sc.Scan() {
		k, v, ok := strings.Cut(strings.TrimSpace(sc.Text()), ":")
		if !ok {
			continue
		}
		n, _ := strconv.ParseInt(v, 10, 64)
		switch k {
		case "keyspace_hits":
			st.Hits = n
		case "keyspace_misses":
			st.Misses = n
		}
	}
	return st, nil
}
