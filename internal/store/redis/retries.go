// Package redis implementa el ledger de reintentos y la tabla de tokens de
// corta vida sobre Redis. Toda mutación concurrente es un único comando o
// script Lua, atómicos por key.
package redis

import (
	"context"
	"strconv"
	"time"

	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/staffauth/internal/domain/repository"
)

// RetryStore implementa repository.RetryRepository.
type RetryStore struct {
	client rdb.UniversalClient
	prefix string
}

// NewRetryStore crea el ledger. prefix default "sa:".
func NewRetryStore(client rdb.UniversalClient, prefix string) *RetryStore {
	if prefix == "" {
		prefix = "sa:"
	}
	return &RetryStore{client: client, prefix: prefix}
}

func (s *RetryStore) key(username string) string {
	return s.prefix + "retries:" + repository.NormalizeUsername(username)
}

func (s *RetryStore) Increment(ctx context.Context, username string) (int, error) {
	n, err := s.client.HIncrBy(ctx, s.key(username), "count", 1).Result()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *RetryStore) Reset(ctx context.Context, username string) error {
	return s.client.HSet(ctx, s.key(username),
		"count", 0,
		"reset_at", time.Now().UTC().Unix(),
	).Err()
}

func (s *RetryStore) Get(ctx context.Context, username string) (repository.UserRetries, error) {
	out := repository.UserRetries{Username: repository.NormalizeUsername(username)}
	m, err := s.client.HGetAll(ctx, s.key(username)).Result()
	if err != nil {
		return out, err
	}
	if v, ok := m["count"]; ok {
		out.Count, _ = strconv.Atoi(v)
	}
	if v, ok := m["reset_at"]; ok {
		if sec, err := strconv.ParseInt(v, 10, 64); err == nil {
			out.ResetAt = time.Unix(sec, 0).UTC()
		}
	}
	return out, nil
}
