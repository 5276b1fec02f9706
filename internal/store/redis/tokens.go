package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	rdb "github.com/redis/go-redis/v9"

	"github.com/dropDatabas3/staffauth/internal/domain/repository"
	"github.com/dropDatabas3/staffauth/internal/domain/types"
)

// saveTokenLua reemplaza el token previo del usuario/tipo y guarda el nuevo.
// KEYS[1] = token key, KEYS[2] = índice usuario/tipo
// ARGV[1] = prefijo de token keys, ARGV[2] = token, ARGV[3] = ttl ms,
// ARGV[4..] = pares campo/valor del hash
var saveTokenLua = rdb.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return redis.error_reply('conflict')
end
local prev = redis.call('GET', KEYS[2])
if prev then
  redis.call('DEL', ARGV[1] .. prev)
end
for i = 4, #ARGV, 2 do
  redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
end
redis.call('PEXPIRE', KEYS[1], ARGV[3])
redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
return 1
`)

// consumeTokenLua borra el token solo si es del tipo esperado y devuelve su
// hash; una lista vacía si no existe o es de otro tipo.
// KEYS[1] = token key
// ARGV[1] = tipo esperado, ARGV[2] = prefijo del índice, ARGV[3] = token
var consumeTokenLua = rdb.NewScript(`
local typ = redis.call('HGET', KEYS[1], 'type')
if not typ or typ ~= ARGV[1] then
  return {}
end
local data = redis.call('HGETALL', KEYS[1])
redis.call('DEL', KEYS[1])
local username = ''
for i = 1, #data, 2 do
  if data[i] == 'username' then username = data[i + 1] end
end
local idx = ARGV[2] .. username .. ':' .. typ
if redis.call('GET', idx) == ARGV[3] then
  redis.call('DEL', idx)
end
return data
`)

// TokenStore implementa repository.UserTokenRepository. Los tokens se
// conservan Retention más allá de su expiración para poder informar "expired".
type TokenStore struct {
	client    rdb.UniversalClient
	prefix    string
	Retention time.Duration
	now       func() time.Time
}

// NewTokenStore crea el store. prefix default "sa:".
func NewTokenStore(client rdb.UniversalClient, prefix string) *TokenStore {
	if prefix == "" {
		prefix = "sa:"
	}
	return &TokenStore{client: client, prefix: prefix, Retention: 24 * time.Hour, now: time.Now}
}

func (s *TokenStore) tokenPrefix() string { return s.prefix + "tok:" }
func (s *TokenStore) indexPrefix() string { return s.prefix + "tokidx:" }

func (s *TokenStore) tokenKey(token string) string { return s.tokenPrefix() + token }

func (s *TokenStore) indexKey(username string, t types.TokenType) string {
	return s.indexPrefix() + repository.NormalizeUsername(username) + ":" + string(t)
}

func (s *TokenStore) Save(ctx context.Context, t *repository.UserToken) error {
	if t == nil || t.Token == "" {
		return repository.ErrInvalidInput
	}
	username := repository.NormalizeUsername(t.Username)
	ttl := t.ExpiresAt.Sub(s.now()) + s.Retention
	if ttl < time.Second {
		ttl = time.Second
	}
	args := []any{
		s.tokenPrefix(), t.Token, ttl.Milliseconds(),
		"type", string(t.Type),
		"username", username,
		"created_at", t.CreatedAt.UTC().UnixMilli(),
		"expires_at", t.ExpiresAt.UTC().UnixMilli(),
	}
	err := saveTokenLua.Run(ctx, s.client,
		[]string{s.tokenKey(t.Token), s.indexKey(username, t.Type)}, args...).Err()
	if err != nil && strings.Contains(err.Error(), "conflict") {
		return repository.ErrConflict
	}
	return err
}

func (s *TokenStore) Get(ctx context.Context, token string) (*repository.UserToken, error) {
	m, err := s.client.HGetAll(ctx, s.tokenKey(token)).Result()
	if err != nil {
		return nil, err
	}
	if len(m) == 0 {
		return nil, repository.ErrNotFound
	}
	return decodeToken(token, m)
}

func (s *TokenStore) Consume(ctx context.Context, token string, typ types.TokenType) (*repository.UserToken, error) {
	res, err := consumeTokenLua.Run(ctx, s.client,
		[]string{s.tokenKey(token)}, string(typ), s.indexPrefix(), token).Slice()
	if errors.Is(err, rdb.Nil) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(res) == 0 {
		return nil, repository.ErrNotFound
	}
	m := make(map[string]string, len(res)/2)
	for i := 0; i+1 < len(res); i += 2 {
		k, _ := res[i].(string)
		v, _ := res[i+1].(string)
		m[k] = v
	}
	return decodeToken(token, m)
}

func (s *TokenStore) DeleteForUser(ctx context.Context, username string, typ types.TokenType) error {
	idx := s.indexKey(username, typ)
	tok, err := s.client.Get(ctx, idx).Result()
	if errors.Is(err, rdb.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe rdb.Pipeliner) error {
		pipe.Del(ctx, s.tokenKey(tok))
		pipe.Del(ctx, idx)
		return nil
	})
	return err
}

func decodeToken(token string, m map[string]string) (*repository.UserToken, error) {
	created, err := strconv.ParseInt(m["created_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis: token created_at: %w", err)
	}
	expires, err := strconv.ParseInt(m["expires_at"], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("redis: token expires_at: %w", err)
	}
	return &repository.UserToken{
		Token:     token,
		Type:      types.TokenType(m["type"]),
		Username:  m["username"],
		CreatedAt: time.UnixMilli(created).UTC(),
		ExpiresAt: time.UnixMilli(expires).UTC(),
	}, nil
}
