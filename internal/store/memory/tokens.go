package memory

import (
	"context"
	"sync"

	"github.com/dropDatabas3/staffauth/internal/domain/repository"
	"github.com/dropDatabas3/staffauth/internal/domain/types"
)

type userTypeKey struct {
	username string
	typ      types.TokenType
}

// TokenStore implementa repository.UserTokenRepository.
type TokenStore struct {
	mu     sync.Mutex
	tokens map[string]repository.UserToken
	byUser map[userTypeKey]string
}

// NewTokenStore crea un store vacío.
func NewTokenStore() *TokenStore {
	return &TokenStore{
		tokens: make(map[string]repository.UserToken),
		byUser: make(map[userTypeKey]string),
	}
}

func (s *TokenStore) Save(ctx context.Context, t *repository.UserToken) error {
	if t == nil || t.Token == "" {
		return repository.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tokens[t.Token]; exists {
		return repository.ErrConflict
	}
	k := userTypeKey{username: repository.NormalizeUsername(t.Username), typ: t.Type}
	if prev, ok := s.byUser[k]; ok {
		delete(s.tokens, prev)
	}
	c := *t
	c.Username = k.username
	s.tokens[c.Token] = c
	s.byUser[k] = c.Token
	return nil
}

func (s *TokenStore) Get(ctx context.Context, token string) (*repository.UserToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[token]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (s *TokenStore) Consume(ctx context.Context, token string, typ types.TokenType) (*repository.UserToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[token]
	if !ok || t.Type != typ {
		return nil, repository.ErrNotFound
	}
	s.removeLocked(t)
	return &t, nil
}

func (s *TokenStore) DeleteForUser(ctx context.Context, username string, typ types.TokenType) error {
	k := userTypeKey{username: repository.NormalizeUsername(username), typ: typ}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok, ok := s.byUser[k]; ok {
		delete(s.tokens, tok)
		delete(s.byUser, k)
	}
	return nil
}

func (s *TokenStore) removeLocked(t repository.UserToken) {
	delete(s.tokens, t.Token)
	k := userTypeKey{username: t.Username, typ: t.Type}
	if s.byUser[k] == t.Token {
		delete(s.byUser, k)
	}
}
