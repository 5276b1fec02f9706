package memory

import (
	"context"
	"sync"
	"time"

	"github.com/dropDatabas3/staffauth/internal/domain/repository"
)

// RetryStore implementa repository.RetryRepository.
type RetryStore struct {
	mu   sync.Mutex
	rows map[string]repository.UserRetries
	now  func() time.Time
}

// NewRetryStore crea un ledger vacío.
func NewRetryStore() *RetryStore {
	return &RetryStore{rows: make(map[string]repository.UserRetries), now: time.Now}
}

func (s *RetryStore) Increment(ctx context.Context, username string) (int, error) {
	key := repository.NormalizeUsername(username)
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.rows[key]
	r.Username = key
	r.Count++
	s.rows[key] = r
	return r.Count, nil
}

func (s *RetryStore) Reset(ctx context.Context, username string) error {
	key := repository.NormalizeUsername(username)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[key] = repository.UserRetries{Username: key, Count: 0, ResetAt: s.now().UTC()}
	return nil
}

func (s *RetryStore) Get(ctx context.Context, username string) (repository.UserRetries, error) {
	key := repository.NormalizeUsername(username)
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rows[key]
	if !ok {
		return repository.UserRetries{Username: key}, nil
	}
	return r, nil
}
