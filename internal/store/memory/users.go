// Package memory implementa los repositorios en memoria de proceso.
// Útil para desarrollo y testing; cada operación es atómica bajo un mutex.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dropDatabas3/staffauth/internal/domain/repository"
)

// UserStore implementa repository.UserRepository.
type UserStore struct {
	mu    sync.RWMutex
	users map[string]repository.User
}

// NewUserStore crea un store vacío.
func NewUserStore() *UserStore {
	return &UserStore{users: make(map[string]repository.User)}
}

func (s *UserStore) GetByUsername(ctx context.Context, username string) (*repository.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[repository.NormalizeUsername(username)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) ([]repository.User, error) {
	email = repository.NormalizeEmail(email)
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []repository.User
	for _, u := range s.users {
		if u.Email != "" && u.Email == email {
			out = append(out, *cloneUser(u))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

func (s *UserStore) Create(ctx context.Context, u *repository.User) error {
	if u == nil || u.Username == "" {
		return repository.ErrInvalidInput
	}
	c := *cloneUser(*u)
	c.Username = repository.NormalizeUsername(c.Username)
	c.Email = repository.NormalizeEmail(c.Email)
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[c.Username]; exists {
		return repository.ErrConflict
	}
	s.users[c.Username] = c
	return nil
}

func (s *UserStore) Update(ctx context.Context, u *repository.User) error {
	if u == nil {
		return repository.ErrInvalidInput
	}
	key := repository.NormalizeUsername(u.Username)
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok := s.users[key]
	if !ok {
		return repository.ErrNotFound
	}
	c := *cloneUser(*u)
	c.Username = key
	c.Email = repository.NormalizeEmail(c.Email)
	c.ID = prev.ID
	c.CreatedAt = prev.CreatedAt
	s.users[key] = c
	return nil
}

func (s *UserStore) SetLocked(ctx context.Context, username string, locked bool) error {
	key := repository.NormalizeUsername(username)
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[key]
	if !ok {
		return repository.ErrNotFound
	}
	u.Locked = locked
	s.users[key] = u
	return nil
}

func (s *UserStore) UpdatePassword(ctx context.Context, username, hash string, expiry time.Time) error {
	key := repository.NormalizeUsername(username)
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[key]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	u.PasswordExpiry = expiry
	s.users[key] = u
	return nil
}

func cloneUser(u repository.User) *repository.User {
	c := u
	c.Authorities = append([]string(nil), u.Authorities...)
	c.Contacts = append([]repository.Contact(nil), u.Contacts...)
	return &c
}
