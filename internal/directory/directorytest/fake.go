// Package directorytest provee un directorio en memoria para tests.
package directorytest

import (
	"context"
	"errors"
	"sync"

	"github.com/dropDatabas3/staffauth/internal/directory"
	"github.com/dropDatabas3/staffauth/internal/domain/repository"
	"github.com/dropDatabas3/staffauth/internal/domain/types"
)

// Fake implementa directory.Adapter sobre un mapa.
type Fake struct {
	Src types.AuthSource

	mu        sync.Mutex
	ids       map[string]repository.Identity
	passwords map[string]string
	down      bool
	// LockUnsupported hace que Lock/Unlock devuelvan ErrUnsupported.
	LockUnsupported bool
	// PolicyErr, si no es nil, lo devuelve ChangePassword.
	PolicyErr error

	Lookups int
	Changed map[string]string
}

// New crea un directorio vacío.
func New(src types.AuthSource) *Fake {
	return &Fake{
		Src:       src,
		ids:       make(map[string]repository.Identity),
		passwords: make(map[string]string),
		Changed:   make(map[string]string),
	}
}

// Add registra una identidad con su password.
func (f *Fake) Add(id repository.Identity, password string) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	id.Username = repository.NormalizeUsername(id.Username)
	if id.Source == "" {
		id.Source = f.Src
	}
	f.ids[id.Username] = id
	f.passwords[id.Username] = password
	return f
}

// SetDown simula un directorio que no responde.
func (f *Fake) SetDown(down bool) {
	f.mu.Lock()
	f.down = down
	f.mu.Unlock()
}

// Get devuelve la identidad registrada.
func (f *Fake) Get(username string) repository.Identity {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ids[repository.NormalizeUsername(username)]
}

func (f *Fake) unavailable() error {
	return &directory.UnavailableError{Source: f.Src, Err: errors.New("connection refused")}
}

func (f *Fake) Source() types.AuthSource { return f.Src }

func (f *Fake) FindByUsername(ctx context.Context, username string) (*repository.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Lookups++
	if f.down {
		return nil, f.unavailable()
	}
	id, ok := f.ids[repository.NormalizeUsername(username)]
	if !ok {
		return nil, directory.ErrNotFound
	}
	id.Authorities = append([]string(nil), id.Authorities...)
	return &id, nil
}

func (f *Fake) FindByEmail(ctx context.Context, email string) ([]repository.Identity, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, f.unavailable()
	}
	var out []repository.Identity
	for _, id := range f.ids {
		if id.Email == repository.NormalizeEmail(email) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (f *Fake) CheckPassword(ctx context.Context, id *repository.Identity, password string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Src == types.SourceAzureAD {
		return false, directory.ErrUnsupported
	}
	if f.down {
		return false, f.unavailable()
	}
	return f.passwords[id.Username] == password, nil
}

func (f *Fake) ChangePassword(ctx context.Context, username, password string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return f.unavailable()
	}
	if f.PolicyErr != nil {
		return f.PolicyErr
	}
	key := repository.NormalizeUsername(username)
	if _, ok := f.ids[key]; !ok {
		return directory.ErrNotFound
	}
	f.passwords[key] = password
	f.Changed[key] = password
	return nil
}

func (f *Fake) Lock(ctx context.Context, username string) error {
	return f.setLocked(username, true)
}

func (f *Fake) Unlock(ctx context.Context, username string) error {
	return f.setLocked(username, false)
}

func (f *Fake) setLocked(username string, locked bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.LockUnsupported {
		return directory.ErrUnsupported
	}
	key := repository.NormalizeUsername(username)
	id, ok := f.ids[key]
	if !ok {
		return directory.ErrNotFound
	}
	id.Locked = locked
	f.ids[key] = id
	return nil
}
