// Package local implementa el directorio del almacén local de credenciales.
package local

import (
	"context"
	"errors"
	"time"

	"github.com/dropDatabas3/staffauth/internal/directory"
	"github.com/dropDatabas3/staffauth/internal/domain/repository"
	"github.com/dropDatabas3/staffauth/internal/domain/types"
	"github.com/dropDatabas3/staffauth/internal/security/password"
)

// Config configura el hashing y la política de passwords locales.
type Config struct {
	Params      password.Params
	Policy      password.Policy
	PasswordAge time.Duration // vigencia de una password nueva; 0 = no expira
}

// Adapter es el directorio local: dueño de las credenciales y del flag locked.
type Adapter struct {
	users repository.UserRepository
	cfg   Config
	now   func() time.Time
}

// New crea el adaptador local.
func New(users repository.UserRepository, cfg Config) *Adapter {
	if cfg.Params.KeyLen == 0 {
		cfg.Params = password.Default
	}
	return &Adapter{users: users, cfg: cfg, now: time.Now}
}

func (a *Adapter) Source() types.AuthSource { return types.SourceAuth }

func (a *Adapter) FindByUsername(ctx context.Context, username string) (*repository.Identity, error) {
	u, err := a.users.GetByUsername(ctx, username)
	if repository.IsNotFound(err) {
		return nil, directory.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	// Los shadows de otros directorios no son identidades locales
	if u.Source != types.SourceAuth {
		return nil, directory.ErrNotFound
	}
	return u.ToIdentity(), nil
}

func (a *Adapter) FindByEmail(ctx context.Context, email string) ([]repository.Identity, error) {
	users, err := a.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	out := make([]repository.Identity, 0, len(users))
	for i := range users {
		if users[i].Source == types.SourceAuth {
			out = append(out, *users[i].ToIdentity())
		}
	}
	return out, nil
}

func (a *Adapter) CheckPassword(ctx context.Context, id *repository.Identity, plain string) (bool, error) {
	if id == nil || id.PasswordHash == "" {
		return false, nil
	}
	return password.Verify(plain, id.PasswordHash), nil
}

func (a *Adapter) ChangePassword(ctx context.Context, username, plain string) error {
	u, err := a.users.GetByUsername(ctx, username)
	if repository.IsNotFound(err) {
		return directory.ErrNotFound
	}
	if err != nil {
		return err
	}
	if ok, reasons := a.cfg.Policy.Validate(plain, u.Username); !ok {
		return &directory.PolicyError{Kind: directory.PolicyValidation, Reasons: reasons}
	}
	if u.PasswordHash != "" && password.Verify(plain, u.PasswordHash) {
		return &directory.PolicyError{Kind: directory.PolicyReused}
	}
	hash, err := password.Hash(a.cfg.Params, plain)
	if err != nil {
		return err
	}
	var expiry time.Time
	if a.cfg.PasswordAge > 0 {
		expiry = a.now().UTC().Add(a.cfg.PasswordAge)
	}
	return a.users.UpdatePassword(ctx, u.Username, hash, expiry)
}

func (a *Adapter) Lock(ctx context.Context, username string) error {
	return a.setLocked(ctx, username, true)
}

func (a *Adapter) Unlock(ctx context.Context, username string) error {
	return a.setLocked(ctx, username, false)
}

func (a *Adapter) setLocked(ctx context.Context, username string, locked bool) error {
	err := a.users.SetLocked(ctx, username, locked)
	if errors.Is(err, repository.ErrNotFound) {
		return directory.ErrNotFound
	}
	return err
}
