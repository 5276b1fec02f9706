// Package azure implementa el broker federado. Las identidades federadas se
// registran localmente con source azuread al primer login delegado y nunca
// validan passwords en este servicio.
package azure

import (
	"context"

	"github.com/dropDatabas3/staffauth/internal/directory"
	"github.com/dropDatabas3/staffauth/internal/domain/repository"
	"github.com/dropDatabas3/staffauth/internal/domain/types"
)

// Adapter expone las identidades federadas ya registradas.
type Adapter struct {
	users repository.UserRepository
}

// New crea el adaptador federado.
func New(users repository.UserRepository) *Adapter {
	return &Adapter{users: users}
}

func (a *Adapter) Source() types.AuthSource { return types.SourceAzureAD }

func (a *Adapter) FindByUsername(ctx context.Context, username string) (*repository.Identity, error) {
	u, err := a.users.GetByUsername(ctx, username)
	if repository.IsNotFound(err) {
		return nil, directory.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if u.Source != types.SourceAzureAD {
		return nil, directory.ErrNotFound
	}
	return u.ToIdentity(), nil
}

func (a *Adapter) FindByEmail(ctx context.Context, email string) ([]repository.Identity, error) {
	users, err := a.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	var out []repository.Identity
	for i := range users {
		if users[i].Source == types.SourceAzureAD {
			out = append(out, *users[i].ToIdentity())
		}
	}
	return out, nil
}

// CheckPassword nunca verifica localmente: la autenticación ocurre en el broker.
func (a *Adapter) CheckPassword(context.Context, *repository.Identity, string) (bool, error) {
	return false, directory.ErrUnsupported
}

func (a *Adapter) ChangePassword(context.Context, string, string) error {
	return directory.ErrUnsupported
}

func (a *Adapter) Lock(context.Context, string) error { return directory.ErrUnsupported }

func (a *Adapter) Unlock(context.Context, string) error { return directory.ErrUnsupported }
