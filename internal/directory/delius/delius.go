// Package delius implementa el segundo directorio externo de personal.
// El directorio no persiste bloqueos originados aquí y no acepta usernames
// con formato de email.
package delius

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/dropDatabas3/staffauth/internal/directory"
	"github.com/dropDatabas3/staffauth/internal/domain/repository"
	"github.com/dropDatabas3/staffauth/internal/domain/types"
)

// BaseAuthority se concede a toda identidad de este directorio.
const BaseAuthority = "ROLE_PROBATION"

// Config configura el adaptador.
type Config struct {
	Enabled      bool
	HTTP         directory.HTTPConfig
	RoleMappings map[string][]string // código de rol remoto -> authorities
}

// Adapter habla con el API REST del directorio.
type Adapter struct {
	enabled  bool
	client   *directory.HTTPClient
	mappings map[string][]string
}

// New crea el adaptador.
func New(cfg Config) *Adapter {
	return &Adapter{
		enabled:  cfg.Enabled,
		client:   directory.NewHTTPClient(types.SourceDelius, cfg.HTTP),
		mappings: cfg.RoleMappings,
	}
}

type userDetails struct {
	UserID    string `json:"userId"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	Surname   string `json:"surname"`
	Email     string `json:"email"`
	Enabled   bool   `json:"enabled"`
	Roles     []struct {
		Code string `json:"code"`
	} `json:"roles"`
}

func (a *Adapter) toIdentity(u userDetails) *repository.Identity {
	id := &repository.Identity{
		Username:    repository.NormalizeUsername(u.Username),
		UserID:      u.UserID,
		Email:       repository.NormalizeEmail(u.Email),
		Verified:    true,
		Enabled:     u.Enabled,
		Source:      types.SourceDelius,
		FirstName:   u.FirstName,
		LastName:    u.Surname,
		Authorities: []string{BaseAuthority},
	}
	seen := map[string]bool{BaseAuthority: true}
	for _, r := range u.Roles {
		for _, auth := range a.mappings[r.Code] {
			if !seen[auth] {
				seen[auth] = true
				id.Authorities = append(id.Authorities, auth)
			}
		}
	}
	return id
}

// IsEmailStyle indica si el username tiene formato email; el directorio no
// admite ese tipo de usernames.
func IsEmailStyle(username string) bool {
	return strings.Contains(username, "@")
}

func (a *Adapter) Source() types.AuthSource { return types.SourceDelius }

func (a *Adapter) FindByUsername(ctx context.Context, username string) (*repository.Identity, error) {
	if !a.enabled || IsEmailStyle(username) {
		return nil, directory.ErrNotFound
	}
	var resp userDetails
	err := a.client.Do(ctx, http.MethodGet, "/users/"+url.PathEscape(username)+"/details", nil, &resp)
	if err != nil {
		return nil, clientErrorAsNotFound(err)
	}
	return a.toIdentity(resp), nil
}

func (a *Adapter) FindByEmail(ctx context.Context, email string) ([]repository.Identity, error) {
	if !a.enabled {
		return nil, nil
	}
	var resp []userDetails
	path := "/users/search/email/" + url.PathEscape(repository.NormalizeEmail(email)) + "/details"
	if err := a.client.Do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		if err = clientErrorAsNotFound(err); errors.Is(err, directory.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	out := make([]repository.Identity, 0, len(resp))
	for _, u := range resp {
		out = append(out, *a.toIdentity(u))
	}
	return out, nil
}

func (a *Adapter) CheckPassword(ctx context.Context, id *repository.Identity, password string) (bool, error) {
	if !a.enabled {
		return false, directory.ErrUnsupported
	}
	err := a.client.Do(ctx, http.MethodPost, "/authenticate",
		map[string]string{"username": id.Username, "password": password}, nil)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, directory.ErrUnauthorized):
		return false, nil
	}
	return false, err
}

func (a *Adapter) ChangePassword(ctx context.Context, username, password string) error {
	if !a.enabled {
		return directory.ErrUnsupported
	}
	err := a.client.Do(ctx, http.MethodPost, "/users/"+url.PathEscape(username)+"/password",
		map[string]string{"password": password}, nil)
	var se *directory.StatusError
	if errors.As(err, &se) && se.Status == http.StatusBadRequest {
		return &directory.PolicyError{Kind: directory.PolicyValidation}
	}
	return err
}

// Lock no se persiste en el directorio: el bloqueo es una decisión transitoria del ledger.
func (a *Adapter) Lock(context.Context, string) error { return directory.ErrUnsupported }

func (a *Adapter) Unlock(context.Context, string) error { return directory.ErrUnsupported }

// clientErrorAsNotFound trata cualquier 4xx como ausencia de usuario.
func clientErrorAsNotFound(err error) error {
	var se *directory.StatusError
	if errors.As(err, &se) || errors.Is(err, directory.ErrUnauthorized) {
		return directory.ErrNotFound
	}
	return err
}
