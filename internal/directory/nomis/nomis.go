// Package nomis implementa el directorio externo de personal que es dueño
// de sus propias credenciales y de su estado de bloqueo.
package nomis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/staffauth/internal/directory"
	"github.com/dropDatabas3/staffauth/internal/domain/repository"
	"github.com/dropDatabas3/staffauth/internal/domain/types"
)

// errorCodeReusedPassword es el código que devuelve el API cuando la
// password nueva ya fue usada.
const errorCodeReusedPassword = 1001

// Adapter habla con el API REST del directorio.
type Adapter struct {
	client *directory.HTTPClient
}

// New crea el adaptador.
func New(cfg directory.HTTPConfig) *Adapter {
	return &Adapter{client: directory.NewHTTPClient(types.SourceNomis, cfg)}
}

type userResponse struct {
	Username       string     `json:"username"`
	StaffID        int64      `json:"staffId"`
	FirstName      string     `json:"firstName"`
	LastName       string     `json:"lastName"`
	Email          string     `json:"email"`
	AccountStatus  string     `json:"accountStatus"`
	Enabled        bool       `json:"enabled"`
	PasswordExpiry *time.Time `json:"passwordExpiry"`
	Roles          []string   `json:"roles"`
}

type errorResponse struct {
	ErrorCode   int    `json:"errorCode"`
	UserMessage string `json:"userMessage"`
}

func (u userResponse) toIdentity() *repository.Identity {
	status := strings.ToUpper(u.AccountStatus)
	id := &repository.Identity{
		Username:  repository.NormalizeUsername(u.Username),
		UserID:    strconv.FormatInt(u.StaffID, 10),
		Email:     repository.NormalizeEmail(u.Email),
		Verified:  strings.TrimSpace(u.Email) != "",
		Enabled:   u.Enabled,
		Locked:    strings.Contains(status, "LOCKED"),
		Source:    types.SourceNomis,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
	if u.PasswordExpiry != nil {
		id.PasswordExpiry = *u.PasswordExpiry
	}
	for _, r := range u.Roles {
		r = strings.ToUpper(strings.TrimPrefix(strings.TrimSpace(r), "ROLE_"))
		if r != "" {
			id.Authorities = append(id.Authorities, "ROLE_"+r)
		}
	}
	return id
}

func userPath(username string) string {
	return "/users/" + url.PathEscape(repository.NormalizeUsername(username))
}

func (a *Adapter) Source() types.AuthSource { return types.SourceNomis }

func (a *Adapter) FindByUsername(ctx context.Context, username string) (*repository.Identity, error) {
	var resp userResponse
	if err := a.client.Do(ctx, http.MethodGet, userPath(username), nil, &resp); err != nil {
		return nil, err
	}
	return resp.toIdentity(), nil
}

func (a *Adapter) FindByEmail(ctx context.Context, email string) ([]repository.Identity, error) {
	var resp []userResponse
	path := "/users/user?email=" + url.QueryEscape(repository.NormalizeEmail(email))
	err := a.client.Do(ctx, http.MethodGet, path, nil, &resp)
	if errors.Is(err, directory.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]repository.Identity, 0, len(resp))
	for _, u := range resp {
		out = append(out, *u.toIdentity())
	}
	return out, nil
}

func (a *Adapter) CheckPassword(ctx context.Context, id *repository.Identity, password string) (bool, error) {
	err := a.client.Do(ctx, http.MethodPost, userPath(id.Username)+"/authenticate",
		map[string]string{"password": password}, nil)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, directory.ErrUnauthorized):
		return false, nil
	}
	return false, err
}

func (a *Adapter) ChangePassword(ctx context.Context, username, password string) error {
	err := a.client.Do(ctx, http.MethodPut, userPath(username)+"/change-password",
		map[string]string{"password": password}, nil)
	var se *directory.StatusError
	if errors.As(err, &se) && se.Status == http.StatusBadRequest {
		var er errorResponse
		_ = json.Unmarshal(se.Body, &er)
		if er.ErrorCode == errorCodeReusedPassword {
			return &directory.PolicyError{Kind: directory.PolicyReused}
		}
		pe := &directory.PolicyError{Kind: directory.PolicyValidation}
		if er.UserMessage != "" {
			pe.Reasons = []string{er.UserMessage}
		}
		return pe
	}
	return err
}

func (a *Adapter) Lock(ctx context.Context, username string) error {
	return a.client.Do(ctx, http.MethodPut, userPath(username)+"/lock-user", nil, nil)
}

func (a *Adapter) Unlock(ctx context.Context, username string) error {
	return a.client.Do(ctx, http.MethodPut, userPath(username)+"/unlock-user", nil, nil)
}
