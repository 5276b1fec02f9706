package repository

import (
	"strings"
	"time"

	"github.com/dropDatabas3/staffauth/internal/domain/types"
)

// Identity es la vista canónica de una persona resuelta desde cualquier
// directorio ("master identity" cuando gana la precedencia).
type Identity struct {
	Username       string
	UserID         string // id en el directorio de origen (staff id, user id, uuid local)
	UUID           string // uuid del registro local, vacío si aún no hay shadow
	Email          string
	Verified       bool
	Enabled        bool
	Locked         bool
	Source         types.AuthSource
	Authorities    []string
	FirstName      string
	LastName       string
	PasswordHash   string
	PasswordExpiry time.Time
}

// Name devuelve nombre y apellido separados por espacio.
func (i *Identity) Name() string {
	return strings.TrimSpace(i.FirstName + " " + i.LastName)
}

// HasAuthority verifica si la identidad tiene el rol dado.
func (i *Identity) HasAuthority(role string) bool {
	for _, a := range i.Authorities {
		if strings.EqualFold(a, role) {
			return true
		}
	}
	return false
}

// CredentialsExpired indica si la password expiró respecto de now.
func (i *Identity) CredentialsExpired(now time.Time) bool {
	return !i.PasswordExpiry.IsZero() && i.PasswordExpiry.Before(now)
}
