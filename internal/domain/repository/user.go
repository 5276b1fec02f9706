package repository

import (
	"context"
	"strings"
	"time"

	"github.com/dropDatabas3/staffauth/internal/domain/types"
)

// Contact es un método de contacto secundario verificable.
type Contact struct {
	Type     types.ContactType
	Value    string
	Verified bool
}

// User es el registro local de una persona. Para la fuente auth es el dueño
// de las credenciales; para el resto es un "shadow" que ancla tokens y
// metadatos de cuenta.
type User struct {
	ID             string // uuid
	Username       string // mayúsculas
	Email          string // minúsculas, opcional
	Verified       bool
	Enabled        bool
	Locked         bool
	Source         types.AuthSource
	Authorities    []string
	PasswordHash   string    // solo source auth
	PasswordExpiry time.Time // zero = nunca expira
	LastLoggedIn   time.Time
	MfaPreference  types.MfaPreference
	Contacts       []Contact
	FirstName      string
	LastName       string
	CreatedAt      time.Time
}

// Contact devuelve el contacto del tipo dado, si existe.
func (u *User) Contact(t types.ContactType) (Contact, bool) {
	for _, c := range u.Contacts {
		if c.Type == t {
			return c, true
		}
	}
	return Contact{}, false
}

// VerifiedContact devuelve el valor del contacto si existe y está verificado.
func (u *User) VerifiedContact(t types.ContactType) (string, bool) {
	c, ok := u.Contact(t)
	if !ok || !c.Verified || strings.TrimSpace(c.Value) == "" {
		return "", false
	}
	return c.Value, true
}

// HasVerifiedEmail indica si el email principal está presente y verificado.
func (u *User) HasVerifiedEmail() bool {
	return u.Verified && strings.TrimSpace(u.Email) != ""
}

// ToIdentity proyecta el registro local a la vista canónica.
func (u *User) ToIdentity() *Identity {
	return &Identity{
		Username:       u.Username,
		UserID:         u.ID,
		UUID:           u.ID,
		Email:          u.Email,
		Verified:       u.Verified,
		Enabled:        u.Enabled,
		Locked:         u.Locked,
		Source:         u.Source,
		Authorities:    append([]string(nil), u.Authorities...),
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		PasswordHash:   u.PasswordHash,
		PasswordExpiry: u.PasswordExpiry,
	}
}

// UserRepository define operaciones sobre usuarios locales.
type UserRepository interface {
	// GetByUsername busca por username (se normaliza a mayúsculas).
	// Retorna ErrNotFound si no existe.
	GetByUsername(ctx context.Context, username string) (*User, error)

	// FindByEmail lista los usuarios con ese email, ordenados por username.
	FindByEmail(ctx context.Context, email string) ([]User, error)

	// Create persiste un usuario nuevo.
	// Retorna ErrConflict si el username ya existe.
	Create(ctx context.Context, u *User) error

	// Update reemplaza los campos mutables de un usuario existente.
	// Retorna ErrNotFound si no existe.
	Update(ctx context.Context, u *User) error

	// SetLocked marca/desmarca el flag locked. Retorna ErrNotFound si no existe.
	SetLocked(ctx context.Context, username string, locked bool) error

	// UpdatePassword guarda un nuevo hash y su expiración.
	UpdatePassword(ctx context.Context, username, hash string, expiry time.Time) error
}

// NormalizeUsername aplica la normalización canónica de usernames.
func NormalizeUsername(v string) string {
	return strings.ToUpper(strings.TrimSpace(v))
}

// NormalizeEmail aplica la normalización canónica de emails.
func NormalizeEmail(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}
