package repository

import (
	"context"
	"time"

	"github.com/dropDatabas3/staffauth/internal/domain/types"
)

// UserToken es un token opaco de un solo uso asociado a un usuario.
type UserToken struct {
	Token     string
	Type      types.TokenType
	Username  string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// HasExpired indica si el token venció respecto de now.
func (t *UserToken) HasExpired(now time.Time) bool {
	return now.After(t.ExpiresAt)
}

// UserTokenRepository persiste tokens de corta vida. Todas las operaciones
// de consumo deben ser atómicas por token.
type UserTokenRepository interface {
	// Save guarda el token reemplazando cualquier token previo del mismo
	// usuario y tipo. Retorna ErrConflict si el identificador ya existe.
	Save(ctx context.Context, t *UserToken) error

	// Get busca un token por su identificador. Retorna ErrNotFound si no existe.
	Get(ctx context.Context, token string) (*UserToken, error)

	// Consume borra atómicamente el token si es del tipo dado y devuelve lo
	// que había. Dos consumos concurrentes no pueden devolver ambos el token.
	// Retorna ErrNotFound si no existe o es de otro tipo.
	Consume(ctx context.Context, token string, t types.TokenType) (*UserToken, error)

	// DeleteForUser borra el token del tipo dado para el usuario (no-op si no hay).
	DeleteForUser(ctx context.Context, username string, t types.TokenType) error
}
