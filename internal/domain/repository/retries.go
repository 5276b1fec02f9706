package repository

import (
	"context"
	"time"
)

// UserRetries es el contador de intentos fallidos consecutivos.
type UserRetries struct {
	Username string
	Count    int
	ResetAt  time.Time
}

// RetryRepository mantiene el ledger de reintentos. Increment debe ser un
// read-modify-write atómico por username.
type RetryRepository interface {
	// Increment suma uno y devuelve el nuevo valor.
	Increment(ctx context.Context, username string) (int, error)

	// Reset pone el contador en cero y registra el momento.
	Reset(ctx context.Context, username string) error

	// Get devuelve el estado actual (Count 0 si no hay registro).
	Get(ctx context.Context, username string) (UserRetries, error)
}
