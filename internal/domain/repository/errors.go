package repository

import "errors"

// Errores que devuelven todas las implementaciones de store. Los services
// comparan con errors.Is; los drivers envuelven el error nativo con %w.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidInput = errors.New("invalid input")
)

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }
