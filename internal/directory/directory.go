// Package directory define el contrato de los adaptadores de directorio
// (almacén local, directorios externos de personal y broker federado) y la
// taxonomía de errores que comparten.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dropDatabas3/staffauth/internal/domain/repository"
	"github.com/dropDatabas3/staffauth/internal/domain/types"
)

// Adapter envuelve un directorio de usuarios.
type Adapter interface {
	// Source identifica el directorio.
	Source() types.AuthSource

	// FindByUsername retorna ErrNotFound si no hay registro y un
	// *UnavailableError si el directorio no respondió.
	FindByUsername(ctx context.Context, username string) (*repository.Identity, error)

	// FindByEmail lista las identidades con ese email (vacío si ninguna).
	FindByEmail(ctx context.Context, email string) ([]repository.Identity, error)

	// CheckPassword verifica la password contra el directorio dueño de las
	// credenciales. Retorna ErrUnsupported si el directorio no valida passwords.
	CheckPassword(ctx context.Context, id *repository.Identity, password string) (bool, error)

	// ChangePassword reemplaza la password. Las violaciones de política se
	// reportan como *PolicyError.
	ChangePassword(ctx context.Context, username, password string) error

	// Lock y Unlock cambian el estado de bloqueo en el directorio.
	// Retornan ErrUnsupported si el bloqueo no se persiste en el directorio.
	Lock(ctx context.Context, username string) error
	Unlock(ctx context.Context, username string) error
}

var (
	// ErrNotFound indica que el directorio no tiene el usuario.
	ErrNotFound = errors.New("directory: not found")

	// ErrUnauthorized indica que el directorio rechazó las credenciales.
	ErrUnauthorized = errors.New("directory: unauthorized")

	// ErrUnsupported indica que la operación no aplica a este directorio.
	ErrUnsupported = errors.New("directory: operation not supported")

	// ErrUnavailable indica que el directorio no respondió (red, timeout o 5xx).
	ErrUnavailable = errors.New("directory: service unavailable")

	// ErrPasswordPolicy agrupa las violaciones de política de password.
	ErrPasswordPolicy = errors.New("directory: password policy violation")
)

// UnavailableError identifica qué directorio no respondió.
type UnavailableError struct {
	Source types.AuthSource
	Err    error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("directory %s unavailable: %v", e.Source, e.Err)
}

func (e *UnavailableError) Is(target error) bool { return target == ErrUnavailable }

func (e *UnavailableError) Unwrap() error { return e.Err }

// PolicyKind distingue las violaciones de política.
type PolicyKind string

const (
	PolicyReused     PolicyKind = "reused"
	PolicyValidation PolicyKind = "validation"
)

// PolicyError es una violación de política reportada por un directorio.
type PolicyError struct {
	Kind    PolicyKind
	Reasons []string
}

func (e *PolicyError) Error() string {
	if len(e.Reasons) == 0 {
		return "password policy violation: " + string(e.Kind)
	}
	return "password policy violation: " + string(e.Kind) + " (" + strings.Join(e.Reasons, ",") + ")"
}

func (e *PolicyError) Is(target error) bool { return target == ErrPasswordPolicy }

// UnavailableSource extrae el directorio de un error de indisponibilidad.
func UnavailableSource(err error) (types.AuthSource, bool) {
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return ue.Source, true
	}
	return "", false
}

// IsNotFound verifica si el error es ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// IsUnavailable verifica si el error es de indisponibilidad.
func IsUnavailable(err error) bool { return errors.Is(err, ErrUnavailable) }
