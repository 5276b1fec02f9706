package authn

import (
	"errors"
	"sort"
	"strings"

	"github.com/dropDatabas3/staffauth/internal/domain/types"
	"github.com/dropDatabas3/staffauth/internal/mfa"
)

var (
	// ErrInvalidCredentials: password incorrecta por debajo del umbral.
	ErrInvalidCredentials = errors.New("authn: invalid credentials")
	// ErrUserNotFound: ningún directorio conoce el username.
	ErrUserNotFound = errors.New("authn: user not found")
	// ErrDisabled: la identidad existe pero está deshabilitada.
	ErrDisabled = errors.New("authn: account disabled")
	// ErrLocked: la cuenta está bloqueada o alcanzó el umbral de reintentos.
	ErrLocked = errors.New("authn: account locked")
	// ErrCredentialsExpired: password correcta pero vencida.
	ErrCredentialsExpired = errors.New("authn: credentials expired")
)

// MissingCredentialsError indica username o password en blanco.
type MissingCredentialsError struct {
	Field string // "username" | "password"
}

func (e *MissingCredentialsError) Error() string { return "authn: missing " + e.Field }

// ServiceUnavailableError indica que uno o más directorios no respondieron.
type ServiceUnavailableError struct {
	Sources []types.AuthSource
}

func (e *ServiceUnavailableError) Error() string {
	parts := make([]string, len(e.Sources))
	for i, s := range e.Sources {
		parts[i] = string(s)
	}
	return "authn: service unavailable: " + strings.Join(parts, ",")
}

// Has indica si el directorio está entre los caídos.
func (e *ServiceUnavailableError) Has(src types.AuthSource) bool {
	for _, s := range e.Sources {
		if s == src {
			return true
		}
	}
	return false
}

// MfaRequiredError suspende el login hasta completar el desafío MFA.
type MfaRequiredError struct {
	Username string
}

func (e *MfaRequiredError) Error() string { return "authn: mfa required for " + e.Username }

// Motivos hacia afuera. Los errores de identidad se colapsan en "invalid"
// para no revelar si el usuario existe.
const (
	OutwardInvalid         = "invalid"
	OutwardLocked          = "locked"
	OutwardMissingUser     = "missinguser"
	OutwardMissingPass     = "missingpass"
	OutwardExpired         = "expired"
	OutwardMfaUnavailable  = "mfaunavailable"
	OutwardMfaRequired     = "mfarequired"
	OutwardNomisDown       = "nomisdown"
	OutwardDeliusDown      = "deliusdown"
	OutwardNomisDeliusDown = "nomisdeliusdown"
	OutwardUnavailable     = "unavailable"
)

// OutwardReasons traduce un error de Authenticate a los motivos que ve el
// usuario: el motivo principal y, si corresponde, el directorio caído.
// unavailable es el conjunto de directorios anotados en el request.
func OutwardReasons(err error, unavailable []types.AuthSource) []string {
	var (
		mce *MissingCredentialsError
		sue *ServiceUnavailableError
		mre *MfaRequiredError
	)
	var out []string
	switch {
	case err == nil:
		return nil
	case errors.As(err, &mce):
		if mce.Field == "password" {
			out = []string{OutwardMissingPass}
		} else {
			out = []string{OutwardMissingUser}
		}
		return out
	case errors.Is(err, ErrLocked):
		return []string{OutwardLocked}
	case errors.Is(err, ErrCredentialsExpired):
		return []string{OutwardExpired}
	case errors.Is(err, mfa.ErrMfaUnavailable):
		return []string{OutwardMfaUnavailable}
	case errors.As(err, &mre):
		return []string{OutwardMfaRequired}
	case errors.As(err, &sue):
		unavailable = append(unavailable, sue.Sources...)
	}
	out = []string{OutwardInvalid}
	if down := downReason(unavailable); down != "" {
		out = append(out, down)
	}
	return out
}

func downReason(sources []types.AuthSource) string {
	set := map[types.AuthSource]bool{}
	for _, s := range sources {
		set[s] = true
	}
	switch {
	case set[types.SourceNomis] && set[types.SourceDelius]:
		return OutwardNomisDeliusDown
	case set[types.SourceNomis]:
		return OutwardNomisDown
	case set[types.SourceDelius]:
		return OutwardDeliusDown
	case len(set) > 0:
		return OutwardUnavailable
	}
	return ""
}

func sortedSources(src []types.AuthSource) []types.AuthSource {
	out := append([]types.AuthSource(nil), src...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
