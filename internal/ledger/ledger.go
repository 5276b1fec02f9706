// Package ledger lleva la cuenta de intentos fallidos por username y decide
// el bloqueo de cuentas al superar el umbral configurado.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dropDatabas3/staffauth/internal/directory"
	"github.com/dropDatabas3/staffauth/internal/domain/repository"
	"github.com/dropDatabas3/staffauth/internal/domain/types"
	"github.com/dropDatabas3/staffauth/internal/identity"
	"github.com/dropDatabas3/staffauth/internal/observability/logger"
)

// DefaultThreshold es el umbral de bloqueo si la config no define otro.
const DefaultThreshold = 3

// Deps contiene las dependencias del ledger.
type Deps struct {
	Retries  repository.RetryRepository
	Identity *identity.Service
	// Threshold se consulta una vez por intento; permite recargar config en caliente.
	Threshold func() int
	Now       func() time.Time
}

// Ledger es el registro de reintentos.
type Ledger struct {
	retries   repository.RetryRepository
	ids       *identity.Service
	threshold func() int
	now       func() time.Time
}

// New crea el ledger.
func New(deps Deps) *Ledger {
	if deps.Threshold == nil {
		deps.Threshold = func() int { return DefaultThreshold }
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Ledger{retries: deps.Retries, ids: deps.Identity, threshold: deps.Threshold, now: deps.Now}
}

// Threshold retorna el umbral vigente (mínimo 1).
func (l *Ledger) Threshold() int {
	if n := l.threshold(); n > 0 {
		return n
	}
	return DefaultThreshold
}

// Attempts retorna la cantidad de fallos consecutivos registrados.
func (l *Ledger) Attempts(ctx context.Context, username string) (int, error) {
	r, err := l.retries.Get(ctx, repository.NormalizeUsername(username))
	if repository.IsNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return r.Count, nil
}

// IncrementRetries suma un fallo y retorna el nuevo total.
func (l *Ledger) IncrementRetries(ctx context.Context, username string) (int, error) {
	n, err := l.retries.Increment(ctx, repository.NormalizeUsername(username))
	if err != nil {
		return 0, fmt.Errorf("increment retries: %w", err)
	}
	return n, nil
}

// ResetRetries vuelve el contador a cero.
func (l *Ledger) ResetRetries(ctx context.Context, username string) error {
	if err := l.retries.Reset(ctx, repository.NormalizeUsername(username)); err != nil {
		return fmt.Errorf("reset retries: %w", err)
	}
	return nil
}

// ResetRetriesAndRecordLogin limpia el contador y registra el último login
// en el registro local, creándolo si la identidad es externa y aún no tiene
// shadow.
func (l *Ledger) ResetRetriesAndRecordLogin(ctx context.Context, id *repository.Identity) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("ledger"),
		logger.Op("ResetRetriesAndRecordLogin"),
		logger.Username(id.Username),
	)

	if err := l.ResetRetries(ctx, id.Username); err != nil {
		return err
	}

	users := l.ids.Users()
	u, err := users.GetByUsername(ctx, id.Username)
	switch {
	case repository.IsNotFound(err):
		if id.Source == types.SourceAuth {
			return nil
		}
		if u, err = l.ids.Materialize(ctx, id); err != nil {
			return fmt.Errorf("create shadow: %w", err)
		}
	case err != nil:
		return err
	}

	u.LastLoggedIn = l.now().UTC()
	// El directorio B es autoritativo para sus datos de contacto
	if id.Source == types.SourceDelius {
		u.Source = id.Source
		u.Email = repository.NormalizeEmail(id.Email)
		u.Verified = id.Verified
		u.FirstName = id.FirstName
		u.LastName = id.LastName
	}
	if err := users.Update(ctx, u); err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	id.UUID = u.ID
	log.Debug("login recorded")
	return nil
}

// LockAccount pide al directorio dueño que bloquee la cuenta y vuelve el
// contador a cero. Los directorios que no persisten bloqueos dejan la
// decisión como transitoria: el intento actual se informa como bloqueado y
// el siguiente arranca de cero.
func (l *Ledger) LockAccount(ctx context.Context, id *repository.Identity) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("ledger"),
		logger.Op("LockAccount"),
		logger.Username(id.Username),
		logger.AuthSource(string(id.Source)),
	)

	a, ok := l.ids.Adapter(id.Source)
	if !ok {
		log.Info("lockout is transient, no directory for source")
		return l.ResetRetries(ctx, id.Username)
	}
	err := a.Lock(ctx, id.Username)
	switch {
	case errors.Is(err, directory.ErrUnsupported):
		log.Info("lockout is transient for this directory")
	case err != nil:
		return fmt.Errorf("lock account: %w", err)
	default:
		log.Info("account locked")
	}
	return l.ResetRetries(ctx, id.Username)
}

// Unlock desbloquea la cuenta en su directorio y limpia el contador.
func (l *Ledger) Unlock(ctx context.Context, username string) error {
	id, err := l.ids.FindMasterIdentity(ctx, username)
	if err != nil {
		return err
	}
	if a, ok := l.ids.Adapter(id.Source); ok {
		if err := a.Unlock(ctx, id.Username); err != nil && !errors.Is(err, directory.ErrUnsupported) {
			return fmt.Errorf("unlock account: %w", err)
		}
	}
	return l.ResetRetries(ctx, id.Username)
}
