// Package authn implementa el intento de login con bloqueo por reintentos:
// valida la entrada, resuelve la identidad, delega la verificación de
// password al directorio dueño, lleva el ledger y decide si hace falta MFA.
package authn

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dropDatabas3/staffauth/internal/audit"
	"github.com/dropDatabas3/staffauth/internal/directory"
	"github.com/dropDatabas3/staffauth/internal/domain/repository"
	"github.com/dropDatabas3/staffauth/internal/domain/types"
	"github.com/dropDatabas3/staffauth/internal/identity"
	"github.com/dropDatabas3/staffauth/internal/ledger"
	"github.com/dropDatabas3/staffauth/internal/metrics"
	"github.com/dropDatabas3/staffauth/internal/observability/logger"
	"github.com/dropDatabas3/staffauth/internal/requestctx"
)

// MfaDecider decide si el cliente exige MFA para la identidad.
type MfaDecider interface {
	ClientNeedsMfa(ctx context.Context, clientID string, id *repository.Identity) (bool, error)
}

// Deps contiene las dependencias del provider.
type Deps struct {
	Identity *identity.Service
	Ledger   *ledger.Ledger
	Mfa      MfaDecider // nil = nunca MFA
	Audit    audit.Recorder
	Now      func() time.Time
}

// Provider ejecuta intentos de autenticación.
type Provider struct {
	ids    *identity.Service
	ledger *ledger.Ledger
	mfa    MfaDecider
	audit  audit.Recorder
	now    func() time.Time
}

// NewProvider crea el provider.
func NewProvider(deps Deps) *Provider {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &Provider{
		ids:    deps.Identity,
		ledger: deps.Ledger,
		mfa:    deps.Mfa,
		audit:  audit.OrDefault(deps.Audit),
		now:    deps.Now,
	}
}

// Request es un intento de login.
type Request struct {
	Username string
	Password string
	ClientID string // vacío = sin evaluación MFA
}

// Authenticate ejecuta un intento. Retorna la identidad autenticada o uno de
// los errores tipados del paquete.
func (p *Provider) Authenticate(ctx context.Context, req Request) (*repository.Identity, error) {
	username := repository.NormalizeUsername(req.Username)
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("authn"),
		logger.Op("Authenticate"),
		logger.Username(username),
	)

	if username == "" || strings.TrimSpace(req.Password) == "" {
		field := "password"
		if username == "" {
			field = "username"
		}
		log.Info("credentials missing", logger.String("field", field))
		p.trackFailure(ctx, username, "credentials", "missing")
		return nil, p.outcome(&MissingCredentialsError{Field: field})
	}

	threshold := p.ledger.Threshold()

	id, err := p.ids.FindMasterIdentity(ctx, username)
	if errors.Is(err, identity.ErrNotFound) {
		if down := requestctx.Unavailable(ctx); len(down) > 0 {
			log.Info("user not found while directories unavailable", logger.Any("unavailable", down))
			p.trackFailure(ctx, username, "ServiceUnavailable", "")
			return nil, p.outcome(&ServiceUnavailableError{Sources: sortedSources(down)})
		}
		log.Info("user not found")
		p.trackFailure(ctx, username, "UserNotFound", "")
		return nil, p.outcome(ErrUserNotFound)
	}
	if err != nil {
		return nil, err
	}
	log = log.With(logger.AuthSource(string(id.Source)))

	if !id.Enabled {
		log.Info("account disabled")
		p.trackFailure(ctx, username, "Disabled", "")
		return nil, p.outcome(ErrDisabled)
	}

	// El bloqueo lo decide el directorio dueño; el contador se limpia al bloquear.
	if id.Locked {
		log.Info("account locked")
		p.trackFailure(ctx, username, "Locked", "")
		return nil, p.outcome(ErrLocked)
	}

	ok, err := p.checkPassword(ctx, id, req.Password)
	if err != nil {
		if src, down := directory.UnavailableSource(err); down {
			requestctx.MarkUnavailable(ctx, src)
			metrics.DirectoryUnavailable.WithLabelValues(string(src)).Inc()
			log.Warn("directory unavailable during password check", logger.Err(err))
			p.trackFailure(ctx, username, "ServiceUnavailable", string(src))
			return nil, p.outcome(&ServiceUnavailableError{Sources: []types.AuthSource{src}})
		}
		return nil, err
	}

	if !ok {
		n, err := p.ledger.IncrementRetries(ctx, username)
		if err != nil {
			return nil, err
		}
		if n >= threshold {
			if err := p.ledger.LockAccount(ctx, id); err != nil {
				log.Error("lock account failed", logger.Err(err))
			}
			log.Info("locking account, retries exceeded", logger.Count(n))
			p.trackFailure(ctx, username, "locked", "exceeded")
			return nil, p.outcome(ErrLocked)
		}
		log.Info("credentials incorrect", logger.Count(n))
		p.trackFailure(ctx, username, "credentials", "incorrect")
		return nil, p.outcome(ErrInvalidCredentials)
	}

	if err := p.ledger.ResetRetriesAndRecordLogin(ctx, id); err != nil {
		return nil, err
	}

	if id.CredentialsExpired(p.now()) {
		log.Info("credentials expired")
		p.trackFailure(ctx, username, "CredentialsExpired", "")
		return nil, p.outcome(ErrCredentialsExpired)
	}

	log.Info("successful login")
	p.audit.Record(ctx, "AuthenticateSuccess", map[string]string{"username": username})

	if p.mfa != nil && req.ClientID != "" {
		need, err := p.mfa.ClientNeedsMfa(ctx, req.ClientID, id)
		if err != nil {
			return nil, p.outcome(err)
		}
		if need {
			log.Info("mfa required", logger.ClientID(req.ClientID))
			return nil, p.outcome(&MfaRequiredError{Username: username})
		}
	}

	metrics.LoginOutcomes.WithLabelValues("authenticated").Inc()
	return id, nil
}

// Usable resuelve la identidad que ya pasó el factor de password y vuelve a
// validar que siga habilitada y sin bloqueo. Se usa al cerrar el desafío MFA.
func (p *Provider) Usable(ctx context.Context, username string) (*repository.Identity, error) {
	username = repository.NormalizeUsername(username)
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("authn"),
		logger.Op("Usable"),
		logger.Username(username),
	)
	id, err := p.ids.FindMasterIdentity(ctx, username)
	if errors.Is(err, identity.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	switch {
	case !id.Enabled:
		log.Info("account disabled after mfa")
		p.trackFailure(ctx, username, "Disabled", "")
		return nil, p.outcome(ErrDisabled)
	case id.Locked:
		log.Info("account locked after mfa")
		p.trackFailure(ctx, username, "Locked", "")
		return nil, p.outcome(ErrLocked)
	}
	metrics.LoginOutcomes.WithLabelValues("authenticated").Inc()
	return id, nil
}

// checkPassword delega en el directorio dueño. Los directorios que no
// validan passwords localmente cuentan como password incorrecta.
func (p *Provider) checkPassword(ctx context.Context, id *repository.Identity, password string) (bool, error) {
	a, ok := p.ids.Adapter(id.Source)
	if !ok {
		return false, nil
	}
	valid, err := a.CheckPassword(ctx, id, password)
	if errors.Is(err, directory.ErrUnsupported) || errors.Is(err, directory.ErrUnauthorized) {
		return false, nil
	}
	return valid, err
}

func (p *Provider) trackFailure(ctx context.Context, username, kind, subType string) {
	fields := map[string]string{"username": username, "type": kind}
	if subType != "" {
		fields["subType"] = subType
	}
	p.audit.Record(ctx, "AuthenticateFailure", fields)
}

func (p *Provider) outcome(err error) error {
	metrics.LoginOutcomes.WithLabelValues(outcomeLabel(err)).Inc()
	return err
}

func outcomeLabel(err error) string {
	var (
		mce *MissingCredentialsError
		sue *ServiceUnavailableError
		mre *MfaRequiredError
	)
	switch {
	case errors.As(err, &mce):
		return "missing_credentials"
	case errors.As(err, &sue):
		return "unavailable"
	case errors.As(err, &mre):
		return "mfa_required"
	case errors.Is(err, ErrLocked):
		return "locked"
	case errors.Is(err, ErrDisabled):
		return "disabled"
	case errors.Is(err, ErrUserNotFound):
		return "not_found"
	case errors.Is(err, ErrCredentialsExpired):
		return "expired"
	case errors.Is(err, ErrInvalidCredentials):
		return "failed"
	}
	return "error"
}
