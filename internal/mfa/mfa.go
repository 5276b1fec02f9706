// Package mfa decide cuándo un login requiere segundo factor y administra
// el desafío por código (email, email secundario o SMS).
package mfa

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dropDatabas3/staffauth/internal/audit"
	"github.com/dropDatabas3/staffauth/internal/domain/repository"
	"github.com/dropDatabas3/staffauth/internal/domain/types"
	"github.com/dropDatabas3/staffauth/internal/identity"
	"github.com/dropDatabas3/staffauth/internal/ledger"
	"github.com/dropDatabas3/staffauth/internal/notify"
	"github.com/dropDatabas3/staffauth/internal/observability/logger"
	"github.com/dropDatabas3/staffauth/internal/requestctx"
	"github.com/dropDatabas3/staffauth/internal/security/ipallow"
	"github.com/dropDatabas3/staffauth/internal/usertoken"
)

// ErrMfaUnavailable indica que el usuario no tiene ningún método verificado
// para recibir el código.
var ErrMfaUnavailable = errors.New("mfa: no verified contact method")

// Motivos de FlowError.
const (
	ReasonMissingCode = "missingcode"
	ReasonInvalid     = "invalid"
	ReasonExpired     = "expired"
	ReasonLocked      = "locked"
)

// FlowError es un rechazo del desafío MFA con motivo para la UI.
type FlowError struct {
	Reason string
}

func (e *FlowError) Error() string { return "mfa: " + e.Reason }

// Defaults del caso legado.
const (
	DefaultLegacyClientID     = "my-diary"
	DefaultLegacyMigratedRole = "ROLE_CMD_MIGRATED_MFA"
)

// Deps contiene las dependencias del servicio.
type Deps struct {
	Clients          repository.ClientRepository
	Identity         *identity.Service
	Tokens           *usertoken.Service
	Ledger           *ledger.Ledger
	Notifier         notify.Notifier
	ApprovedNetworks *ipallow.List
	// Cliente legado que solo exige MFA a usuarios ya migrados.
	LegacyClientID     string
	LegacyMigratedRole string
	Audit              audit.Recorder
}

// Service implementa las decisiones y el desafío MFA.
type Service struct {
	deps Deps
}

// NewService crea el servicio.
func NewService(deps Deps) *Service {
	if deps.LegacyClientID == "" {
		deps.LegacyClientID = DefaultLegacyClientID
	}
	if deps.LegacyMigratedRole == "" {
		deps.LegacyMigratedRole = DefaultLegacyMigratedRole
	}
	deps.Audit = audit.OrDefault(deps.Audit)
	return &Service{deps: deps}
}

// ClientNeedsMfa decide si el cliente exige MFA para esta identidad. Un
// token remember-me válido del request lo evita si el cliente lo permite.
func (s *Service) ClientNeedsMfa(ctx context.Context, clientID string, id *repository.Identity) (bool, error) {
	client, err := s.deps.Clients.GetClient(ctx, clientID)
	if repository.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if repository.BaseClientID(client.ID) == s.deps.LegacyClientID && !id.HasAuthority(s.deps.LegacyMigratedRole) {
		return false, nil
	}

	switch client.Mfa {
	case types.ClientMfaAll:
	case types.ClientMfaUntrusted:
		if s.deps.ApprovedNetworks.Contains(requestctx.ClientIP(ctx)) {
			return false, nil
		}
	default:
		return false, nil
	}

	if client.MfaRememberMe {
		if tok := requestctx.RememberMeToken(ctx); tok != "" {
			reason, err := s.deps.Tokens.CheckTokenForUser(ctx, types.TokenMFARmbr, tok, id.Username)
			if err != nil {
				return false, err
			}
			if reason == usertoken.ReasonNone {
				return false, nil
			}
		}
	}
	return true, nil
}

// Challenge es el resultado de iniciar un desafío MFA.
type Challenge struct {
	Token      string // token MFA que identifica el desafío
	Code       string // código enviado al usuario
	Preference types.MfaPreference
}

// CreateTokenAndSendMfaCode emite el par MFA/MFA_CODE y envía el código por
// el método preferido del usuario (o el primero verificado disponible).
func (s *Service) CreateTokenAndSendMfaCode(ctx context.Context, username string) (*Challenge, error) {
	u, err := s.deps.Identity.ResolveOrCreate(ctx, username)
	if err != nil {
		return nil, err
	}
	pref, address, ok := selectMethod(u, u.MfaPreference)
	if !ok {
		return nil, ErrMfaUnavailable
	}

	token, err := s.deps.Tokens.CreateToken(ctx, types.TokenMFA, u.Username)
	if err != nil {
		return nil, err
	}
	code, err := s.deps.Tokens.CreateToken(ctx, types.TokenMFACode, u.Username)
	if err != nil {
		return nil, err
	}
	if err := s.send(ctx, u, pref, address, code); err != nil {
		return nil, err
	}
	return &Challenge{Token: token, Code: code, Preference: pref}, nil
}

// ResendMfaCode emite un código nuevo para el desafío en curso y lo envía
// por el método pedido.
func (s *Service) ResendMfaCode(ctx context.Context, token string, pref types.MfaPreference) (string, error) {
	ut, err := s.deps.Tokens.GetToken(ctx, types.TokenMFA, token)
	if repository.IsNotFound(err) {
		return "", &FlowError{Reason: ReasonInvalid}
	}
	if err != nil {
		return "", err
	}
	u, err := s.deps.Identity.Users().GetByUsername(ctx, ut.Username)
	if err != nil {
		return "", err
	}
	pref, address, ok := selectMethod(u, pref)
	if !ok {
		return "", ErrMfaUnavailable
	}
	code, err := s.deps.Tokens.CreateToken(ctx, types.TokenMFACode, u.Username)
	if err != nil {
		return "", err
	}
	return code, s.send(ctx, u, pref, address, code)
}

// ValidateAndRemoveMfaCode valida el código del desafío. Un código
// incorrecto cuenta como intento fallido y puede bloquear la cuenta. Si es
// correcto consume ambos tokens y limpia los reintentos.
func (s *Service) ValidateAndRemoveMfaCode(ctx context.Context, token, code, username string) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("mfa"),
		logger.Op("ValidateAndRemoveMfaCode"),
		logger.Username(username),
	)

	if strings.TrimSpace(code) == "" {
		return &FlowError{Reason: ReasonMissingCode}
	}
	reason, err := s.deps.Tokens.CheckTokenForUser(ctx, types.TokenMFACode, code, username)
	if err != nil {
		return err
	}

	id, err := s.deps.Identity.FindMasterIdentity(ctx, username)
	if err != nil && !errors.Is(err, identity.ErrNotFound) {
		return err
	}
	if id != nil && id.Locked {
		return &FlowError{Reason: ReasonLocked}
	}

	if reason != usertoken.ReasonNone {
		n, err := s.deps.Ledger.IncrementRetries(ctx, username)
		if err != nil {
			return err
		}
		if n >= s.deps.Ledger.Threshold() {
			if id != nil {
				if err := s.deps.Ledger.LockAccount(ctx, id); err != nil {
					return err
				}
			}
			log.Info("account locked after failed mfa code", logger.Count(n))
			return &FlowError{Reason: ReasonLocked}
		}
		return &FlowError{Reason: string(reason)}
	}

	ok, err := s.deps.Tokens.IsValid(ctx, types.TokenMFA, token, username)
	if err != nil {
		return err
	}
	if !ok {
		if err := s.deps.Tokens.RemoveToken(ctx, types.TokenMFACode, code); err != nil {
			log.Warn("could not remove orphan mfa code", logger.Err(err))
		}
		return &FlowError{Reason: ReasonInvalid}
	}
	if err := s.deps.Tokens.RemoveToken(ctx, types.TokenMFACode, code); err != nil {
		return err
	}
	return s.deps.Ledger.ResetRetries(ctx, username)
}

// CreateRememberMeToken emite el token que permite saltear MFA en clientes
// que lo admiten.
func (s *Service) CreateRememberMeToken(ctx context.Context, username string) (string, error) {
	return s.deps.Tokens.CreateToken(ctx, types.TokenMFARmbr, username)
}

func (s *Service) send(ctx context.Context, u *repository.User, pref types.MfaPreference, address, code string) error {
	params := map[string]string{
		"firstName": u.FirstName,
		"code":      code,
		"expiry":    s.deps.Tokens.Expiry(types.TokenMFACode).String(),
	}
	var err error
	if pref == types.MfaText {
		err = s.deps.Notifier.SendSMS(ctx, notify.TemplateMfaText, address, params)
	} else {
		err = s.deps.Notifier.SendEmail(ctx, notify.TemplateMfaEmail, address, params)
	}
	if err != nil {
		return fmt.Errorf("send mfa code: %w", err)
	}
	s.deps.Audit.Record(ctx, "MFACodeSent", map[string]string{"username": u.Username, "mfaPreference": string(pref)})
	return nil
}

// selectMethod devuelve el método preferido si está verificado; si no, el
// primero disponible en orden email, email secundario, SMS.
func selectMethod(u *repository.User, pref types.MfaPreference) (types.MfaPreference, string, bool) {
	if addr, ok := methodAddress(u, pref); ok {
		return pref, addr, true
	}
	for _, p := range []types.MfaPreference{types.MfaEmail, types.MfaSecondaryEmail, types.MfaText} {
		if addr, ok := methodAddress(u, p); ok {
			return p, addr, true
		}
	}
	return types.MfaNone, "", false
}

func methodAddress(u *repository.User, pref types.MfaPreference) (string, bool) {
	switch pref {
	case types.MfaEmail:
		if u.HasVerifiedEmail() {
			return u.Email, true
		}
	case types.MfaSecondaryEmail:
		return u.VerifiedContact(types.ContactSecondaryEmail)
	case types.MfaText:
		return u.VerifiedContact(types.ContactMobilePhone)
	}
	return "", false
}
