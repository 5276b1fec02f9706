// Package account implementa los flujos de cuenta construidos sobre los
// tokens de corta vida: reset de password, cambio de password vencida y
// verificación de email.
package account

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dropDatabas3/staffauth/internal/audit"
	"github.com/dropDatabas3/staffauth/internal/directory"
	"github.com/dropDatabas3/staffauth/internal/domain/repository"
	"github.com/dropDatabas3/staffauth/internal/domain/types"
	"github.com/dropDatabas3/staffauth/internal/identity"
	"github.com/dropDatabas3/staffauth/internal/ledger"
	"github.com/dropDatabas3/staffauth/internal/notify"
	"github.com/dropDatabas3/staffauth/internal/observability/logger"
	"github.com/dropDatabas3/staffauth/internal/usertoken"
)

var (
	// ErrPasswordChangeUnsupported: el directorio de la identidad no admite cambio de password.
	ErrPasswordChangeUnsupported = errors.New("account: password change not supported for this account")
	// ErrInvalidEmail: email vacío o sin formato mínimo.
	ErrInvalidEmail = errors.New("account: invalid email")
)

// TokenError rechaza un token con el motivo del token store.
type TokenError struct {
	Reason usertoken.Reason
}

func (e *TokenError) Error() string { return "account: token " + string(e.Reason) }

// Deps contiene las dependencias del servicio.
type Deps struct {
	Identity *identity.Service
	Tokens   *usertoken.Service
	Ledger   *ledger.Ledger
	Notifier notify.Notifier
	Audit    audit.Recorder
}

// Service implementa los flujos.
type Service struct {
	deps Deps
}

// NewService crea el servicio.
func NewService(deps Deps) *Service {
	deps.Audit = audit.OrDefault(deps.Audit)
	return &Service{deps: deps}
}

// RequestResetPassword inicia el reset para un username o email. Retorna el
// link enviado, o "" si no había a quién enviarlo; nunca revela si la
// cuenta existe.
func (s *Service) RequestResetPassword(ctx context.Context, usernameOrEmail, baseURL string) (string, error) {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("account"),
		logger.Op("RequestResetPassword"),
	)

	input := strings.TrimSpace(usernameOrEmail)
	if input == "" {
		return "", nil
	}

	var id *repository.Identity
	if strings.Contains(input, "@") {
		email := repository.NormalizeEmail(input)
		matches, err := s.deps.Identity.FindByEmailInDirectories(ctx, email,
			types.SourceAuth, types.SourceNomis, types.SourceDelius)
		if err != nil {
			return "", err
		}
		enabled := matches[:0]
		for _, m := range matches {
			if m.Enabled || (m.Source == types.SourceNomis && m.Locked) {
				enabled = append(enabled, m)
			}
		}
		if len(enabled) != 1 {
			log.Info("reset requested for email without a single account", logger.Count(len(enabled)))
			s.deps.Audit.Record(ctx, "ResetPasswordRequestFailure", map[string]string{"email": email, "error": "nomatch"})
			return "", s.deps.Notifier.SendEmail(ctx, notify.TemplateResetUnavailable, email, map[string]string{})
		}
		id = &enabled[0]
	} else {
		found, err := s.deps.Identity.FindEnabledOrLockedIdentity(ctx, input)
		if errors.Is(err, identity.ErrNotFound) {
			log.Info("reset requested for unknown username")
			s.deps.Audit.Record(ctx, "ResetPasswordRequestFailure", map[string]string{"username": repository.NormalizeUsername(input), "error": "notfound"})
			return "", nil
		}
		if err != nil {
			return "", err
		}
		id = found
	}

	if _, err := s.deps.Identity.Materialize(ctx, id); err != nil {
		return "", err
	}
	email, ok := s.deps.Identity.GetEmail(ctx, id)
	if !ok {
		log.Info("reset requested for account without verified email", logger.Username(id.Username))
		s.deps.Audit.Record(ctx, "ResetPasswordRequestFailure", map[string]string{"username": id.Username, "error": "noemail"})
		return "", nil
	}

	token, err := s.deps.Tokens.CreateToken(ctx, types.TokenReset, id.Username)
	if err != nil {
		return "", err
	}
	link := joinLink(baseURL, token)
	params := map[string]string{"firstName": id.FirstName, "username": id.Username, "resetLink": link}
	if err := s.deps.Notifier.SendEmail(ctx, notify.TemplateResetPassword, email, params); err != nil {
		return "", fmt.Errorf("send reset email: %w", err)
	}
	return link, nil
}

// SetPassword completa un reset con el token RESET.
func (s *Service) SetPassword(ctx context.Context, token, password string) error {
	return s.setPassword(ctx, types.TokenReset, token, password)
}

// ChangeExpiredPassword completa el cambio de una password vencida con el
// token CHANGE emitido al fallar el login.
func (s *Service) ChangeExpiredPassword(ctx context.Context, token, password string) error {
	return s.setPassword(ctx, types.TokenChange, token, password)
}

func (s *Service) setPassword(ctx context.Context, t types.TokenType, token, password string) error {
	log := logger.From(ctx).With(
		logger.Layer("service"),
		logger.Component("account"),
		logger.Op("SetPassword"),
		logger.TokenType(string(t)),
	)

	ut, reason, err := s.deps.Tokens.ConsumeToken(ctx, t, token)
	if err != nil {
		return err
	}
	if reason != usertoken.ReasonNone {
		return &TokenError{Reason: reason}
	}
	log = log.With(logger.Username(ut.Username))

	id, err := s.deps.Identity.FindMasterIdentity(ctx, ut.Username)
	if err != nil {
		return err
	}
	a, ok := s.deps.Identity.Adapter(id.Source)
	if !ok {
		return ErrPasswordChangeUnsupported
	}
	if err := a.ChangePassword(ctx, id.Username, password); err != nil {
		if errors.Is(err, directory.ErrUnsupported) {
			return ErrPasswordChangeUnsupported
		}
		log.Info("password change rejected", logger.Err(err))
		var pe *directory.PolicyError
		if errors.As(err, &pe) {
			// el usuario puede corregir la password con el mismo link
			if rerr := s.deps.Tokens.RestoreToken(ctx, ut); rerr != nil {
				log.Warn("token not restored after policy rejection", logger.Err(rerr))
			}
		}
		return err
	}
	if err := s.deps.Ledger.Unlock(ctx, id.Username); err != nil {
		return err
	}
	s.deps.Audit.Record(ctx, t.Description()+"Success", map[string]string{"username": id.Username})
	log.Info("password changed")

	if email, ok := s.deps.Identity.GetEmail(ctx, id); ok {
		params := map[string]string{"firstName": id.FirstName, "username": id.Username}
		if err := s.deps.Notifier.SendEmail(ctx, notify.TemplateResetPasswordConfirm, email, params); err != nil {
			log.Warn("password change confirmation not sent", logger.Err(err))
		}
	}
	return nil
}

// RequestVerifyEmail registra el email (sin verificar) y envía el link de
// verificación. Retorna el link.
func (s *Service) RequestVerifyEmail(ctx context.Context, username, email, baseURL string) (string, error) {
	email = repository.NormalizeEmail(email)
	if email == "" || !strings.Contains(email, "@") {
		return "", ErrInvalidEmail
	}
	u, err := s.deps.Identity.ResolveOrCreate(ctx, username)
	if err != nil {
		return "", err
	}
	if u.Email != email || !u.Verified {
		u.Email = email
		u.Verified = false
		if err := s.deps.Identity.Users().Update(ctx, u); err != nil {
			return "", err
		}
	}
	token, err := s.deps.Tokens.CreateToken(ctx, types.TokenVerified, u.Username)
	if err != nil {
		return "", err
	}
	link := joinLink(baseURL, token)
	params := map[string]string{"firstName": u.FirstName, "username": u.Username, "verifyLink": link}
	if err := s.deps.Notifier.SendEmail(ctx, notify.TemplateVerifyEmail, email, params); err != nil {
		return "", fmt.Errorf("send verify email: %w", err)
	}
	return link, nil
}

// ConfirmVerifyEmail marca el email como verificado y consume el token.
func (s *Service) ConfirmVerifyEmail(ctx context.Context, token string) (string, error) {
	ut, reason, err := s.deps.Tokens.ConsumeToken(ctx, types.TokenVerified, token)
	if err != nil {
		return "", err
	}
	if reason != usertoken.ReasonNone {
		return "", &TokenError{Reason: reason}
	}
	u, err := s.deps.Identity.Users().GetByUsername(ctx, ut.Username)
	if err != nil {
		return "", err
	}
	u.Verified = true
	if err := s.deps.Identity.Users().Update(ctx, u); err != nil {
		return "", err
	}
	s.deps.Audit.Record(ctx, "VerifyEmailConfirmSuccess", map[string]string{"username": u.Username})
	return u.Username, nil
}

func joinLink(base, token string) string {
	if base == "" {
		return token
	}
	sep := "?token="
	if strings.Contains(base, "?") {
		sep = "&token="
	}
	return strings.TrimRight(base, "/") + sep + token
}
