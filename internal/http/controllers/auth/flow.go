package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/dropDatabas3/staffauth/internal/authn"
	"github.com/dropDatabas3/staffauth/internal/domain/repository"
	"github.com/dropDatabas3/staffauth/internal/domain/types"
	"github.com/dropDatabas3/staffauth/internal/http/dto"
	httperrors "github.com/dropDatabas3/staffauth/internal/http/errors"
	"github.com/dropDatabas3/staffauth/internal/http/helpers"
	"github.com/dropDatabas3/staffauth/internal/issuance"
	"github.com/dropDatabas3/staffauth/internal/mfa"
	"github.com/dropDatabas3/staffauth/internal/observability/logger"
	"github.com/dropDatabas3/staffauth/internal/requestctx"
)

// flowSteps parametriza el runner común de sign-in y mfa-challenge.
type flowSteps struct {
	op       string
	username string
	clientID string
	// authenticate produce la identidad o un error tipado de authn / mfa.
	authenticate func(ctx context.Context) (*repository.Identity, error)
	// afterIssue corre con los tokens ya emitidos. Un error solo se loguea.
	afterIssue func(ctx context.Context, w http.ResponseWriter, id *repository.Identity) error
}

// run autentica, emite tokens y traduce cualquier resultado a HTTP.
func (c *Controller) run(w http.ResponseWriter, r *http.Request, steps flowSteps) {
	ctx := r.Context()
	log := logger.From(ctx).With(
		logger.Layer("controller"),
		logger.Op(steps.op),
		logger.ClientID(steps.clientID),
	)

	id, err := steps.authenticate(ctx)
	if err != nil {
		c.writeFailure(w, r, steps, err)
		return
	}

	res, err := c.deps.Issuance.CreateAccessToken(ctx, issuance.Request{
		ClientID:  steps.clientID,
		ClientIP:  requestctx.ClientIP(ctx),
		GrantType: issuance.GrantPassword,
		Identity:  id,
	})
	if err != nil {
		writeIssuanceError(w, err)
		return
	}

	if steps.afterIssue != nil {
		if err := steps.afterIssue(ctx, w, id); err != nil {
			log.Warn("post-login step failed", logger.Err(err))
		}
	}

	helpers.NoStore(w)
	helpers.WriteJSON(w, http.StatusOK, dto.LoginResponse{TokenResponse: dto.NewTokenResponse(res, c.deps.Now())})
}

// writeFailure mapea los resultados no exitosos del login. MFA requerido y
// password vencida no son errores para el cliente: devuelven el token con
// el que seguir el flujo.
func (c *Controller) writeFailure(w http.ResponseWriter, r *http.Request, steps flowSteps, err error) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op(steps.op))

	var (
		mre *authn.MfaRequiredError
		mce *authn.MissingCredentialsError
		sue *authn.ServiceUnavailableError
		mfe *mfa.FlowError
	)
	switch {
	case errors.As(err, &mre):
		ch, err := c.deps.Mfa.CreateTokenAndSendMfaCode(ctx, mre.Username)
		if errors.Is(err, mfa.ErrMfaUnavailable) {
			httperrors.WriteError(w, httperrors.ErrLoginFailed.WithReasons(authn.OutwardMfaUnavailable))
			return
		}
		if err != nil {
			log.Error("mfa challenge failed", logger.Err(err))
			httperrors.WriteError(w, httperrors.ErrInternal.WithCause(err))
			return
		}
		helpers.NoStore(w)
		helpers.WriteJSON(w, http.StatusOK, dto.LoginResponse{
			MfaRequired:   true,
			MfaToken:      ch.Token,
			MfaPreference: string(ch.Preference),
		})

	case errors.Is(err, authn.ErrCredentialsExpired):
		tok, err := c.deps.Tokens.CreateToken(ctx, types.TokenChange, steps.username)
		if err != nil {
			log.Error("change token failed", logger.Err(err))
			httperrors.WriteError(w, httperrors.ErrInternal.WithCause(err))
			return
		}
		helpers.NoStore(w)
		helpers.WriteJSON(w, http.StatusOK, dto.LoginResponse{PasswordExpired: true, ChangeToken: tok})

	case errors.As(err, &mfe):
		httperrors.WriteError(w, httperrors.ErrLoginFailed.WithReasons(mfe.Reason))

	case errors.As(err, &mce):
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithReasons(authn.OutwardReasons(err, nil)...))

	case errors.As(err, &sue):
		reasons := authn.OutwardReasons(err, requestctx.Unavailable(ctx))
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable.WithReasons(reasons...))

	case isLoginRejection(err):
		reasons := authn.OutwardReasons(err, requestctx.Unavailable(ctx))
		httperrors.WriteError(w, httperrors.ErrLoginFailed.WithReasons(reasons...))

	default:
		log.Error("login failed", logger.Err(err))
		httperrors.WriteError(w, httperrors.ErrInternal.WithCause(err))
	}
}

func isLoginRejection(err error) bool {
	for _, target := range []error{
		authn.ErrInvalidCredentials,
		authn.ErrUserNotFound,
		authn.ErrDisabled,
		authn.ErrLocked,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// writeIssuanceError mapea los rechazos de emisión.
func writeIssuanceError(w http.ResponseWriter, err error) {
	switch {
	case issuance.IsAccessDenied(err):
		httperrors.WriteError(w, httperrors.ErrAccessDenied.WithCause(err))
	case errors.Is(err, issuance.ErrUnknownClient):
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("unknown client"))
	default:
		httperrors.WriteError(w, httperrors.ErrInternal.WithCause(err))
	}
}
