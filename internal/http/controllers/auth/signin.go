package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dropDatabas3/staffauth/internal/authn"
	"github.com/dropDatabas3/staffauth/internal/domain/repository"
	"github.com/dropDatabas3/staffauth/internal/domain/types"
	"github.com/dropDatabas3/staffauth/internal/http/dto"
	httperrors "github.com/dropDatabas3/staffauth/internal/http/errors"
	"github.com/dropDatabas3/staffauth/internal/http/helpers"
	"github.com/dropDatabas3/staffauth/internal/http/middlewares"
	"github.com/dropDatabas3/staffauth/internal/mfa"
	"github.com/dropDatabas3/staffauth/internal/observability/logger"
)

// SignIn maneja POST /auth/sign-in.
func (c *Controller) SignIn(w http.ResponseWriter, r *http.Request) {
	var req dto.SignInRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ClientID) == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("client_id"))
		return
	}
	username := repository.NormalizeUsername(req.Username)

	c.run(w, r, flowSteps{
		op:       "AuthController.SignIn",
		username: username,
		clientID: req.ClientID,
		authenticate: func(ctx context.Context) (*repository.Identity, error) {
			return c.deps.Authn.Authenticate(ctx, authn.Request{
				Username: username,
				Password: req.Password,
				ClientID: req.ClientID,
			})
		},
	})
}

// MfaChallenge maneja POST /auth/mfa-challenge: valida el código y, si es
// correcto, completa el login emitiendo tokens.
func (c *Controller) MfaChallenge(w http.ResponseWriter, r *http.Request) {
	var req dto.MfaChallengeRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.ClientID) == "" || strings.TrimSpace(req.Token) == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("token, client_id"))
		return
	}

	ut, err := c.deps.Tokens.GetToken(r.Context(), types.TokenMFA, req.Token)
	if repository.IsNotFound(err) {
		httperrors.WriteError(w, httperrors.ErrLoginFailed.WithReasons(mfa.ReasonInvalid))
		return
	}
	if err != nil {
		httperrors.WriteError(w, httperrors.ErrInternal.WithCause(err))
		return
	}
	username := ut.Username

	c.run(w, r, flowSteps{
		op:       "AuthController.MfaChallenge",
		username: username,
		clientID: req.ClientID,
		authenticate: func(ctx context.Context) (*repository.Identity, error) {
			if err := c.deps.Mfa.ValidateAndRemoveMfaCode(ctx, req.Token, req.Code, username); err != nil {
				return nil, err
			}
			return c.deps.Authn.Usable(ctx, username)
		},
		afterIssue: func(ctx context.Context, w http.ResponseWriter, id *repository.Identity) error {
			if !req.RememberMe {
				return nil
			}
			return c.rememberMe(ctx, w, req.ClientID, id.Username)
		},
	})
}

// rememberMe deja la cookie MFA_RMBR si el cliente lo admite.
func (c *Controller) rememberMe(ctx context.Context, w http.ResponseWriter, clientID, username string) error {
	client, err := c.deps.Clients.GetClient(ctx, clientID)
	if err != nil {
		return err
	}
	if !client.MfaRememberMe {
		return nil
	}
	tok, err := c.deps.Mfa.CreateRememberMeToken(ctx, username)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     middlewares.RememberMeCookie,
		Value:    tok,
		Path:     "/",
		MaxAge:   int(c.deps.Tokens.Expiry(types.TokenMFARmbr).Seconds()),
		HttpOnly: true,
		Secure:   c.deps.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
	logger.From(ctx).Debug("remember-me cookie set", logger.Layer("controller"), logger.Username(username))
	return nil
}

// MfaResend maneja POST /auth/mfa-resend.
func (c *Controller) MfaResend(w http.ResponseWriter, r *http.Request) {
	var req dto.MfaResendRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	pref := types.MfaPreference(strings.ToUpper(strings.TrimSpace(req.Preference)))
	_, err := c.deps.Mfa.ResendMfaCode(r.Context(), req.Token, pref)

	var mfe *mfa.FlowError
	switch {
	case err == nil:
		helpers.WriteJSON(w, http.StatusOK, dto.StatusResponse{Status: "sent"})
	case errors.As(err, &mfe):
		httperrors.WriteError(w, httperrors.ErrLoginFailed.WithReasons(mfe.Reason))
	case errors.Is(err, mfa.ErrMfaUnavailable):
		httperrors.WriteError(w, httperrors.ErrLoginFailed.WithReasons(authn.OutwardMfaUnavailable))
	default:
		httperrors.WriteError(w, httperrors.ErrInternal.WithCause(err))
	}
}
