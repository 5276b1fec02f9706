// Package account contiene los controllers de reset de password, cambio de
// password vencida y verificación de email.
package account

import (
	"context"
	"errors"
	"net/http"
	"strings"

	accountsvc "github.com/dropDatabas3/staffauth/internal/account"
	"github.com/dropDatabas3/staffauth/internal/authn"
	"github.com/dropDatabas3/staffauth/internal/claims"
	"github.com/dropDatabas3/staffauth/internal/directory"
	"github.com/dropDatabas3/staffauth/internal/http/dto"
	httperrors "github.com/dropDatabas3/staffauth/internal/http/errors"
	"github.com/dropDatabas3/staffauth/internal/http/helpers"
	"github.com/dropDatabas3/staffauth/internal/http/middlewares"
	"github.com/dropDatabas3/staffauth/internal/notify"
	"github.com/dropDatabas3/staffauth/internal/observability/logger"
	"github.com/dropDatabas3/staffauth/internal/requestctx"
)

// Deps contiene lo que necesitan los controllers de cuenta.
type Deps struct {
	Account *accountsvc.Service
	// ResetURL y VerifyURL son las páginas que reciben ?token=.
	ResetURL  string
	VerifyURL string
	// ExposeLinks devuelve el link en la respuesta (solo dev).
	ExposeLinks bool
}

// Controller atiende /auth/reset-password*, /auth/change-password y
// /auth/verify-email*.
type Controller struct {
	deps Deps
}

// NewController crea el controller.
func NewController(deps Deps) *Controller {
	return &Controller{deps: deps}
}

// RequestReset maneja POST /auth/reset-password. La respuesta es la misma
// exista o no la cuenta.
func (c *Controller) RequestReset(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("AccountController.RequestReset"))

	var req dto.ResetPasswordRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.UsernameOrEmail) == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithReasons(authn.OutwardMissingUser))
		return
	}

	link, err := c.deps.Account.RequestResetPassword(ctx, req.UsernameOrEmail, c.deps.ResetURL)
	if err != nil {
		log.Error("reset request failed", logger.Err(err))
		writeUpstreamError(w, r, err)
		return
	}
	resp := dto.StatusResponse{Status: "requested"}
	if c.deps.ExposeLinks {
		resp.Link = link
	}
	helpers.NoStore(w)
	helpers.WriteJSON(w, http.StatusOK, resp)
}

// ConfirmReset maneja POST /auth/reset-password/confirm.
func (c *Controller) ConfirmReset(w http.ResponseWriter, r *http.Request) {
	c.setPassword(w, r, "AccountController.ConfirmReset", c.deps.Account.SetPassword)
}

// ChangeExpired maneja POST /auth/change-password con el token CHANGE que
// devolvió el sign-in.
func (c *Controller) ChangeExpired(w http.ResponseWriter, r *http.Request) {
	c.setPassword(w, r, "AccountController.ChangeExpired", c.deps.Account.ChangeExpiredPassword)
}

type setPasswordFunc func(ctx context.Context, token, password string) error

func (c *Controller) setPassword(w http.ResponseWriter, r *http.Request, op string, set setPasswordFunc) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op(op))

	var req dto.SetPasswordRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Token) == "" || req.Password == "" {
		httperrors.WriteError(w, httperrors.ErrMissingFields.WithDetail("token, password"))
		return
	}

	err := set(ctx, req.Token, req.Password)
	var (
		te *accountsvc.TokenError
		pe *directory.PolicyError
	)
	switch {
	case err == nil:
		helpers.WriteJSON(w, http.StatusOK, dto.StatusResponse{Status: "changed"})
	case errors.As(err, &te):
		httperrors.WriteError(w, httperrors.ErrInvalidToken.WithReasons(string(te.Reason)))
	case errors.As(err, &pe):
		reasons := append([]string{string(pe.Kind)}, pe.Reasons...)
		httperrors.WriteError(w, httperrors.ErrPasswordRules.WithReasons(reasons...))
	case errors.Is(err, accountsvc.ErrPasswordChangeUnsupported):
		httperrors.WriteError(w, httperrors.ErrNotSupported.WithCause(err))
	default:
		log.Error("password change failed", logger.Err(err))
		writeUpstreamError(w, r, err)
	}
}

// RequestVerify maneja POST /auth/verify-email (requiere bearer).
func (c *Controller) RequestVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("AccountController.RequestVerify"))

	username := middlewares.ClaimString(middlewares.GetClaims(ctx), claims.UserName)
	if username == "" {
		httperrors.WriteError(w, httperrors.ErrUnauthorized.WithDetail("token without user"))
		return
	}
	var req dto.VerifyEmailRequest
	if !helpers.ReadJSON(w, r, &req) {
		return
	}

	link, err := c.deps.Account.RequestVerifyEmail(ctx, username, req.Email, c.deps.VerifyURL)
	if errors.Is(err, accountsvc.ErrInvalidEmail) {
		httperrors.WriteError(w, httperrors.ErrBadRequest.WithDetail("invalid email"))
		return
	}
	if err != nil {
		log.Error("verify email request failed", logger.Err(err))
		writeUpstreamError(w, r, err)
		return
	}
	resp := dto.StatusResponse{Status: "requested", Username: username}
	if c.deps.ExposeLinks {
		resp.Link = link
	}
	helpers.NoStore(w)
	helpers.WriteJSON(w, http.StatusOK, resp)
}

// ConfirmVerify maneja GET /auth/verify-email/confirm?token=.
func (c *Controller) ConfirmVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	username, err := c.deps.Account.ConfirmVerifyEmail(ctx, r.URL.Query().Get("token"))
	var te *accountsvc.TokenError
	switch {
	case err == nil:
		helpers.WriteJSON(w, http.StatusOK, dto.StatusResponse{Status: "verified", Username: username})
	case errors.As(err, &te):
		httperrors.WriteError(w, httperrors.ErrInvalidToken.WithReasons(string(te.Reason)))
	default:
		logger.From(ctx).Error("verify email confirm failed",
			logger.Layer("controller"), logger.Op("AccountController.ConfirmVerify"), logger.Err(err))
		writeUpstreamError(w, r, err)
	}
}

// writeUpstreamError distingue directorios o correo caídos de fallas internas.
func writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	if src, ok := directory.UnavailableSource(err); ok {
		requestctx.MarkUnavailable(r.Context(), src)
	}
	if directory.IsUnavailable(err) || notify.IsServerError(err) {
		reasons := []string{}
		for _, src := range requestctx.Unavailable(r.Context()) {
			reasons = append(reasons, string(src)+"down")
		}
		httperrors.WriteError(w, httperrors.ErrServiceUnavailable.WithReasons(reasons...).WithCause(err))
		return
	}
	httperrors.WriteError(w, httperrors.ErrInternal.WithCause(err))
}
