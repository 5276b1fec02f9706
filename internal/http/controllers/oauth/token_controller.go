// Package oauth contiene el endpoint /oauth/token.
package oauth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/staffauth/internal/domain/repository"
	"github.com/dropDatabas3/staffauth/internal/http/dto"
	"github.com/dropDatabas3/staffauth/internal/http/helpers"
	"github.com/dropDatabas3/staffauth/internal/issuance"
	"github.com/dropDatabas3/staffauth/internal/observability/logger"
	"github.com/dropDatabas3/staffauth/internal/requestctx"
	"github.com/dropDatabas3/staffauth/internal/security/password"
)

// Deps contiene lo que necesita el token endpoint.
type Deps struct {
	Clients  repository.ClientRepository
	Issuance *issuance.Service
	Now      func() time.Time
}

// TokenController atiende POST /oauth/token (client_credentials y
// refresh_token).
type TokenController struct {
	deps Deps
}

// NewTokenController crea el controller.
func NewTokenController(deps Deps) *TokenController {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	return &TokenController{deps: deps}
}

// Token maneja POST /oauth/token.
func (c *TokenController) Token(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("TokenController.Token"))

	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, http.StatusBadRequest, "invalid_request", "malformed form body")
		return
	}

	client, ok := c.authenticateClient(w, r)
	if !ok {
		return
	}
	log = log.With(logger.ClientID(client.ID))

	grant := r.PostForm.Get("grant_type")
	if !allowsGrant(client, grant) {
		writeOAuthError(w, http.StatusBadRequest, "unauthorized_client", "grant not allowed for client")
		return
	}

	var (
		res *issuance.Result
		err error
	)
	switch grant {
	case issuance.GrantClientCredentials:
		res, err = c.deps.Issuance.CreateAccessToken(ctx, issuance.Request{
			ClientID:   client.ID,
			ClientIP:   requestctx.ClientIP(ctx),
			GrantType:  grant,
			Username:   r.PostForm.Get("username"),
			AuthSource: r.PostForm.Get("auth_source"),
			Scopes:     strings.Fields(r.PostForm.Get("scope")),
		})
	case issuance.GrantRefreshToken:
		rt := strings.TrimSpace(r.PostForm.Get("refresh_token"))
		if rt == "" {
			writeOAuthError(w, http.StatusBadRequest, "invalid_request", "refresh_token required")
			return
		}
		res, err = c.deps.Issuance.RefreshAccessToken(ctx, issuance.RefreshRequest{
			RefreshToken: rt,
			ClientID:     client.ID,
			ClientIP:     requestctx.ClientIP(ctx),
		})
	default:
		writeOAuthError(w, http.StatusBadRequest, "unsupported_grant_type", "")
		return
	}

	switch {
	case err == nil:
	case errors.Is(err, issuance.ErrInvalidRefreshToken):
		writeOAuthError(w, http.StatusBadRequest, "invalid_grant", "invalid refresh token")
		return
	case errors.Is(err, issuance.ErrInvalidScope):
		writeOAuthError(w, http.StatusBadRequest, "invalid_scope", err.Error())
		return
	case issuance.IsAccessDenied(err):
		writeOAuthError(w, http.StatusForbidden, "access_denied", err.Error())
		return
	default:
		log.Error("token issuance failed", logger.Err(err))
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "")
		return
	}

	helpers.NoStore(w)
	helpers.WriteJSON(w, http.StatusOK, dto.NewTokenResponse(res, c.deps.Now()))
}

// authenticateClient acepta Basic o client_id/client_secret en el form.
func (c *TokenController) authenticateClient(w http.ResponseWriter, r *http.Request) (*repository.Client, bool) {
	id, secret, ok := r.BasicAuth()
	if !ok {
		id = r.PostForm.Get("client_id")
		secret = r.PostForm.Get("client_secret")
	}
	if id == "" {
		writeOAuthError(w, http.StatusUnauthorized, "invalid_client", "client authentication required")
		return nil, false
	}
	client, err := c.deps.Clients.GetClient(r.Context(), id)
	if err != nil && !repository.IsNotFound(err) {
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "")
		return nil, false
	}
	if client == nil || client.SecretHash == "" || !password.Verify(secret, client.SecretHash) {
		logger.From(r.Context()).Info("client authentication failed", logger.ClientID(id))
		w.Header().Set("WWW-Authenticate", `Basic realm="oauth"`)
		writeOAuthError(w, http.StatusUnauthorized, "invalid_client", "")
		return nil, false
	}
	return client, true
}

func allowsGrant(c *repository.Client, grant string) bool {
	for _, g := range c.GrantTypes {
		if g == grant {
			return true
		}
	}
	return false
}

func writeOAuthError(w http.ResponseWriter, status int, code, desc string) {
	helpers.NoStore(w)
	helpers.WriteJSON(w, status, dto.OAuthError{Error: code, Description: desc})
}
