// Package router arma las rutas HTTP sobre chi.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	accountctrl "github.com/dropDatabas3/staffauth/internal/http/controllers/account"
	authctrl "github.com/dropDatabas3/staffauth/internal/http/controllers/auth"
	healthctrl "github.com/dropDatabas3/staffauth/internal/http/controllers/health"
	oauthctrl "github.com/dropDatabas3/staffauth/internal/http/controllers/oauth"
	httperrors "github.com/dropDatabas3/staffauth/internal/http/errors"
	mw "github.com/dropDatabas3/staffauth/internal/http/middlewares"
	jwtx "github.com/dropDatabas3/staffauth/internal/jwt"
	"github.com/dropDatabas3/staffauth/internal/rate"
	"github.com/dropDatabas3/staffauth/internal/security/ipallow"
)

// Deps contiene controllers y piezas transversales.
type Deps struct {
	Auth    *authctrl.Controller
	Account *accountctrl.Controller
	OAuth   *oauthctrl.TokenController
	Health  *healthctrl.Controller

	Issuer         *jwtx.Issuer
	LoginLimiter   rate.Limiter // nil = sin límite
	TrustedProxies *ipallow.List
	// Gatherer expone /metrics; nil = prometheus.DefaultGatherer.
	Gatherer prometheus.Gatherer
}

// New devuelve el handler raíz.
func New(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		mw.WithRequestID(),
		mw.WithRequestScope(d.TrustedProxies),
		mw.WithLogging(),
		mw.WithRecover(),
	)
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		httperrors.WriteError(w, httperrors.ErrMethodNotAllowed)
	})

	limited := mw.WithRateLimit(d.LoginLimiter, mw.IPRateKey)

	r.Route("/auth", func(r chi.Router) {
		r.With(limited).Post("/sign-in", d.Auth.SignIn)
		r.With(limited).Post("/mfa-challenge", d.Auth.MfaChallenge)
		r.With(limited).Post("/mfa-resend", d.Auth.MfaResend)

		r.With(limited).Post("/reset-password", d.Account.RequestReset)
		r.Post("/reset-password/confirm", d.Account.ConfirmReset)
		r.Post("/change-password", d.Account.ChangeExpired)

		r.With(mw.WithBearer(d.Issuer)).Post("/verify-email", d.Account.RequestVerify)
		r.Get("/verify-email/confirm", d.Account.ConfirmVerify)
	})

	r.Post("/oauth/token", d.OAuth.Token)
	r.Get("/.well-known/jwks.json", d.Health.JWKS)
	r.Get("/health", d.Health.Health)

	gatherer := d.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}
