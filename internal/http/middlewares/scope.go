package middlewares

import (
	"net/http"

	"github.com/dropDatabas3/staffauth/internal/http/helpers"
	"github.com/dropDatabas3/staffauth/internal/requestctx"
	"github.com/dropDatabas3/staffauth/internal/security/ipallow"
)

// RememberMeCookie guarda el token MFA_RMBR en el navegador.
const RememberMeCookie = "sa_mfa_rmbr"

// WithRequestScope abre el estado del request (directorios caídos, IP del
// cliente, token remember-me) y lo vacía al terminar, pase lo que pase.
func WithRequestScope(trustedProxies *ipallow.List) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, scope := requestctx.New(r.Context())
			defer scope.Clear()

			scope.SetClientIP(helpers.ClientIP(r, trustedProxies))
			if c, err := r.Cookie(RememberMeCookie); err == nil && c.Value != "" {
				scope.SetRememberMeToken(c.Value)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
