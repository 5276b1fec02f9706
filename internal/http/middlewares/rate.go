package middlewares

import (
	"math"
	"net/http"
	"strconv"

	httperrors "github.com/dropDatabas3/staffauth/internal/http/errors"
	"github.com/dropDatabas3/staffauth/internal/observability/logger"
	"github.com/dropDatabas3/staffauth/internal/rate"
	"github.com/dropDatabas3/staffauth/internal/requestctx"
)

// RateKeyFunc arma la clave de rate limiting.
type RateKeyFunc func(r *http.Request) string

// IPRateKey usa path + IP del cliente. No lee el body.
func IPRateKey(r *http.Request) string {
	return r.URL.Path + "|" + requestctx.ClientIP(r.Context())
}

// WithRateLimit aplica l con la clave dada. Si el limiter falla se deja
// pasar el request.
func WithRateLimit(l rate.Limiter, key RateKeyFunc) Middleware {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		if key == nil {
			key = IPRateKey
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res, err := l.Allow(r.Context(), key(r))
			if err != nil {
				logger.From(r.Context()).Warn("rate limiter failed, allowing request",
					logger.Op("WithRateLimit"), logger.Err(err))
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(res.Remaining, 10))
			if !res.Allowed {
				secs := int64(math.Ceil(res.RetryAfter.Seconds()))
				if secs < 1 {
					secs = 1
				}
				w.Header().Set("Retry-After", strconv.FormatInt(secs, 10))
				httperrors.WriteError(w, httperrors.ErrTooManyRequest)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
