package middlewares

import (
	"context"
	"net/http"
	"strings"

	httperrors "github.com/dropDatabas3/staffauth/internal/http/errors"
	jwtx "github.com/dropDatabas3/staffauth/internal/jwt"
	"github.com/dropDatabas3/staffauth/internal/observability/logger"
)

const ctxClaimsKey ctxKey = "claims"

// WithBearer exige un access token válido de este issuer. Los refresh
// tokens (con ati) se rechazan.
func WithBearer(issuer *jwtx.Issuer) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				httperrors.WriteError(w, httperrors.ErrUnauthorized)
				return
			}
			claims, err := issuer.Parse(raw)
			if err != nil {
				logger.From(r.Context()).Debug("bearer rejected", logger.Op("WithBearer"), logger.Err(err))
				httperrors.WriteError(w, httperrors.ErrUnauthorized.WithCause(err))
				return
			}
			if _, isRefresh := claims[jwtx.ClaimATI]; isRefresh {
				httperrors.WriteError(w, httperrors.ErrUnauthorized.WithDetail("refresh token not accepted"))
				return
			}
			ctx := context.WithValue(r.Context(), ctxClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClaims devuelve las claims del bearer o nil.
func GetClaims(ctx context.Context) map[string]any {
	m, _ := ctx.Value(ctxClaimsKey).(map[string]any)
	return m
}

// ClaimString extrae un string de las claims.
func ClaimString(claims map[string]any, key string) string {
	s, _ := claims[key].(string)
	return s
}

func bearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(h[7:])
}
