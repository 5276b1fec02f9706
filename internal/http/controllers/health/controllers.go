// Package health contiene /health y el JWKS público.
package health

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/dropDatabas3/staffauth/internal/cache"
	"github.com/dropDatabas3/staffauth/internal/http/dto"
	"github.com/dropDatabas3/staffauth/internal/http/helpers"
	jwtx "github.com/dropDatabas3/staffauth/internal/jwt"
	"github.com/dropDatabas3/staffauth/internal/observability/logger"
)

// Check verifica un componente (postgres, redis, ...).
type Check func(ctx context.Context) error

// Deps contiene lo que necesita el controller.
type Deps struct {
	Checks map[string]Check
	Cache  cache.Client
	Issuer *jwtx.Issuer
}

// Controller atiende /health y /.well-known/jwks.json.
type Controller struct {
	deps Deps
}

// NewController crea el controller.
func NewController(deps Deps) *Controller {
	return &Controller{deps: deps}
}

// Health maneja GET /health. 503 si algún componente falla.
func (c *Controller) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	log := logger.From(ctx).With(logger.Layer("controller"), logger.Op("HealthController.Health"))

	resp := dto.HealthResponse{Status: "ok", Components: map[string]string{}}
	names := make([]string, 0, len(c.deps.Checks))
	for name := range c.deps.Checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := c.deps.Checks[name](ctx); err != nil {
			log.Warn("health check failed", logger.Component(name), logger.Err(err))
			resp.Components[name] = "down"
			resp.Status = "unavailable"
			continue
		}
		resp.Components[name] = "up"
	}
	if c.deps.Cache != nil {
		if st, err := c.deps.Cache.Stats(ctx); err == nil {
			resp.Cache = &dto.CacheStats{Driver: st.Driver, Hits: st.Hits, Misses: st.Misses, Keys: st.Keys}
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Cache-Control", "no-store")
	helpers.WriteJSON(w, status, resp)
}

// JWKS maneja GET /.well-known/jwks.json.
func (c *Controller) JWKS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=300")
	_, _ = w.Write(c.deps.Issuer.JWKSJSON())
}
