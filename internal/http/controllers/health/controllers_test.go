package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/staffauth/internal/cache"
	"github.com/dropDatabas3/staffauth/internal/http/dto"
	jwtx "github.com/dropDatabas3/staffauth/internal/jwt"
)

func up(context.Context) error   { return nil }
func down(context.Context) error { return errors.New("connection refused") }

func health(t *testing.T, c *Controller) (int, dto.HealthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	c.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	var resp dto.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	return rec.Code, resp
}

func TestHealth(t *testing.T) {
	c := NewController(Deps{
		Checks: map[string]Check{"postgres": up, "redis": up},
		Cache:  cache.NewMemory("clients:"),
	})
	code, resp := health(t, c)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, map[string]string{"postgres": "up", "redis": "up"}, resp.Components)
	require.NotNil(t, resp.Cache)
	assert.Equal(t, "memory", resp.Cache.Driver)
}

func TestHealthDegraded(t *testing.T) {
	c := NewController(Deps{Checks: map[string]Check{"postgres": up, "redis": down}})
	code, resp := health(t, c)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unavailable", resp.Status)
	assert.Equal(t, "down", resp.Components["redis"])
	assert.Equal(t, "up", resp.Components["postgres"])
	assert.Nil(t, resp.Cache)
}

func TestJWKS(t *testing.T) {
	ks, err := jwtx.NewDevEd25519("k1")
	require.NoError(t, err)
	c := NewController(Deps{Issuer: jwtx.NewIssuer("http://auth.test", ks)})

	rec := httptest.NewRecorder()
	c.JWKS(rec, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "public, max-age=300", rec.Header().Get("Cache-Control"))
	assert.Contains(t, rec.Body.String(), `"kid":"k1"`)
}
