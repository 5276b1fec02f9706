package directory

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/staffauth/internal/domain/types"
)

func TestHTTPClientClassifiesResponses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			u, p, _ := r.BasicAuth()
			assert.Equal(t, "svc", u)
			assert.Equal(t, "secret", p)
			_, _ = w.Write([]byte(`{"name":"x"}`))
		case "/missing":
			w.WriteHeader(http.StatusNotFound)
		case "/denied":
			w.WriteHeader(http.StatusUnauthorized)
		case "/bad":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"errorCode":1}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer srv.Close()

	c := NewHTTPClient(types.SourceNomis, HTTPConfig{BaseURL: srv.URL + "/", Username: "svc", Password: "secret"})
	ctx := context.Background()

	var out struct{ Name string }
	require.NoError(t, c.Do(ctx, http.MethodGet, "/ok", nil, &out))
	assert.Equal(t, "x", out.Name)

	assert.ErrorIs(t, c.Do(ctx, http.MethodGet, "/missing", nil, nil), ErrNotFound)
	assert.ErrorIs(t, c.Do(ctx, http.MethodGet, "/denied", nil, nil), ErrUnauthorized)

	var se *StatusError
	require.ErrorAs(t, c.Do(ctx, http.MethodGet, "/bad", nil, nil), &se)
	assert.Equal(t, http.StatusBadRequest, se.Status)
	assert.JSONEq(t, `{"errorCode":1}`, string(se.Body))

	err := c.Do(ctx, http.MethodGet, "/boom", nil, nil)
	assert.True(t, IsUnavailable(err))
	src, ok := UnavailableSource(err)
	assert.True(t, ok)
	assert.Equal(t, types.SourceNomis, src)
}

func TestHTTPClientTimeoutIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewHTTPClient(types.SourceDelius, HTTPConfig{BaseURL: srv.URL, ReadTimeout: 50 * time.Millisecond})
	err := c.Do(context.Background(), http.MethodGet, "/slow", nil, nil)
	src, ok := UnavailableSource(err)
	require.True(t, ok, "got %v", err)
	assert.Equal(t, types.SourceDelius, src)
}

func TestHTTPClientCallerCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()
	c := NewHTTPClient(types.SourceNomis, HTTPConfig{BaseURL: srv.URL})
	err := c.Do(ctx, http.MethodGet, "/slow", nil, nil)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.False(t, IsUnavailable(err))
}

func TestPolicyError(t *testing.T) {
	err := error(&PolicyError{Kind: PolicyValidation, Reasons: []string{"too_short"}})
	assert.ErrorIs(t, err, ErrPasswordPolicy)
	assert.Contains(t, err.Error(), "too_short")
}
