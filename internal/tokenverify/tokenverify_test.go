package tokenverify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type call struct {
	path  string
	query string
	body  string
	ctype string
}

func newServer(t *testing.T, status int) (*httptest.Server, func() []call) {
	t.Helper()
	var (
		mu    sync.Mutex
		calls []call
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		calls = append(calls, call{path: r.URL.Path, query: r.URL.RawQuery, body: string(b), ctype: r.Header.Get("Content-Type")})
		mu.Unlock()
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, func() []call {
		mu.Lock()
		defer mu.Unlock()
		return append([]call(nil), calls...)
	}
}

func TestForwardAccess(t *testing.T) {
	srv, calls := newServer(t, http.StatusOK)
	c := New(Config{Enabled: true, BaseURL: srv.URL + "/", Timeout: time.Second})

	c.ForwardAccess(context.Background(), "header.payload.sig", "jwt id/1")
	c.Wait()

	got := calls()
	require.Len(t, got, 1)
	assert.Equal(t, "/token", got[0].path)
	assert.Equal(t, "authJwtId=jwt+id%2F1", got[0].query)
	assert.Equal(t, "header.payload.sig", got[0].body)
	assert.Equal(t, "text/plain", got[0].ctype)
}

func TestForwardRefresh(t *testing.T) {
	srv, calls := newServer(t, http.StatusOK)
	c := New(Config{Enabled: true, BaseURL: srv.URL})

	c.ForwardRefresh(context.Background(), "new.access.token", "abc")
	c.Wait()

	got := calls()
	require.Len(t, got, 1)
	assert.Equal(t, "/token/refresh", got[0].path)
	assert.Equal(t, "accessJwtId=abc", got[0].query)
}

func TestForwardOutlivesRequestContext(t *testing.T) {
	srv, calls := newServer(t, http.StatusOK)
	c := New(Config{Enabled: true, BaseURL: srv.URL})

	ctx, cancel := context.WithCancel(context.Background())
	c.ForwardAccess(ctx, "t", "id")
	cancel()
	c.Wait()
	assert.Len(t, calls(), 1)
}

func TestForwardFailureDoesNotBlock(t *testing.T) {
	srv, calls := newServer(t, http.StatusInternalServerError)
	c := New(Config{Enabled: true, BaseURL: srv.URL})
	c.ForwardAccess(context.Background(), "t", "id")
	c.Wait()
	assert.Len(t, calls(), 1)

	down := New(Config{Enabled: true, BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})
	down.ForwardAccess(context.Background(), "t", "id")
	down.Wait()
}

func TestDisabled(t *testing.T) {
	srv, calls := newServer(t, http.StatusOK)
	for _, cfg := range []Config{
		{Enabled: false, BaseURL: srv.URL},
		{Enabled: true},
	} {
		c := New(cfg)
		c.ForwardAccess(context.Background(), "t", "id")
		c.Wait()
	}
	assert.Empty(t, calls())
}

func TestRecorder(t *testing.T) {
	var r Recorder
	var f Forwarder = &r
	f.ForwardAccess(context.Background(), "a", "1")
	f.ForwardRefresh(context.Background(), "b", "1")
	assert.Equal(t, []Forward{{Token: "a", JwtID: "1"}, {Refresh: true, Token: "b", JwtID: "1"}}, r.Forwards())
}
