package helpers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/staffauth/internal/security/ipallow"
)

func TestClientIP(t *testing.T) {
	proxies, err := ipallow.Parse([]string{"10.0.0.0/8", "172.16.0.1"})
	require.NoError(t, err)

	tests := []struct {
		name    string
		remote  string
		xff     string
		trusted *ipallow.List
		want    string
	}{
		{"no proxies", "192.0.2.1:1234", "203.0.113.9", nil, "192.0.2.1"},
		{"untrusted peer ignores xff", "192.0.2.1:1234", "203.0.113.9", proxies, "192.0.2.1"},
		{"trusted peer without xff", "10.0.0.5:1234", "", proxies, "10.0.0.5"},
		{"rightmost untrusted hop", "10.0.0.5:1234", "198.51.100.1, 203.0.113.9, 172.16.0.1", proxies, "203.0.113.9"},
		{"all hops trusted", "10.0.0.5:1234", "10.0.0.1, 10.0.0.2", proxies, "10.0.0.1"},
		{"bare remote addr", "192.0.2.1", "", nil, "192.0.2.1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, ClientIP(r, tt.trusted))
		})
	}
}

func TestReadJSON(t *testing.T) {
	type body struct {
		Name string `json:"name"`
	}
	read := func(ct, payload string) (*httptest.ResponseRecorder, body, bool) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(payload))
		if ct != "" {
			r.Header.Set("Content-Type", ct)
		}
		rec := httptest.NewRecorder()
		var b body
		ok := ReadJSON(rec, r, &b)
		return rec, b, ok
	}

	_, b, ok := read("application/json; charset=utf-8", `{"name":"x","extra":1}`)
	assert.True(t, ok)
	assert.Equal(t, "x", b.Name)

	_, _, ok = read("application/json", "")
	assert.True(t, ok)

	rec, _, ok := read("text/plain", `{"name":"x"}`)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "bad_request")

	rec, _, ok = read("application/json", `{"name":`)
	assert.False(t, ok)
	assert.Contains(t, rec.Body.String(), "invalid_json")

	rec, _, ok = read("application/json", `{"name":"`+strings.Repeat("a", maxBody)+`"}`)
	assert.False(t, ok)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestWriteJSONAndNoStore(t *testing.T) {
	rec := httptest.NewRecorder()
	NoStore(rec)
	WriteJSON(rec, http.StatusCreated, map[string]string{"status": "ok"})

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no-cache", rec.Header().Get("Pragma"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
