package nomis

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/staffauth/internal/directory"
	"github.com/dropDatabas3/staffauth/internal/domain/repository"
	"github.com/dropDatabas3/staffauth/internal/domain/types"
)

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/users/ITAG_USER", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"username":"itag_user","staffId":1234,"firstName":"Itag","lastName":"User",
			"email":"Itag.User@Justice.gov.uk","accountStatus":"EXPIRED & LOCKED","enabled":true,
			"passwordExpiry":"2020-01-01T00:00:00Z","roles":["GLOBAL_SEARCH","ROLE_OMIC_ADMIN"]}`))
	})
	mux.HandleFunc("/users/ITAG_USER/authenticate", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["password"] != "password123" {
			w.WriteHeader(http.StatusUnauthorized)
		}
	})
	mux.HandleFunc("/users/ITAG_USER/change-password", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(http.StatusBadRequest)
		if body["password"] == "reused" {
			_, _ = w.Write([]byte(`{"errorCode":1001}`))
			return
		}
		_, _ = w.Write([]byte(`{"errorCode":1002,"userMessage":"too simple"}`))
	})
	mux.HandleFunc("/users/ITAG_USER/lock-user", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
	})
	mux.HandleFunc("/users/user", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("email") != "shared@justice.gov.uk" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte(`[{"username":"A"},{"username":"B"}]`))
	})
	mux.HandleFunc("/users/DOWN", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFindByUsername(t *testing.T) {
	a := New(directory.HTTPConfig{BaseURL: newServer(t).URL})
	ctx := context.Background()

	id, err := a.FindByUsername(ctx, "itag_user")
	require.NoError(t, err)
	assert.Equal(t, "ITAG_USER", id.Username)
	assert.Equal(t, "1234", id.UserID)
	assert.Equal(t, "itag.user@justice.gov.uk", id.Email)
	assert.True(t, id.Locked)
	assert.Equal(t, types.SourceNomis, id.Source)
	assert.Equal(t, []string{"ROLE_GLOBAL_SEARCH", "ROLE_OMIC_ADMIN"}, id.Authorities)
	assert.Equal(t, 2020, id.PasswordExpiry.Year())

	_, err = a.FindByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, directory.ErrNotFound)

	_, err = a.FindByUsername(ctx, "down")
	assert.True(t, directory.IsUnavailable(err))
}

func TestFindByEmail(t *testing.T) {
	a := New(directory.HTTPConfig{BaseURL: newServer(t).URL})
	ids, err := a.FindByEmail(context.Background(), "Shared@Justice.gov.uk")
	require.NoError(t, err)
	assert.Len(t, ids, 2)

	ids, err = a.FindByEmail(context.Background(), "none@justice.gov.uk")
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestCheckPassword(t *testing.T) {
	a := New(directory.HTTPConfig{BaseURL: newServer(t).URL})
	id := &repository.Identity{Username: "ITAG_USER"}

	ok, err := a.CheckPassword(context.Background(), id, "password123")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.CheckPassword(context.Background(), id, "wrong")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChangePassword(t *testing.T) {
	a := New(directory.HTTPConfig{BaseURL: newServer(t).URL})

	var pe *directory.PolicyError
	require.ErrorAs(t, a.ChangePassword(context.Background(), "itag_user", "reused"), &pe)
	assert.Equal(t, directory.PolicyReused, pe.Kind)

	require.ErrorAs(t, a.ChangePassword(context.Background(), "itag_user", "simple"), &pe)
	assert.Equal(t, directory.PolicyValidation, pe.Kind)
	assert.Equal(t, []string{"too simple"}, pe.Reasons)
}

func TestLock(t *testing.T) {
	a := New(directory.HTTPConfig{BaseURL: newServer(t).URL})
	assert.NoError(t, a.Lock(context.Background(), "itag_user"))
}
