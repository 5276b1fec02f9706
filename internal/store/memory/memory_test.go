package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/staffauth/internal/domain/repository"
	"github.com/dropDatabas3/staffauth/internal/domain/types"
)

func TestUserStore(t *testing.T) {
	ctx := context.Background()
	s := NewUserStore()

	require.NoError(t, s.Create(ctx, &repository.User{ID: "u1", Username: "jsmith", Email: "J.Smith@Justice.gov.uk", Authorities: []string{"ROLE_A"}}))
	require.NoError(t, s.Create(ctx, &repository.User{ID: "u2", Username: "asmith", Email: "j.smith@justice.gov.uk"}))
	assert.ErrorIs(t, s.Create(ctx, &repository.User{Username: "JSMITH"}), repository.ErrConflict)

	u, err := s.GetByUsername(ctx, " jsmith ")
	require.NoError(t, err)
	assert.Equal(t, "JSMITH", u.Username)
	assert.Equal(t, "j.smith@justice.gov.uk", u.Email)
	u.Authorities[0] = "MUTATED"

	again, err := s.GetByUsername(ctx, "JSMITH")
	require.NoError(t, err)
	assert.Equal(t, []string{"ROLE_A"}, again.Authorities)

	found, err := s.FindByEmail(ctx, "J.SMITH@justice.gov.uk")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "ASMITH", found[0].Username)

	require.NoError(t, s.SetLocked(ctx, "jsmith", true))
	exp := time.Now().Add(time.Hour).UTC()
	require.NoError(t, s.UpdatePassword(ctx, "jsmith", "hash", exp))
	u, err = s.GetByUsername(ctx, "jsmith")
	require.NoError(t, err)
	assert.True(t, u.Locked)
	assert.Equal(t, "hash", u.PasswordHash)
	assert.Equal(t, exp, u.PasswordExpiry)

	_, err = s.GetByUsername(ctx, "nobody")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, s.SetLocked(ctx, "nobody", true), repository.ErrNotFound)
}

func TestRetryStore(t *testing.T) {
	ctx := context.Background()
	s := NewRetryStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Increment(ctx, "jsmith")
		}()
	}
	wg.Wait()

	r, err := s.Get(ctx, "JSMITH")
	require.NoError(t, err)
	assert.Equal(t, 20, r.Count)

	require.NoError(t, s.Reset(ctx, "jsmith"))
	r, err = s.Get(ctx, "jsmith")
	require.NoError(t, err)
	assert.Zero(t, r.Count)
	assert.False(t, r.ResetAt.IsZero())

	r, err = s.Get(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, r.Count)
}

func TestTokenStore(t *testing.T) {
	ctx := context.Background()
	s := NewTokenStore()
	now := time.Now()

	first := &repository.UserToken{Token: "t1", Type: types.TokenReset, Username: "jsmith", ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, s.Save(ctx, first))
	assert.ErrorIs(t, s.Save(ctx, first), repository.ErrConflict)

	// un segundo token del mismo tipo reemplaza al primero
	require.NoError(t, s.Save(ctx, &repository.UserToken{Token: "t2", Type: types.TokenReset, Username: "JSMITH", ExpiresAt: now.Add(time.Hour)}))
	_, err := s.Get(ctx, "t1")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// otro tipo convive
	require.NoError(t, s.Save(ctx, &repository.UserToken{Token: "t3", Type: types.TokenMFA, Username: "jsmith", ExpiresAt: now.Add(time.Hour)}))

	_, err = s.Consume(ctx, "t2", types.TokenMFA)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	got, err := s.Consume(ctx, "t2", types.TokenReset)
	require.NoError(t, err)
	assert.Equal(t, "JSMITH", got.Username)
	_, err = s.Consume(ctx, "t2", types.TokenReset)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, s.DeleteForUser(ctx, "jsmith", types.TokenMFA))
	_, err = s.Get(ctx, "t3")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	require.NoError(t, s.DeleteForUser(ctx, "jsmith", types.TokenMFA))
}

func TestTokenStoreConcurrentConsume(t *testing.T) {
	ctx := context.Background()
	s := NewTokenStore()
	require.NoError(t, s.Save(ctx, &repository.UserToken{Token: "once", Type: types.TokenMFACode, Username: "u", ExpiresAt: time.Now().Add(time.Minute)}))

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Consume(ctx, "once", types.TokenMFACode); err == nil {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins)
}

const clientsYAML = `
clients:
  - id: elite2apiclient-1
    secret_hash: "$argon2id$x"
    grant_types: [password, refresh_token]
    authorities: [ROLE_SYSTEM]
    scopes: [read, write]
    access_ttl: 20m
    jwt_fields: "+name,-user_name"
    mfa: UNTRUSTED
    mfa_remember_me: true
  - id: plain-client
configs:
  - base_client_id: elite2apiclient
    ips: ["10.0.0.1", "192.168.0.0/24"]
    client_end_date: "2030-01-31"
`

func TestParseClients(t *testing.T) {
	ctx := context.Background()
	s, err := ParseClients([]byte(clientsYAML))
	require.NoError(t, err)

	c, err := s.GetClient(ctx, "elite2apiclient-1")
	require.NoError(t, err)
	assert.Equal(t, 20*time.Minute, c.AccessTTL)
	assert.Equal(t, types.ClientMfaUntrusted, c.Mfa)
	assert.True(t, c.MfaRememberMe)
	assert.Equal(t, "+name,-user_name", c.JwtFields)

	plain, err := s.GetClient(ctx, "plain-client")
	require.NoError(t, err)
	assert.Equal(t, types.ClientMfaNone, plain.Mfa)

	cfg, err := s.GetConfig(ctx, "elite2apiclient")
	require.NoError(t, err)
	assert.Equal(t, []string{"10.0.0.1", "192.168.0.0/24"}, cfg.IPs)
	require.NotNil(t, cfg.ClientEndDate)
	assert.Equal(t, "2030-01-31", cfg.ClientEndDate.Format("2006-01-02"))

	_, err = s.GetClient(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	_, err = s.GetConfig(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestParseClientsInvalid(t *testing.T) {
	_, err := ParseClients([]byte("clients:\n  - grant_types: [password]\n"))
	assert.Error(t, err)
	_, err = ParseClients([]byte("configs:\n  - base_client_id: x\n    client_end_date: 31/01/2030\n"))
	assert.Error(t, err)
}
