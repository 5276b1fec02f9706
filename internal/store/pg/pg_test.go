package pg

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/staffauth/internal/domain/repository"
	"github.com/dropDatabas3/staffauth/internal/domain/types"
	migrations "github.com/dropDatabas3/staffauth/migrations/postgres"
)

func TestMapErr(t *testing.T) {
	assert.ErrorIs(t, mapErr(&pgconn.PgError{Code: "23505"}), repository.ErrConflict)
	other := &pgconn.PgError{Code: "23503"}
	assert.Equal(t, error(other), mapErr(other))
	assert.Nil(t, mapErr(nil))
}

func TestNullHelpers(t *testing.T) {
	assert.Nil(t, nullIfEmpty("  "))
	assert.Equal(t, "x", *nullIfEmpty("x"))
	assert.Nil(t, nullTime(time.Time{}))
	assert.True(t, derefTime(nil).IsZero())
	assert.Empty(t, derefStr(nil))
}

// Los tests de integración corren solo con STAFFAUTH_TEST_PG_DSN definido.
func testPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv("STAFFAUTH_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("STAFFAUTH_TEST_PG_DSN not set")
	}
	ctx := context.Background()
	pool, err := Connect(ctx, PoolConfig{DSN: dsn, MaxConns: 4})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	_, err = Migrate(ctx, pool, migrations.FS)
	require.NoError(t, err)
	_, err = pool.Exec(ctx, `TRUNCATE users, user_token, user_retries`)
	require.NoError(t, err)
	return pool
}

func TestMigrateIdempotent(t *testing.T) {
	pool := testPool(t)
	applied, err := Migrate(context.Background(), pool, migrations.FS)
	require.NoError(t, err)
	assert.Empty(t, applied)
}

func TestUserRepo(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	repo := NewUserRepo(pool)

	u := &repository.User{
		ID: "7b0e3d52-4a53-4b3c-9a51-9f1c3d6b1a10", Username: "jsmith", Email: "J.Smith@Example.com",
		Verified: true, Enabled: true, Source: types.SourceAuth, Authorities: []string{"ROLE_A"},
		Contacts: []repository.Contact{{Type: types.ContactMobilePhone, Value: "0770", Verified: true}},
	}
	require.NoError(t, repo.Create(ctx, u))
	assert.True(t, repository.IsConflict(repo.Create(ctx, u)))

	got, err := repo.GetByUsername(ctx, "JSmith")
	require.NoError(t, err)
	assert.Equal(t, "JSMITH", got.Username)
	assert.Equal(t, "j.smith@example.com", got.Email)
	assert.Equal(t, []string{"ROLE_A"}, got.Authorities)
	phone, ok := got.VerifiedContact(types.ContactMobilePhone)
	assert.True(t, ok)
	assert.Equal(t, "0770", phone)

	byEmail, err := repo.FindByEmail(ctx, "j.smith@example.com")
	require.NoError(t, err)
	assert.Len(t, byEmail, 1)

	require.NoError(t, repo.SetLocked(ctx, "jsmith", true))
	expiry := time.Now().Add(time.Hour).UTC().Truncate(time.Second)
	require.NoError(t, repo.UpdatePassword(ctx, "jsmith", "$argon2id$hash", expiry))
	got, err = repo.GetByUsername(ctx, "JSMITH")
	require.NoError(t, err)
	assert.True(t, got.Locked)
	assert.Equal(t, "$argon2id$hash", got.PasswordHash)
	assert.True(t, expiry.Equal(got.PasswordExpiry))

	_, err = repo.GetByUsername(ctx, "ghost")
	assert.True(t, repository.IsNotFound(err))
}

func TestTokenRepo(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	repo := NewTokenRepo(pool)
	now := time.Now().UTC().Truncate(time.Second)

	first := &repository.UserToken{Token: "t1", Type: types.TokenReset, Username: "jsmith", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, repo.Save(ctx, first))
	second := &repository.UserToken{Token: "t2", Type: types.TokenReset, Username: "JSMITH", CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, repo.Save(ctx, second))

	_, err := repo.Get(ctx, "t1")
	assert.True(t, repository.IsNotFound(err), "one token per user and type")

	_, err = repo.Consume(ctx, "t2", types.TokenVerified)
	assert.True(t, repository.IsNotFound(err))
	got, err := repo.Consume(ctx, "t2", types.TokenReset)
	require.NoError(t, err)
	assert.Equal(t, "JSMITH", got.Username)
	_, err = repo.Consume(ctx, "t2", types.TokenReset)
	assert.True(t, repository.IsNotFound(err))

	require.NoError(t, repo.Save(ctx, first))
	require.NoError(t, repo.DeleteForUser(ctx, "jsmith", types.TokenReset))
	_, err = repo.Get(ctx, "t1")
	assert.True(t, repository.IsNotFound(err))
}

func TestRetryRepo(t *testing.T) {
	pool := testPool(t)
	ctx := context.Background()
	repo := NewRetryRepo(pool)

	for want := 1; want <= 3; want++ {
		n, err := repo.Increment(ctx, "jsmith")
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}
	r, err := repo.Get(ctx, "JSMITH")
	require.NoError(t, err)
	assert.Equal(t, 3, r.Count)

	require.NoError(t, repo.Reset(ctx, "jsmith"))
	r, err = repo.Get(ctx, "jsmith")
	require.NoError(t, err)
	assert.Zero(t, r.Count)
	assert.False(t, r.ResetAt.IsZero())

	r, err = repo.Get(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, r.Count)
}
