package local

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/staffauth/internal/directory"
	"github.com/dropDatabas3/staffauth/internal/domain/repository"
	"github.com/dropDatabas3/staffauth/internal/domain/types"
	"github.com/dropDatabas3/staffauth/internal/security/password"
	"github.com/dropDatabas3/staffauth/internal/store/memory"
)

var fast = password.Params{Memory: 1024, Time: 1, Parallelism: 1, KeyLen: 32}

func setup(t *testing.T) (*Adapter, *memory.UserStore) {
	t.Helper()
	users := memory.NewUserStore()
	hash, err := password.Hash(fast, "password123")
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, users.Create(ctx, &repository.User{ID: "1", Username: "AUTH_USER", Email: "a@b.com", Source: types.SourceAuth, PasswordHash: hash, Enabled: true}))
	require.NoError(t, users.Create(ctx, &repository.User{ID: "2", Username: "NOMIS_SHADOW", Email: "a@b.com", Source: types.SourceNomis}))
	return New(users, Config{Params: fast, Policy: password.DefaultPolicy, PasswordAge: 30 * 24 * time.Hour}), users
}

func TestFind(t *testing.T) {
	a, _ := setup(t)
	ctx := context.Background()

	id, err := a.FindByUsername(ctx, "auth_user")
	require.NoError(t, err)
	assert.Equal(t, types.SourceAuth, id.Source)

	_, err = a.FindByUsername(ctx, "nomis_shadow")
	assert.ErrorIs(t, err, directory.ErrNotFound)

	ids, err := a.FindByEmail(ctx, "a@b.com")
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, "AUTH_USER", ids[0].Username)
}

func TestCheckPassword(t *testing.T) {
	a, _ := setup(t)
	id, err := a.FindByUsername(context.Background(), "auth_user")
	require.NoError(t, err)

	ok, err := a.CheckPassword(context.Background(), id, "password123")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = a.CheckPassword(context.Background(), id, "password124")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestChangePassword(t *testing.T) {
	a, users := setup(t)
	ctx := context.Background()

	var pe *directory.PolicyError
	require.ErrorAs(t, a.ChangePassword(ctx, "auth_user", "short"), &pe)
	assert.Equal(t, directory.PolicyValidation, pe.Kind)

	require.ErrorAs(t, a.ChangePassword(ctx, "auth_user", "password123"), &pe)
	assert.Equal(t, directory.PolicyReused, pe.Kind)

	require.NoError(t, a.ChangePassword(ctx, "auth_user", "newpassword1"))
	u, err := users.GetByUsername(ctx, "auth_user")
	require.NoError(t, err)
	assert.True(t, password.Verify("newpassword1", u.PasswordHash))
	assert.True(t, u.PasswordExpiry.After(time.Now().Add(29*24*time.Hour)))

	assert.ErrorIs(t, a.ChangePassword(ctx, "nobody", "newpassword1"), directory.ErrNotFound)
}

func TestLockUnlock(t *testing.T) {
	a, users := setup(t)
	ctx := context.Background()

	require.NoError(t, a.Lock(ctx, "auth_user"))
	u, _ := users.GetByUsername(ctx, "auth_user")
	assert.True(t, u.Locked)

	require.NoError(t, a.Unlock(ctx, "auth_user"))
	u, _ = users.GetByUsername(ctx, "auth_user")
	assert.False(t, u.Locked)

	assert.ErrorIs(t, a.Lock(ctx, "nobody"), directory.ErrNotFound)
}
