package azure

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/staffauth/internal/directory"
	"github.com/dropDatabas3/staffauth/internal/domain/repository"
	"github.com/dropDatabas3/staffauth/internal/domain/types"
	"github.com/dropDatabas3/staffauth/internal/store/memory"
)

func TestAdapter(t *testing.T) {
	ctx := context.Background()
	users := memory.NewUserStore()
	require.NoError(t, users.Create(ctx, &repository.User{ID: "f1", Username: "C6A1-B2", Email: "fed@justice.gov.uk", Source: types.SourceAzureAD, Enabled: true}))
	require.NoError(t, users.Create(ctx, &repository.User{ID: "l1", Username: "LOCAL", Email: "fed@justice.gov.uk", Source: types.SourceAuth}))
	a := New(users)

	id, err := a.FindByUsername(ctx, "c6a1-b2")
	require.NoError(t, err)
	assert.Equal(t, types.SourceAzureAD, id.Source)

	_, err = a.FindByUsername(ctx, "local")
	assert.ErrorIs(t, err, directory.ErrNotFound)

	ids, err := a.FindByEmail(ctx, "fed@justice.gov.uk")
	require.NoError(t, err)
	require.Len(t, ids, 1)

	_, err = a.CheckPassword(ctx, id, "anything")
	assert.ErrorIs(t, err, directory.ErrUnsupported)
	assert.ErrorIs(t, a.ChangePassword(ctx, "c6a1-b2", "x"), directory.ErrUnsupported)
	assert.ErrorIs(t, a.Lock(ctx, "c6a1-b2"), directory.ErrUnsupported)
}
