package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/staffauth/internal/directory"
	"github.com/dropDatabas3/staffauth/internal/directory/directorytest"
	"github.com/dropDatabas3/staffauth/internal/domain/repository"
	"github.com/dropDatabas3/staffauth/internal/domain/types"
	"github.com/dropDatabas3/staffauth/internal/requestctx"
	"github.com/dropDatabas3/staffauth/internal/store/memory"
)

type fixture struct {
	svc    *Service
	users  *memory.UserStore
	auth   *directorytest.Fake
	nomis  *directorytest.Fake
	azure  *directorytest.Fake
	delius *directorytest.Fake
}

func newFixture() *fixture {
	f := &fixture{
		users:  memory.NewUserStore(),
		auth:   directorytest.New(types.SourceAuth),
		nomis:  directorytest.New(types.SourceNomis),
		azure:  directorytest.New(types.SourceAzureAD),
		delius: directorytest.New(types.SourceDelius),
	}
	// orden deliberadamente distinto a la precedencia
	f.svc = NewService(Deps{
		Users:    f.users,
		Adapters: []directory.Adapter{f.delius, f.azure, f.nomis, f.auth},
	})
	return f
}

func TestPrecedence(t *testing.T) {
	f := newFixture()
	f.auth.Add(repository.Identity{Username: "both", Enabled: true}, "p")
	f.nomis.Add(repository.Identity{Username: "both", Enabled: true}, "p")
	f.nomis.Add(repository.Identity{Username: "nomis_only", Enabled: true}, "p")
	f.azure.Add(repository.Identity{Username: "fed@justice.gov.uk", Enabled: true}, "")
	f.delius.Add(repository.Identity{Username: "delius_only", Enabled: true}, "p")

	ctx := context.Background()
	id, err := f.svc.FindMasterIdentity(ctx, "both")
	require.NoError(t, err)
	assert.Equal(t, types.SourceAuth, id.Source)

	id, err = f.svc.FindMasterIdentity(ctx, " nomis_only ")
	require.NoError(t, err)
	assert.Equal(t, types.SourceNomis, id.Source)

	id, err = f.svc.FindMasterIdentity(ctx, "delius_only")
	require.NoError(t, err)
	assert.Equal(t, types.SourceDelius, id.Source)

	id, err = f.svc.FindMasterIdentity(ctx, "fed@justice.gov.uk")
	require.NoError(t, err)
	assert.Equal(t, types.SourceAzureAD, id.Source)

	_, err = f.svc.FindMasterIdentity(ctx, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.FindMasterIdentity(ctx, "  ")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestEmailStyleUsernameSkipsDelius(t *testing.T) {
	f := newFixture()
	f.delius.Add(repository.Identity{Username: "x@probation.gov.uk"}, "p")

	_, err := f.svc.FindMasterIdentity(context.Background(), "x@probation.gov.uk")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, f.delius.Lookups)
}

func TestUnavailableDirectoryIsSkippedAndRecorded(t *testing.T) {
	f := newFixture()
	f.nomis.Add(repository.Identity{Username: "shared"}, "p")
	f.nomis.SetDown(true)
	f.delius.Add(repository.Identity{Username: "shared", Enabled: true}, "p")

	ctx, scope := requestctx.New(context.Background())
	id, err := f.svc.FindMasterIdentity(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, types.SourceDelius, id.Source)
	assert.Equal(t, []types.AuthSource{types.SourceNomis}, scope.Unavailable())

	// otro request no hereda la marca
	other, _ := requestctx.New(context.Background())
	f.nomis.SetDown(false)
	id, err = f.svc.FindMasterIdentity(other, "shared")
	require.NoError(t, err)
	assert.Equal(t, types.SourceNomis, id.Source)
	assert.Empty(t, requestctx.Unavailable(other))
}

func TestGetMasterIdentity(t *testing.T) {
	f := newFixture()
	f.delius.Add(repository.Identity{Username: "d"}, "p")
	ctx, scope := requestctx.New(context.Background())

	id, err := f.svc.GetMasterIdentity(ctx, "d", types.SourceDelius)
	require.NoError(t, err)
	assert.Equal(t, "D", id.Username)

	_, err = f.svc.GetMasterIdentity(ctx, "d", types.SourceNomis)
	assert.ErrorIs(t, err, ErrNotFound)

	f.delius.SetDown(true)
	_, err = f.svc.GetMasterIdentity(ctx, "d", types.SourceDelius)
	assert.True(t, directory.IsUnavailable(err))
	assert.True(t, scope.IsUnavailable(types.SourceDelius))
}

func TestFindEnabledOrLockedIdentity(t *testing.T) {
	f := newFixture()
	f.nomis.Add(repository.Identity{Username: "locked_nomis", Locked: true}, "p")
	f.delius.Add(repository.Identity{Username: "disabled_delius"}, "p")
	f.auth.Add(repository.Identity{Username: "enabled", Enabled: true}, "p")
	ctx := context.Background()

	_, err := f.svc.FindEnabledOrLockedIdentity(ctx, "locked_nomis")
	assert.NoError(t, err)
	_, err = f.svc.FindEnabledOrLockedIdentity(ctx, "disabled_delius")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.FindEnabledOrLockedIdentity(ctx, "enabled")
	assert.NoError(t, err)
}

func TestFindByEmailInDirectories(t *testing.T) {
	f := newFixture()
	f.auth.Add(repository.Identity{Username: "verified", Email: "a@b.com", Verified: true}, "p")
	f.auth.Add(repository.Identity{Username: "unverified", Email: "a@b.com"}, "p")
	f.nomis.Add(repository.Identity{Username: "n", Email: "a@b.com"}, "p")
	f.delius.Add(repository.Identity{Username: "d", Email: "a@b.com"}, "p")
	f.delius.SetDown(true)

	ctx, scope := requestctx.New(context.Background())
	ids, err := f.svc.FindByEmailInDirectories(ctx, "A@B.com", types.SourceAuth, types.SourceNomis, types.SourceDelius)
	require.NoError(t, err)
	require.Len(t, ids, 2)
	assert.Equal(t, "VERIFIED", ids[0].Username)
	assert.Equal(t, "N", ids[1].Username)
	assert.True(t, scope.IsUnavailable(types.SourceDelius))
}

func TestMaterialize(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	u, err := f.svc.Materialize(ctx, &repository.Identity{Username: "n1", Source: types.SourceNomis, Email: "N1@Justice.gov.uk"})
	require.NoError(t, err)
	assert.Equal(t, "n1@justice.gov.uk", u.Email)
	assert.True(t, u.Verified)
	assert.NotEmpty(t, u.ID)

	again, err := f.svc.Materialize(ctx, &repository.Identity{Username: "n1", Source: types.SourceNomis})
	require.NoError(t, err)
	assert.Equal(t, u.ID, again.ID)

	legacy, err := f.svc.Materialize(ctx, &repository.Identity{Username: "n2", Source: types.SourceNomis, Email: "old@hmps.gsi.gov.uk"})
	require.NoError(t, err)
	assert.Empty(t, legacy.Email)
	assert.False(t, legacy.Verified)

	d, err := f.svc.Materialize(ctx, &repository.Identity{Username: "d1", Source: types.SourceDelius, Email: "d@probation.gov.uk", Verified: false})
	require.NoError(t, err)
	assert.False(t, d.Verified)
}

func TestResolveOrCreateAndAnchor(t *testing.T) {
	f := newFixture()
	f.nomis.Add(repository.Identity{Username: "n", Email: "n@justice.gov.uk"}, "p")
	ctx := context.Background()

	u, err := f.svc.ResolveOrCreate(ctx, "n")
	require.NoError(t, err)
	assert.Equal(t, types.SourceNomis, u.Source)

	id, err := f.svc.FindMasterIdentity(ctx, "n")
	require.NoError(t, err)
	assert.Equal(t, u.ID, id.UUID)

	email, ok := f.svc.GetEmail(ctx, id)
	assert.True(t, ok)
	assert.Equal(t, "n@justice.gov.uk", email)
}

func TestGetEmailUnverified(t *testing.T) {
	f := newFixture()
	_, ok := f.svc.GetEmail(context.Background(), &repository.Identity{Username: "x", Source: types.SourceAuth, Email: "x@y.com"})
	assert.False(t, ok)
}
