package usertoken

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropDatabas3/staffauth/internal/audit"
	"github.com/dropDatabas3/staffauth/internal/directory"
	"github.com/dropDatabas3/staffauth/internal/directory/directorytest"
	"github.com/dropDatabas3/staffauth/internal/domain/repository"
	"github.com/dropDatabas3/staffauth/internal/domain/types"
	"github.com/dropDatabas3/staffauth/internal/identity"
	"github.com/dropDatabas3/staffauth/internal/store/memory"
)

type fixture struct {
	svc    *Service
	users  *memory.UserStore
	tokens *memory.TokenStore
	nomis  *directorytest.Fake
	audit  *audit.Memory
	now    time.Time
}

func newFixture() *fixture {
	f := &fixture{
		users:  memory.NewUserStore(),
		tokens: memory.NewTokenStore(),
		nomis:  directorytest.New(types.SourceNomis),
		audit:  &audit.Memory{},
		now:    time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	ids := identity.NewService(identity.Deps{
		Users:    f.users,
		Adapters: []directory.Adapter{directorytest.New(types.SourceAuth), f.nomis},
	})
	f.svc = NewService(Deps{
		Tokens:   f.tokens,
		Identity: ids,
		Expiry:   map[types.TokenType]time.Duration{types.TokenMFA: 5 * time.Minute},
		Audit:    f.audit,
		Now:      func() time.Time { return f.now },
	})
	f.nomis.Add(repository.Identity{Username: "bob", Email: "bob@justice.gov.uk", Enabled: true}, "p")
	return f
}

func (f *fixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func TestExpiryDefaults(t *testing.T) {
	f := newFixture()
	assert.Equal(t, 5*time.Minute, f.svc.Expiry(types.TokenMFA))
	assert.Equal(t, 24*time.Hour, f.svc.Expiry(types.TokenReset))
	assert.Equal(t, 20*time.Minute, f.svc.Expiry(types.TokenChange))
	assert.Equal(t, 7*24*time.Hour, f.svc.Expiry(types.TokenMFARmbr))
}

func TestCreateTokenMaterializesShadow(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tok, err := f.svc.CreateToken(ctx, types.TokenReset, "bob")
	require.NoError(t, err)
	assert.NotEmpty(t, tok)

	u, err := f.users.GetByUsername(ctx, "BOB")
	require.NoError(t, err)
	assert.Equal(t, types.SourceNomis, u.Source)

	ut, err := f.svc.GetToken(ctx, types.TokenReset, tok)
	require.NoError(t, err)
	assert.Equal(t, "BOB", ut.Username)
	assert.Equal(t, f.now.Add(24*time.Hour), ut.ExpiresAt)
	assert.Contains(t, f.audit.Names(), "ResetPasswordRequest")
}

func TestCreateTokenUnknownUser(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CreateToken(context.Background(), types.TokenReset, "ghost")
	assert.ErrorIs(t, err, identity.ErrNotFound)
}

func TestCreateTokenInvalidType(t *testing.T) {
	f := newFixture()
	_, err := f.svc.CreateToken(context.Background(), types.TokenType("BOGUS"), "bob")
	assert.ErrorIs(t, err, ErrInvalidType)
}

func TestCreateTokenReplacesPrevious(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	first, err := f.svc.CreateToken(ctx, types.TokenReset, "bob")
	require.NoError(t, err)
	second, err := f.svc.CreateToken(ctx, types.TokenReset, "bob")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	reason, err := f.svc.CheckToken(ctx, types.TokenReset, first)
	require.NoError(t, err)
	assert.Equal(t, ReasonInvalid, reason)
	reason, err = f.svc.CheckToken(ctx, types.TokenReset, second)
	require.NoError(t, err)
	assert.Equal(t, ReasonNone, reason)
}

func TestMfaCodeIsNumeric(t *testing.T) {
	f := newFixture()
	code, err := f.svc.CreateToken(context.Background(), types.TokenMFACode, "bob")
	require.NoError(t, err)
	assert.Regexp(t, `^[0-9]{6}$`, code)
}

func TestCreateTokenForNewUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tok, err := f.svc.CreateTokenForNewUser(ctx, types.TokenReset, NewUser{
		Username: "new_user", Email: "New@Example.com", FirstName: " Ann ", LastName: "Smith",
	})
	require.NoError(t, err)

	u, err := f.users.GetByUsername(ctx, "NEW_USER")
	require.NoError(t, err)
	assert.Equal(t, types.SourceAuth, u.Source)
	assert.Equal(t, "new@example.com", u.Email)
	assert.Equal(t, "Ann", u.FirstName)
	assert.Empty(t, u.PasswordHash)

	ut, err := f.svc.GetToken(ctx, types.TokenReset, tok)
	require.NoError(t, err)
	assert.Equal(t, f.now.Add(DefaultInitialPasswordExpiry), ut.ExpiresAt)

	_, err = f.svc.CreateTokenForNewUser(ctx, types.TokenReset, NewUser{Username: "new_user"})
	assert.True(t, repository.IsConflict(err))
	_, err = f.svc.CreateTokenForNewUser(ctx, types.TokenReset, NewUser{Username: "  "})
	assert.ErrorIs(t, err, repository.ErrInvalidInput)
}

func TestGetTokenWrongType(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tok, err := f.svc.CreateToken(ctx, types.TokenReset, "bob")
	require.NoError(t, err)

	_, err = f.svc.GetToken(ctx, types.TokenVerified, tok)
	assert.True(t, repository.IsNotFound(err))
	_, err = f.svc.GetToken(ctx, types.TokenReset, "")
	assert.True(t, repository.IsNotFound(err))
}

func TestCheckTokenExpiredIsKept(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tok, err := f.svc.CreateToken(ctx, types.TokenMFA, "bob")
	require.NoError(t, err)

	f.advance(5*time.Minute + time.Second)
	reason, err := f.svc.CheckToken(ctx, types.TokenMFA, tok)
	require.NoError(t, err)
	assert.Equal(t, ReasonExpired, reason)

	_, err = f.svc.GetToken(ctx, types.TokenMFA, tok)
	assert.NoError(t, err)
	assert.Contains(t, f.audit.Names(), "MFAFailure")
}

func TestCheckTokenForUser(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tok, err := f.svc.CreateToken(ctx, types.TokenReset, "bob")
	require.NoError(t, err)
	reason, err := f.svc.CheckTokenForUser(ctx, types.TokenReset, tok, "Bob")
	require.NoError(t, err)
	assert.Equal(t, ReasonNone, reason)
	_, err = f.svc.GetToken(ctx, types.TokenReset, tok)
	require.NoError(t, err, "valid token stays in place")

	reason, err = f.svc.CheckTokenForUser(ctx, types.TokenReset, tok, "mallory")
	require.NoError(t, err)
	assert.Equal(t, ReasonInvalid, reason)
	_, err = f.svc.GetToken(ctx, types.TokenReset, tok)
	assert.True(t, repository.IsNotFound(err), "rejected token is removed")
}

func TestCheckTokenForUserExpiredIsRemoved(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tok, err := f.svc.CreateToken(ctx, types.TokenMFA, "bob")
	require.NoError(t, err)

	f.advance(time.Hour)
	reason, err := f.svc.CheckTokenForUser(ctx, types.TokenMFA, tok, "bob")
	require.NoError(t, err)
	assert.Equal(t, ReasonExpired, reason)
	_, err = f.svc.GetToken(ctx, types.TokenMFA, tok)
	assert.True(t, repository.IsNotFound(err))
}

func TestIsValidConsumes(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tok, err := f.svc.CreateToken(ctx, types.TokenMFACode, "bob")
	require.NoError(t, err)

	ok, err := f.svc.IsValid(ctx, types.TokenMFACode, tok, "bob")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = f.svc.IsValid(ctx, types.TokenMFACode, tok, "bob")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsValidRejectsOtherUserAndExpired(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	f.nomis.Add(repository.Identity{Username: "eve", Enabled: true}, "p")

	tok, err := f.svc.CreateToken(ctx, types.TokenMFACode, "bob")
	require.NoError(t, err)
	ok, err := f.svc.IsValid(ctx, types.TokenMFACode, tok, "eve")
	require.NoError(t, err)
	assert.False(t, ok)
	_, err = f.svc.GetToken(ctx, types.TokenMFACode, tok)
	assert.True(t, repository.IsNotFound(err))

	tok, err = f.svc.CreateToken(ctx, types.TokenMFACode, "bob")
	require.NoError(t, err)
	f.advance(time.Hour)
	ok, err = f.svc.IsValid(ctx, types.TokenMFACode, tok, "bob")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = f.svc.IsValid(ctx, types.TokenMFACode, "", "bob")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIsValidConcurrent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tok, err := f.svc.CreateToken(ctx, types.TokenMFACode, "bob")
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, err := f.svc.IsValid(ctx, types.TokenMFACode, tok, "bob"); err == nil && ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestConsumeToken(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tok, err := f.svc.CreateToken(ctx, types.TokenReset, "bob")
	require.NoError(t, err)

	_, reason, err := f.svc.ConsumeToken(ctx, types.TokenVerified, tok)
	require.NoError(t, err)
	assert.Equal(t, ReasonInvalid, reason, "wrong type leaves the token alone")

	ut, reason, err := f.svc.ConsumeToken(ctx, types.TokenReset, tok)
	require.NoError(t, err)
	assert.Equal(t, ReasonNone, reason)
	assert.Equal(t, "BOB", ut.Username)

	_, reason, err = f.svc.ConsumeToken(ctx, types.TokenReset, tok)
	require.NoError(t, err)
	assert.Equal(t, ReasonInvalid, reason)

	_, reason, err = f.svc.ConsumeToken(ctx, types.TokenReset, " ")
	require.NoError(t, err)
	assert.Equal(t, ReasonInvalid, reason)
}

func TestConsumeTokenExpired(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tok, err := f.svc.CreateToken(ctx, types.TokenReset, "bob")
	require.NoError(t, err)
	f.advance(25 * time.Hour)

	_, reason, err := f.svc.ConsumeToken(ctx, types.TokenReset, tok)
	require.NoError(t, err)
	assert.Equal(t, ReasonExpired, reason)
	_, err = f.svc.GetToken(ctx, types.TokenReset, tok)
	assert.True(t, repository.IsNotFound(err))
}

func TestConsumeTokenConcurrent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	tok, err := f.svc.CreateToken(ctx, types.TokenReset, "bob")
	require.NoError(t, err)

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, reason, err := f.svc.ConsumeToken(ctx, types.TokenReset, tok); err == nil && reason == ReasonNone {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestRemove(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	tok, err := f.svc.CreateToken(ctx, types.TokenVerified, "bob")
	require.NoError(t, err)
	require.NoError(t, f.svc.RemoveToken(ctx, types.TokenVerified, tok))
	require.NoError(t, f.svc.RemoveToken(ctx, types.TokenVerified, tok))
	require.NoError(t, f.svc.RemoveToken(ctx, types.TokenVerified, ""))

	tok, err = f.svc.CreateToken(ctx, types.TokenAccount, "bob")
	require.NoError(t, err)
	require.NoError(t, f.svc.RemoveForUser(ctx, types.TokenAccount, "bob"))
	_, err = f.svc.GetToken(ctx, types.TokenAccount, tok)
	assert.True(t, repository.IsNotFound(err))
}
