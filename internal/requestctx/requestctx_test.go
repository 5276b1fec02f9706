package requestctx

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dropDatabas3/staffauth/internal/domain/types"
)

func TestScope(t *testing.T) {
	ctx, s := New(context.Background())

	var wg sync.WaitGroup
	for _, src := range []types.AuthSource{types.SourceNomis, types.SourceDelius, types.SourceNomis} {
		wg.Add(1)
		go func(src types.AuthSource) {
			defer wg.Done()
			MarkUnavailable(ctx, src)
		}(src)
	}
	wg.Wait()

	assert.Equal(t, []types.AuthSource{types.SourceDelius, types.SourceNomis}, Unavailable(ctx))
	assert.True(t, s.IsUnavailable(types.SourceNomis))
	assert.False(t, s.IsUnavailable(types.SourceAuth))

	s.SetClientIP("10.0.0.1")
	s.SetRememberMeToken("rmbr")
	assert.Equal(t, "10.0.0.1", ClientIP(ctx))
	assert.Equal(t, "rmbr", RememberMeToken(ctx))

	s.Clear()
	assert.Empty(t, Unavailable(ctx))
	assert.Empty(t, ClientIP(ctx))
	assert.Empty(t, RememberMeToken(ctx))
}

func TestScopeIsolatedPerRequest(t *testing.T) {
	ctxA, _ := New(context.Background())
	ctxB, _ := New(context.Background())
	MarkUnavailable(ctxA, types.SourceNomis)
	assert.Empty(t, Unavailable(ctxB))
}

func TestWithoutScope(t *testing.T) {
	ctx := context.Background()
	MarkUnavailable(ctx, types.SourceNomis)
	assert.Nil(t, Unavailable(ctx))
	assert.Empty(t, ClientIP(ctx))
	assert.Nil(t, From(ctx))
}
