package logger

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

func lines(t *testing.T, buf *zaptest.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, l := range buf.Lines() {
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(l), &m))
		out = append(out, m)
	}
	return out
}

func TestNewProdWritesJSONWithServiceFields(t *testing.T) {
	buf := &zaptest.Buffer{}
	l := New(Config{Env: "prod", Level: "warn", ServiceName: "staffauth", Version: "1.2.0"}, buf)

	l.Info("dropped")
	l.Warn("kept", Username("JSMITH"))

	got := lines(t, buf)
	require.Len(t, got, 1)
	assert.Equal(t, "kept", got[0]["msg"])
	assert.Equal(t, "staffauth", got[0]["service"])
	assert.Equal(t, "1.2.0", got[0]["version"])
	assert.Equal(t, "JSMITH", got[0]["username"])
}

func TestRedactsSecretsAndTokens(t *testing.T) {
	buf := &zaptest.Buffer{}
	l := New(Config{Env: "prod", Level: "debug"}, buf).With(zap.String("client_secret", "s3cret"))

	l.Info("sign in",
		zap.String("password", "hunter2"),
		zap.String("code", "123456"),
		zap.String("token", "abcdef-123"),
		zap.String("refresh_token", "xy"),
	)
	l.Info("already masked", zap.String("token", "abcd****"))

	got := lines(t, buf)
	require.Len(t, got, 2)
	assert.Equal(t, "****", got[0]["client_secret"])
	assert.Equal(t, "****", got[0]["password"])
	assert.Equal(t, "****", got[0]["code"])
	assert.Equal(t, "abcd****", got[0]["token"])
	assert.Equal(t, "****", got[0]["refresh_token"])
	assert.Equal(t, "abcd****", got[1]["token"])
	assert.NotContains(t, strings.Join(buf.Lines(), "\n"), "hunter2")
}

func TestScopedCarriesFields(t *testing.T) {
	buf := &zaptest.Buffer{}
	base := New(Config{Env: "prod"}, buf)

	ctx, l := Scoped(ToContext(context.Background(), base), RequestID("r-1"))
	l.Info("one")
	From(ctx).Info("two", Op("Authenticate"))

	got := lines(t, buf)
	require.Len(t, got, 2)
	for _, m := range got {
		assert.Equal(t, "r-1", m["request_id"])
	}
	assert.Equal(t, "Authenticate", got[1]["op"])
}

func TestFromFallsBackToGlobal(t *testing.T) {
	assert.NotNil(t, From(context.Background()))
	assert.Same(t, L(), From(nil)) //nolint:staticcheck
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel(" DEBUG "))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}
