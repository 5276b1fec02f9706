package audit

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dropDatabas3/staffauth/internal/metrics"
	"github.com/dropDatabas3/staffauth/internal/observability/logger"
)

func TestLogWritesEventAndCounts(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ctx := logger.ToContext(context.Background(), zap.New(core))

	before := testutil.ToFloat64(metrics.AuthEvents.WithLabelValues("AuthenticateSuccess"))
	LogRecorder{}.Record(ctx, "AuthenticateSuccess", map[string]string{
		"username": "JSMITH",
		"clientId": "prison-staff-hub",
	})

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "audit", entry.LoggerName)
	fields := entry.ContextMap()
	assert.Equal(t, "AuthenticateSuccess", fields["event"])
	assert.Equal(t, "JSMITH", fields["username"])
	assert.Equal(t, "prison-staff-hub", fields["clientId"])

	after := testutil.ToFloat64(metrics.AuthEvents.WithLabelValues("AuthenticateSuccess"))
	assert.Equal(t, before+1, after)
}

func TestOrDefault(t *testing.T) {
	assert.Equal(t, Default, OrDefault(nil))
	m := &Memory{}
	assert.Same(t, m, OrDefault(m))
}

func TestMemoryCopiesFields(t *testing.T) {
	m := &Memory{}
	fields := map[string]string{"username": "JSMITH"}
	m.Record(context.Background(), "ResetPasswordRequest", fields)
	fields["username"] = "CHANGED"
	m.Record(context.Background(), "ResetPasswordSuccess", nil)

	assert.Equal(t, []string{"ResetPasswordRequest", "ResetPasswordSuccess"}, m.Names())
	events := m.Events()
	require.Len(t, events, 2)
	assert.Equal(t, "JSMITH", events[0].Fields["username"])
	assert.Empty(t, events[1].Fields)
}
