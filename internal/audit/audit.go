// Package audit emite los eventos de telemetría del núcleo (AuthenticateSuccess,
// ResetPasswordRequest, CreateAccessToken, ...). Cada evento se escribe como
// log estructurado y se cuenta en staffauth_auth_events_total.
package audit

import (
	"context"
	"sort"
	"sync"

	"github.com/dropDatabas3/staffauth/internal/metrics"
	"github.com/dropDatabas3/staffauth/internal/observability/logger"
	"go.uber.org/zap"
)

// Recorder recibe eventos de auditoría.
type Recorder interface {
	Record(ctx context.Context, event string, fields map[string]string)
}

// LogRecorder escribe el evento en el logger del contexto.
type LogRecorder struct{}

func (LogRecorder) Record(ctx context.Context, event string, fields map[string]string) {
	Log(ctx, event, fields)
}

// Default es el recorder usado cuando un servicio no recibe uno.
var Default Recorder = LogRecorder{}

// OrDefault retorna r o Default si r es nil.
func OrDefault(r Recorder) Recorder {
	if r == nil {
		return Default
	}
	return r
}

// Log escribe un evento de auditoría estructurado.
func Log(ctx context.Context, event string, fields map[string]string) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	zf := make([]zap.Field, 0, len(keys)+1)
	zf = append(zf, zap.String("event", event))
	for _, k := range keys {
		zf = append(zf, zap.String(k, fields[k]))
	}
	logger.From(ctx).Named("audit").Info("audit", zf...)
	metrics.AuthEvents.WithLabelValues(event).Inc()
}

// Event es un evento capturado por Memory.
type Event struct {
	Name   string
	Fields map[string]string
}

// Memory guarda los eventos en memoria; útil en tests y en el CLI.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

func (m *Memory) Record(_ context.Context, event string, fields map[string]string) {
	cp := make(map[string]string, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	m.mu.Lock()
	m.events = append(m.events, Event{Name: event, Fields: cp})
	m.mu.Unlock()
}

// Events retorna una copia de los eventos registrados.
func (m *Memory) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Names retorna los nombres de los eventos en orden de llegada.
func (m *Memory) Names() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.events))
	for i, e := range m.events {
		out[i] = e.Name
	}
	return out
}
