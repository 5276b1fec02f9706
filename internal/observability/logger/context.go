package logger

import (
	"context"

	"go.uber.org/zap"
)

type ctxKey struct{}

// ToContext inyecta un logger en el contexto.
func ToContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From devuelve el logger del contexto o el singleton si no hay uno.
func From(ctx context.Context) *zap.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(ctxKey{}).(*zap.Logger); ok && l != nil {
			return l
		}
	}
	return L()
}

// Scoped agrega campos al logger del contexto y devuelve el contexto nuevo
// junto con ese logger. Los middlewares lo usan para el logger del request.
func Scoped(ctx context.Context, fields ...zap.Field) (context.Context, *zap.Logger) {
	l := From(ctx).With(fields...)
	return ToContext(ctx, l), l
}
