package logger

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Claves cuyo valor nunca se escribe.
var secretKeys = map[string]bool{
	"password":      true,
	"secret":        true,
	"client_secret": true,
	"code":          true,
}

// Claves de tokens: solo se dejan los primeros caracteres.
var tokenKeys = map[string]bool{
	"token":         true,
	"access_token":  true,
	"refresh_token": true,
}

// redactCore enmascara campos sensibles antes de codificarlos, vengan de
// With o de la llamada de log.
type redactCore struct {
	zapcore.Core
}

func (c redactCore) With(fields []zapcore.Field) zapcore.Core {
	return redactCore{c.Core.With(redact(fields))}
}

func (c redactCore) Check(e zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(e.Level) {
		return ce.AddCore(e, c)
	}
	return ce
}

func (c redactCore) Write(e zapcore.Entry, fields []zapcore.Field) error {
	return c.Core.Write(e, redact(fields))
}

func redact(fields []zapcore.Field) []zapcore.Field {
	var out []zapcore.Field
	for i, f := range fields {
		masked, ok := maskField(f)
		if !ok {
			continue
		}
		if out == nil {
			out = append([]zapcore.Field(nil), fields...)
		}
		out[i] = masked
	}
	if out == nil {
		return fields
	}
	return out
}

func maskField(f zapcore.Field) (zapcore.Field, bool) {
	key := strings.ToLower(f.Key)
	switch {
	case secretKeys[key]:
		return zap.String(f.Key, "****"), true
	case tokenKeys[key] && f.Type == zapcore.StringType:
		if strings.HasSuffix(f.String, "****") {
			return f, false
		}
		if len(f.String) <= 4 {
			return zap.String(f.Key, "****"), true
		}
		return zap.String(f.Key, f.String[:4]+"****"), true
	}
	return f, false
}
