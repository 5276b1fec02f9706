package logger

import (
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config configura el logger.
type Config struct {
	// Env: "prod" escribe JSON; cualquier otro valor, consola con colores.
	Env string
	// Level: debug | info | warn | error. Default info.
	Level string
	// ServiceName y Version se agregan a cada línea si no están vacíos.
	ServiceName string
	Version     string
}

func build(cfg Config) *zap.Logger {
	return New(cfg, nil)
}

// New arma un logger sin tocar el singleton. ws nil escribe a stderr.
// En prod se muestrean las líneas repetidas y los errores llevan stacktrace.
func New(cfg Config, ws zapcore.WriteSyncer) *zap.Logger {
	prod := strings.EqualFold(strings.TrimSpace(cfg.Env), "prod")
	if ws == nil {
		ws = zapcore.Lock(os.Stderr)
	}

	var enc zapcore.Encoder
	if prod {
		ec := zap.NewProductionEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		ec.EncodeCaller = zapcore.ShortCallerEncoder
		enc = zapcore.NewJSONEncoder(ec)
	} else {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		ec.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05.000")
		ec.EncodeCaller = zapcore.ShortCallerEncoder
		enc = zapcore.NewConsoleEncoder(ec)
	}

	var core zapcore.Core = redactCore{zapcore.NewCore(enc, ws, zap.NewAtomicLevelAt(parseLevel(cfg.Level)))}
	opts := []zap.Option{zap.AddCaller()}
	if prod {
		core = zapcore.NewSamplerWithOptions(core, time.Second, 100, 100)
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	var base []zap.Field
	if cfg.ServiceName != "" {
		base = append(base, zap.String("service", cfg.ServiceName))
	}
	if cfg.Version != "" {
		base = append(base, zap.String("version", cfg.Version))
	}
	if len(base) > 0 {
		opts = append(opts, zap.Fields(base...))
	}
	return zap.New(core, opts...)
}

// parseLevel convierte un string a zapcore.Level.
func parseLevel(lvl string) zapcore.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return zapcore.DebugLevel
	case "warn", "warning":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
