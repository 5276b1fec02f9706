package logger

import (
	"sync/atomic"

	"go.uber.org/zap"
)

var global atomic.Pointer[zap.Logger]

// Init reemplaza el logger global. Se llama una vez desde main.
func Init(cfg Config) {
	global.Store(build(cfg))
}

// L devuelve el logger global; sin Init es un logger dev en nivel info.
func L() *zap.Logger {
	if l := global.Load(); l != nil {
		return l
	}
	l := build(Config{Env: "dev", Level: "info"})
	if global.CompareAndSwap(nil, l) {
		return l
	}
	return global.Load()
}

// Sync vacía los buffers del logger global.
func Sync() error {
	if l := global.Load(); l != nil {
		return l.Sync()
	}
	return nil
}
