package logger

import (
	"time"

	"go.uber.org/zap"
)

// Field es un alias de zap.Field para armar listas sin importar zap.
type Field = zap.Field

// Request HTTP.

func RequestID(v string) Field       { return zap.String("request_id", v) }
func Method(v string) Field          { return zap.String("method", v) }
func Path(v string) Field            { return zap.String("path", v) }
func Status(v int) Field             { return zap.Int("status", v) }
func Bytes(v int) Field              { return zap.Int("bytes", v) }
func ClientIP(v string) Field        { return zap.String("client_ip", v) }
func Duration(v time.Duration) Field { return zap.Duration("duration", v) }

// Identidad y emisión.

// Username es el username ya normalizado; nunca el valor crudo del form.
func Username(v string) Field { return zap.String("username", v) }

// AuthSource es el directorio dueño de la identidad (auth, nomis, azuread, delius).
func AuthSource(v string) Field { return zap.String("auth_source", v) }
func TokenType(v string) Field  { return zap.String("token_type", v) }
func ClientID(v string) Field   { return zap.String("client_id", v) }
func JwtID(v string) Field      { return zap.String("jti", v) }

// Email espera el valor ya enmascarado con token.MaskEmail.
func Email(v string) Field { return zap.String("email", v) }

// Ubicación en el código.

func Component(v string) Field { return zap.String("component", v) }
func Layer(v string) Field     { return zap.String("layer", v) }
func Op(v string) Field        { return zap.String("op", v) }
func Err(err error) Field      { return zap.Error(err) }
func Count(v int) Field        { return zap.Int("count", v) }

// Genéricos.

func Any(key string, v any) Field   { return zap.Any(key, v) }
func String(key, v string) Field    { return zap.String(key, v) }
func Int(key string, v int) Field   { return zap.Int(key, v) }
func Bool(key string, v bool) Field { return zap.Bool(key, v) }
