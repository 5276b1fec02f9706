// Package requestctx mantiene el estado que vive solo durante un request:
// los directorios que no respondieron, la IP del cliente y el token MFA
// remember-me. Nunca se guarda en variables de proceso.
package requestctx

import (
	"context"
	"sort"
	"sync"

	"github.com/dropDatabas3/staffauth/internal/domain/types"
)

type ctxKey struct{}

// Scope es el estado mutable de un request. Es seguro para uso concurrente
// (p.ej. búsquedas en paralelo contra varios directorios).
type Scope struct {
	mu          sync.Mutex
	unavailable map[types.AuthSource]struct{}
	clientIP    string
	rememberMe  string
}

// New crea un Scope vacío y lo inyecta en el contexto.
func New(ctx context.Context) (context.Context, *Scope) {
	s := &Scope{unavailable: make(map[types.AuthSource]struct{})}
	return context.WithValue(ctx, ctxKey{}, s), s
}

// From devuelve el Scope del contexto o nil. Los métodos de Scope aceptan
// receptor nil, así que el llamador no necesita chequear.
func From(ctx context.Context) *Scope {
	if ctx == nil {
		return nil
	}
	s, _ := ctx.Value(ctxKey{}).(*Scope)
	return s
}

// MarkUnavailable registra que un directorio no respondió en este request.
func (s *Scope) MarkUnavailable(src types.AuthSource) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.unavailable[src] = struct{}{}
	s.mu.Unlock()
}

// Unavailable devuelve los directorios caídos, ordenados.
func (s *Scope) Unavailable() []types.AuthSource {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.AuthSource, 0, len(s.unavailable))
	for src := range s.unavailable {
		out = append(out, src)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// IsUnavailable indica si el directorio fue marcado como caído.
func (s *Scope) IsUnavailable(src types.AuthSource) bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.unavailable[src]
	return ok
}

// SetClientIP guarda la IP resuelta del cliente.
func (s *Scope) SetClientIP(ip string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.clientIP = ip
	s.mu.Unlock()
}

// ClientIP devuelve la IP del cliente o "".
func (s *Scope) ClientIP() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientIP
}

// SetRememberMeToken guarda el token MFA_RMBR presentado por el navegador.
func (s *Scope) SetRememberMeToken(tok string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.rememberMe = tok
	s.mu.Unlock()
}

// RememberMeToken devuelve el token MFA_RMBR del request o "".
func (s *Scope) RememberMeToken() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rememberMe
}

// Clear vacía el Scope. Se llama al terminar cada request.
func (s *Scope) Clear() {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.unavailable = make(map[types.AuthSource]struct{})
	s.clientIP = ""
	s.rememberMe = ""
	s.mu.Unlock()
}

// MarkUnavailable es un atajo sobre From(ctx).MarkUnavailable.
func MarkUnavailable(ctx context.Context, src types.AuthSource) {
	From(ctx).MarkUnavailable(src)
}

// Unavailable es un atajo sobre From(ctx).Unavailable.
func Unavailable(ctx context.Context) []types.AuthSource {
	return From(ctx).Unavailable()
}

// ClientIP es un atajo sobre From(ctx).ClientIP.
func ClientIP(ctx context.Context) string {
	return From(ctx).ClientIP()
}

// RememberMeToken es un atajo sobre From(ctx).RememberMeToken.
func RememberMeToken(ctx context.Context) string {
	return From(ctx).RememberMeToken()
}
