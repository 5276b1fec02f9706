// Package claims arma las claims de un access token a partir de la
// directiva jwtFields de cada cliente ("+campo,-campo").
package claims

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// Nombres de claims conocidos.
const (
	Sub              = "sub"
	UserName         = "user_name"
	AuthSource       = "auth_source"
	Name             = "name"
	UserID           = "user_id"
	UserUUID         = "user_uuid"
	DatabaseUsername = "database_username"
)

// DefaultFields es el conjunto base antes de aplicar la directiva.
var DefaultFields = []string{Sub, UserName, AuthSource, Name, UserID, UserUUID}

// ErrInvalidDirective indica una entrada sin prefijo + o - o sin nombre.
var ErrInvalidDirective = errors.New("claims: invalid jwtFields directive")

// Op es la acción de una entrada de la directiva.
type Op int

const (
	Add Op = iota
	Remove
)

func (o Op) String() string {
	if o == Remove {
		return "-"
	}
	return "+"
}

// FieldOp es una entrada parseada.
type FieldOp struct {
	Op    Op
	Field string
}

// Directive es la lista ordenada de operaciones.
type Directive []FieldOp

// ParseDirective parsea "+a,-b". Las entradas vacías se ignoran; los
// nombres distinguen mayúsculas.
func ParseDirective(s string) (Directive, error) {
	var d Directive
	for _, raw := range strings.Split(s, ",") {
		e := strings.TrimSpace(raw)
		if e == "" {
			continue
		}
		var op Op
		switch e[0] {
		case '+':
			op = Add
		case '-':
			op = Remove
		default:
			return nil, fmt.Errorf("%w: %q", ErrInvalidDirective, e)
		}
		field := strings.TrimSpace(e[1:])
		if field == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidDirective, e)
		}
		d = append(d, FieldOp{Op: op, Field: field})
	}
	return d, nil
}

// Apply aplica las operaciones de izquierda a derecha sobre base y retorna
// el conjunto resultante, en orden de inserción.
func (d Directive) Apply(base []string) []string {
	out := append([]string(nil), base...)
	for _, op := range d {
		idx := indexOf(out, op.Field)
		switch {
		case op.Op == Add && idx < 0:
			out = append(out, op.Field)
		case op.Op == Remove && idx >= 0:
			out = append(out[:idx], out[idx+1:]...)
		}
	}
	return out
}

// String vuelve a serializar la directiva.
func (d Directive) String() string {
	parts := make([]string, len(d))
	for i, op := range d {
		parts[i] = op.Op.String() + op.Field
	}
	return strings.Join(parts, ",")
}

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

// Enhancer resuelve el conjunto de campos por directiva, parseando cada
// directiva una sola vez.
type Enhancer struct {
	parsed sync.Map // string -> []string
}

// Fields retorna los campos que lleva el token para la directiva.
func (e *Enhancer) Fields(directive string) ([]string, error) {
	if v, ok := e.parsed.Load(directive); ok {
		return v.([]string), nil
	}
	d, err := ParseDirective(directive)
	if err != nil {
		return nil, err
	}
	fields := d.Apply(DefaultFields)
	e.parsed.Store(directive, fields)
	return fields, nil
}

// Enhance filtra values dejando solo los campos pedidos con valor no vacío.
func (e *Enhancer) Enhance(directive string, values map[string]any) (map[string]any, error) {
	fields, err := e.Fields(directive)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		v, ok := values[f]
		if !ok || v == nil {
			continue
		}
		if s, isStr := v.(string); isStr && s == "" {
			continue
		}
		out[f] = v
	}
	return out, nil
}
