// Package validation valida los valores que los clientes piden al token
// endpoint.
package validation

import "regexp"

// Nombres de scope: minúsculas, empiezan y terminan en [a-z0-9], en el medio
// admiten ":_.-", hasta 64 caracteres. Ej: read, write, delius:read.
var scopeNameRe = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9:_\.-]{0,62}[a-z0-9])?$`)

// ValidScopeName indica si name es un nombre de scope aceptable.
func ValidScopeName(name string) bool {
	return scopeNameRe.MatchString(name)
}

// CheckScopes devuelve el primer scope pedido que no tiene un nombre válido
// o que el cliente no tiene registrado. allowed vacío acepta cualquier
// nombre válido.
func CheckScopes(requested, allowed []string) (string, bool) {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	for _, r := range requested {
		if !ValidScopeName(r) {
			return r, false
		}
		if len(set) == 0 {
			continue
		}
		if _, ok := set[r]; !ok {
			return r, false
		}
	}
	return "", true
}
