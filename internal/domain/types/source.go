// Package types define tipos de dominio compartidos entre paquetes.
package types

import "strings"

// AuthSource identifica el directorio dueño de una identidad.
type AuthSource string

const (
	// SourceAuth es el almacén local de credenciales.
	SourceAuth AuthSource = "auth"
	// SourceNomis es el directorio externo de personal con credenciales propias.
	SourceNomis AuthSource = "nomis"
	// SourceAzureAD es el broker federado; nunca valida passwords localmente.
	SourceAzureAD AuthSource = "azuread"
	// SourceDelius es el segundo directorio externo de personal.
	SourceDelius AuthSource = "delius"
	// SourceNone indica que no hay identidad (tokens client-only).
	SourceNone AuthSource = "none"
)

// MasterPrecedence es el orden en que se consultan los directorios para
// resolver la identidad maestra de un username.
var MasterPrecedence = []AuthSource{SourceAuth, SourceNomis, SourceAzureAD, SourceDelius}

// IsValid retorna true si la fuente es conocida.
func (s AuthSource) IsValid() bool {
	switch s {
	case SourceAuth, SourceNomis, SourceAzureAD, SourceDelius, SourceNone:
		return true
	}
	return false
}

// OwnsCredentials retorna true si el directorio verifica passwords propias.
func (s AuthSource) OwnsCredentials() bool {
	switch s {
	case SourceAuth, SourceNomis, SourceDelius:
		return true
	}
	return false
}

func (s AuthSource) String() string { return string(s) }

// ParseAuthSource normaliza y valida una fuente. Devuelve false si no es conocida.
func ParseAuthSource(v string) (AuthSource, bool) {
	s := AuthSource(strings.ToLower(strings.TrimSpace(v)))
	return s, s.IsValid()
}

// SourceOrNone devuelve la fuente parseada o SourceNone si no es válida.
func SourceOrNone(v string) AuthSource {
	if s, ok := ParseAuthSource(v); ok {
		return s
	}
	return SourceNone
}
