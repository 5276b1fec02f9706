package repository

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/dropDatabas3/staffauth/internal/domain/types"
)

// Client es un cliente OAuth registrado (clave = client id completo).
type Client struct {
	ID                    string
	SecretHash            string
	GrantTypes            []string
	Authorities           []string
	Scopes                []string
	AccessTTL             time.Duration
	JwtFields             string // directiva "+campo,-campo"
	DatabaseUsernameField string
	Mfa                   types.ClientMfa
	MfaRememberMe         bool
}

// ClientConfig es la configuración compartida por todas las instancias de
// un cliente (clave = base client id).
type ClientConfig struct {
	BaseClientID  string
	IPs           []string   // IPs o CIDRs permitidos; vacío = sin restricción
	ClientEndDate *time.Time // fecha (UTC, día) a partir de la cual no se emiten tokens
}

// ClientRepository expone clientes y su configuración compartida.
type ClientRepository interface {
	// GetClient retorna ErrNotFound si el client id no está registrado.
	GetClient(ctx context.Context, clientID string) (*Client, error)

	// GetConfig retorna ErrNotFound si no hay configuración para el base id.
	GetConfig(ctx context.Context, baseClientID string) (*ClientConfig, error)
}

var clientSuffix = regexp.MustCompile(`-[0-9]+$`)

// BaseClientID quita el sufijo de instancia ("-1", "-22") del client id.
func BaseClientID(clientID string) string {
	return clientSuffix.ReplaceAllString(strings.TrimSpace(clientID), "")
}
