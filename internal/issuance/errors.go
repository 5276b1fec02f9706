package issuance

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnknownClient indica un client id no registrado.
	ErrUnknownClient = errors.New("issuance: unknown client")
	// ErrInvalidRefreshToken indica un refresh token inválido, vencido o de otro cliente.
	ErrInvalidRefreshToken = errors.New("issuance: invalid refresh token")
	// ErrAccessDenied agrupa los rechazos por política de cliente.
	ErrAccessDenied = errors.New("issuance: access denied")
	// ErrInvalidScope indica un scope pedido que el cliente no tiene.
	ErrInvalidScope = errors.New("issuance: invalid scope")
)

// AllowedIpError rechaza la emisión desde una IP fuera de la lista del cliente.
type AllowedIpError struct {
	ClientID string
	IP       string
}

func (e *AllowedIpError) Error() string {
	return fmt.Sprintf("unable to issue token as request is not from ip within allowed list (client %s, ip %s)", e.ClientID, e.IP)
}

func (e *AllowedIpError) Is(target error) bool { return target == ErrAccessDenied }

// EndDateClientError rechaza la emisión para un cliente con fecha de fin pasada.
type EndDateClientError struct {
	ClientID string
	EndDate  time.Time
}

func (e *EndDateClientError) Error() string {
	return fmt.Sprintf("unable to issue token as client %s has end date in past (%s)", e.ClientID, e.EndDate.Format("2006-01-02"))
}

func (e *EndDateClientError) Is(target error) bool { return target == ErrAccessDenied }

// InvalidScopeError rechaza un scope mal formado o no registrado para el cliente.
type InvalidScopeError struct {
	ClientID string
	Scope    string
}

func (e *InvalidScopeError) Error() string {
	return fmt.Sprintf("scope %q not allowed for client %s", e.Scope, e.ClientID)
}

func (e *InvalidScopeError) Is(target error) bool { return target == ErrInvalidScope }
