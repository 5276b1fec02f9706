// Package errors define el error estándar de la capa HTTP y su escritura.
package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// AppError es la respuesta de error de la API.
type AppError struct {
	Code    string `json:"error"`
	Message string `json:"message,omitempty"`
	Detail  string `json:"detail,omitempty"`
	// Reasons lleva los motivos hacia afuera de un login o reset fallido.
	Reasons    []string `json:"reasons,omitempty"`
	HTTPStatus int      `json:"-"`
	Err        error    `json:"-"` // causa, solo para logs
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

// New crea un AppError.
func New(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

// FromError convierte cualquier error en AppError; lo desconocido es 500.
func FromError(err error) *AppError {
	if appErr, ok := err.(*AppError); ok {
		return appErr
	}
	return ErrInternal.WithCause(err)
}

// WithDetail devuelve una copia con detalle.
func (e *AppError) WithDetail(detail string) *AppError {
	c := *e
	c.Detail = detail
	return &c
}

// WithCause devuelve una copia con la causa original.
func (e *AppError) WithCause(err error) *AppError {
	c := *e
	c.Err = err
	return &c
}

// WithReasons devuelve una copia con motivos.
func (e *AppError) WithReasons(reasons ...string) *AppError {
	c := *e
	c.Reasons = append([]string(nil), reasons...)
	return &c
}

// WriteError escribe err como JSON.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(appErr)
}

// 400
var (
	ErrBadRequest    = New(http.StatusBadRequest, "bad_request", "La solicitud contiene parámetros inválidos.")
	ErrInvalidJSON   = New(http.StatusBadRequest, "invalid_json", "El cuerpo de la solicitud no es un JSON válido.")
	ErrMissingFields = New(http.StatusBadRequest, "missing_fields", "Faltan campos requeridos en la solicitud.")
	ErrInvalidToken  = New(http.StatusBadRequest, "invalid_token", "El token es inválido o expiró.")
	ErrPasswordRules = New(http.StatusBadRequest, "password_rejected", "La password no cumple la política.")
	ErrBodyTooLarge  = New(http.StatusRequestEntityTooLarge, "body_too_large", "El cuerpo de la solicitud excede el máximo permitido.")
)

// 401 / 403
var (
	ErrUnauthorized   = New(http.StatusUnauthorized, "unauthorized", "Se requiere autenticación.")
	ErrLoginFailed    = New(http.StatusUnauthorized, "login_failed", "No se pudo iniciar sesión.")
	ErrMfaRequired    = New(http.StatusUnauthorized, "mfa_required", "Se requiere un segundo factor.")
	ErrAccessDenied   = New(http.StatusForbidden, "access_denied", "El cliente no puede obtener tokens desde aquí.")
	ErrNotSupported   = New(http.StatusConflict, "not_supported", "La cuenta no admite esta operación.")
	ErrTooManyRequest = New(http.StatusTooManyRequests, "rate_limited", "Demasiadas solicitudes, intente más tarde.")
)

var (
	ErrNotFound         = New(http.StatusNotFound, "not_found", "Recurso no encontrado.")
	ErrMethodNotAllowed = New(http.StatusMethodNotAllowed, "method_not_allowed", "Método no permitido.")
)

// 5xx
var (
	ErrInternal           = New(http.StatusInternalServerError, "internal_error", "Error interno.")
	ErrServiceUnavailable = New(http.StatusServiceUnavailable, "service_unavailable", "Servicio no disponible.")
)
