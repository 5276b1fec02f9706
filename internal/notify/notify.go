// Package notify envía las notificaciones a usuarios (códigos MFA, links de
// reset y verificación) por email o SMS a partir de plantillas.
package notify

import (
	"context"
	"errors"
	"net"
	"net/textproto"

	"github.com/dropDatabas3/staffauth/internal/observability/logger"
	tokens "github.com/dropDatabas3/staffauth/internal/security/token"
)

// Notifier es lo que consumen los servicios del núcleo.
type Notifier interface {
	SendEmail(ctx context.Context, templateID, address string, params map[string]string) error
	SendSMS(ctx context.Context, templateID, phone string, params map[string]string) error
}

// Mailer entrega un email ya renderizado.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMSSender entrega un SMS ya renderizado.
type SMSSender interface {
	SendSMS(ctx context.Context, phone, body string) error
}

// Deps contiene las dependencias del servicio.
type Deps struct {
	Mailer    Mailer
	SMS       SMSSender // nil = LogSMSSender
	Templates *Templates
}

// Service renderiza plantillas y delega la entrega.
type Service struct {
	mailer    Mailer
	sms       SMSSender
	templates *Templates
}

// NewService crea el servicio.
func NewService(deps Deps) *Service {
	if deps.SMS == nil {
		deps.SMS = LogSMSSender{}
	}
	return &Service{mailer: deps.Mailer, sms: deps.SMS, templates: deps.Templates}
}

// SendEmail renderiza y envía. Un error de servidor (red o SMTP 4xx
// transitorio) se reintenta una vez.
func (s *Service) SendEmail(ctx context.Context, templateID, address string, params map[string]string) error {
	subject, body, err := s.templates.Render(templateID, params)
	if err != nil {
		return err
	}
	err = s.mailer.Send(ctx, address, subject, body)
	if err != nil && IsServerError(err) {
		logger.From(ctx).Warn("email delivery failed, retrying",
			logger.Component("notify"), logger.String("template", templateID), logger.Err(err))
		err = s.mailer.Send(ctx, address, subject, body)
	}
	return err
}

// SendSMS renderiza y envía un SMS con la misma política de reintento.
func (s *Service) SendSMS(ctx context.Context, templateID, phone string, params map[string]string) error {
	_, body, err := s.templates.Render(templateID, params)
	if err != nil {
		return err
	}
	err = s.sms.SendSMS(ctx, phone, body)
	if err != nil && IsServerError(err) {
		err = s.sms.SendSMS(ctx, phone, body)
	}
	return err
}

// ServerError marca un fallo del lado del proveedor.
type ServerError struct{ Err error }

func (e *ServerError) Error() string { return "notify: server error: " + e.Err.Error() }
func (e *ServerError) Unwrap() error { return e.Err }

// IsServerError indica si el error es transitorio del lado del servidor.
func IsServerError(err error) bool {
	var se *ServerError
	if errors.As(err, &se) {
		return true
	}
	var te *textproto.Error
	if errors.As(err, &te) {
		return te.Code >= 400 && te.Code < 500
	}
	var ne net.Error
	return errors.As(err, &ne)
}

// LogSMSSender solo registra el envío; no hay gateway SMS configurado.
type LogSMSSender struct{}

func (LogSMSSender) SendSMS(ctx context.Context, phone, body string) error {
	logger.From(ctx).Info("sms not delivered, no gateway configured",
		logger.Component("notify.sms"), logger.String("phone", tokens.MaskPhone(phone)))
	return nil
}

// LogMailer registra el email en lugar de enviarlo (dev, sin SMTP).
type LogMailer struct{}

func (LogMailer) Send(ctx context.Context, to, subject, body string) error {
	logger.From(ctx).Info("email not delivered, no smtp configured",
		logger.Component("notify.mail"), logger.Email(tokens.MaskEmail(to)), logger.String("subject", subject))
	return nil
}
