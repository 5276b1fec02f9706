package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/dropDatabas3/staffauth/internal/observability/logger"
	mail "github.com/go-mail/mail"
)

// SMTPConfig son los datos de conexión del relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	// TLS: auto | starttls | ssl | none. auto usa STARTTLS si el servidor
	// lo ofrece; starttls lo exige.
	TLS                string
	InsecureSkipVerify bool
	Timeout            time.Duration
}

// SMTPSender implementa Mailer con go-mail. Abre una conexión por envío;
// el volumen son links de reset y códigos MFA.
type SMTPSender struct {
	cfg SMTPConfig
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) dialer() *mail.Dialer {
	d := mail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	d.Timeout = s.cfg.Timeout
	d.TLSConfig = &tls.Config{ServerName: s.cfg.Host, InsecureSkipVerify: s.cfg.InsecureSkipVerify}
	switch s.cfg.TLS {
	case "ssl":
		d.SSL = true
	case "starttls":
		d.StartTLSPolicy = mail.MandatoryStartTLS
	case "none":
		d.StartTLSPolicy = mail.NoStartTLS
	default:
		d.StartTLSPolicy = mail.OpportunisticStartTLS
	}
	return d
}

func (s *SMTPSender) message(to, subject, body string) *mail.Message {
	m := mail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", to)
	m.SetHeader("Subject", subject)
	m.SetDateHeader("Date", time.Now())
	m.SetBody("text/plain", body)
	return m
}

// Send envía un mail de texto plano. Un ctx ya cancelado no abre conexión.
func (s *SMTPSender) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log := logger.From(ctx).With(logger.Component("notify.smtp"), logger.String("host", s.cfg.Host))
	if err := s.dialer().DialAndSend(s.message(to, subject, body)); err != nil {
		log.Error("smtp send failed", logger.Err(err))
		return fmt.Errorf("smtp send: %w", err)
	}
	log.Debug("email sent", logger.String("subject", subject))
	return nil
}
