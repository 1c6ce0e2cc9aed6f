// Package mailer delivers auth notification emails.
package mailer

import (
	"context"
	"crypto/tls"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-userauth"
	"github.com/goliatone/go-userauth/logging"
	"gopkg.in/gomail.v2"
)

// SMTPConfig holds the SMTP account settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Dialer sends composed messages. *gomail.Dialer satisfies it.
type Dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPMailer sends messages through an SMTP server with gomail.
type SMTPMailer struct {
	from   string
	dialer Dialer
	logger auth.Logger
}

var _ auth.Mailer = (*SMTPMailer)(nil)

// NewSMTPMailer builds a mailer for cfg. Port 465 uses implicit TLS,
// other ports upgrade with STARTTLS when the server offers it.
func NewSMTPMailer(cfg SMTPConfig, logger auth.Logger) *SMTPMailer {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	d.SSL = cfg.Port == 465
	d.TLSConfig = &tls.Config{ServerName: cfg.Host, MinVersion: tls.VersionTLS12}

	from := cfg.From
	if from == "" {
		from = cfg.Username
	}

	return NewSMTPMailerWithDialer(from, d, logger)
}

// NewSMTPMailerWithDialer uses a custom Dialer.
func NewSMTPMailerWithDialer(from string, dialer Dialer, logger auth.Logger) *SMTPMailer {
	if logger == nil {
		logger = logging.Default()
	}
	return &SMTPMailer{
		from:   from,
		dialer: dialer,
		logger: logger,
	}
}

// Compose renders msg into a gomail message.
func (m *SMTPMailer) Compose(msg auth.Message) *gomail.Message {
	gm := gomail.NewMessage()
	gm.SetHeader("From", m.from)
	gm.SetHeader("To", msg.To)
	gm.SetHeader("Subject", msg.Subject)
	gm.SetBody("text/html", msg.HTML)
	return gm
}

// Send delivers msg. gomail has no context support so cancellation is
// only checked before dialing.
func (m *SMTPMailer) Send(ctx context.Context, msg auth.Message) error {
	if msg.To == "" {
		return goerrors.New("recipient is required", goerrors.CategoryBadInput)
	}

	if err := ctx.Err(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "context cancelled before sending email")
	}

	if err := m.dialer.DialAndSend(m.Compose(msg)); err != nil {
		m.logger.Error("could not send email", "to", msg.To, "subject", msg.Subject, "error", err)
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to send email").
			WithMetadata(map[string]any{"to": msg.To})
	}

	m.logger.Debug("email sent", "to", msg.To, "subject", msg.Subject)
	return nil
}
