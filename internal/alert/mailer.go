// Package alert delivers scan reports and spike alerts by email. Delivery is
// best-effort: a failed send is logged and never fails the run that produced
// the report.
package alert

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	gomail "gopkg.in/gomail.v2"

	"kalshi-weather/internal/config"
)

// Attachment is a file carried with a message.
type Attachment struct {
	Filename string
	Content  []byte
}

// Message is one outbound email. HTMLBody wins when both bodies are set;
// TextBody then rides along as the plain-text alternative.
type Message struct {
	Subject     string
	TextBody    string
	HTMLBody    string
	Attachments []Attachment
}

// Mailer sends messages to the configured recipient.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns an SMTP mailer when email is enabled, otherwise a no-op that
// logs what it drops.
func New(cfg config.EmailConfig, logger *slog.Logger) Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	if !cfg.Enabled {
		return &noop{logger: logger}
	}
	return &smtpMailer{cfg: cfg, logger: logger}
}

type smtpMailer struct {
	cfg    config.EmailConfig
	logger *slog.Logger
}

func (m *smtpMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	mail := gomail.NewMessage()
	mail.SetHeader("From", m.cfg.From)
	mail.SetHeader("To", m.cfg.To)
	mail.SetHeader("Subject", msg.Subject)

	switch {
	case msg.HTMLBody != "" && msg.TextBody != "":
		mail.SetBody("text/plain", msg.TextBody)
		mail.AddAlternative("text/html", msg.HTMLBody)
	case msg.HTMLBody != "":
		mail.SetBody("text/html", msg.HTMLBody)
	default:
		mail.SetBody("text/plain", msg.TextBody)
	}

	for _, att := range msg.Attachments {
		content := att.Content
		mail.Attach(att.Filename, gomail.SetCopyFunc(func(w io.Writer) error {
			_, err := w.Write(content)
			return err
		}))
	}

	dialer := gomail.NewDialer(m.cfg.SMTPHost, m.cfg.SMTPPort, m.cfg.Username, m.cfg.Password)
	m.logger.Info("sending email", "subject", msg.Subject, "to", m.cfg.To)
	if err := dialer.DialAndSend(mail); err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

type noop struct {
	logger *slog.Logger
}

func (m *noop) Send(_ context.Context, msg Message) error {
	m.logger.Info("email disabled, dropping message", "subject", msg.Subject)
	return nil
}
