// Package mail implements port.Mailer over SMTP, with a logging fallback for
// local runs.
package mail

import (
	"context"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

var tracer = otel.Tracer("mail")

// SMTPConfig holds the SMTP relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// SMTPMailer sends mail through an SMTP relay with gomail.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
	logger *zap.Logger
}

// NewSMTPMailer creates a mailer for cfg.
func NewSMTPMailer(cfg SMTPConfig, logger *zap.Logger) *SMTPMailer {
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   cfg.From,
		logger: logger,
	}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, htmlBody string) error {
	_, span := tracer.Start(ctx, "SMTP.Send")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := m.dialer.DialAndSend(m.message(to, subject, htmlBody)); err != nil {
		m.logger.Error("smtp: send failed", zap.String("subject", subject), zap.Error(err))
		return fmt.Errorf("send mail: %w", err)
	}

	m.logger.Info("smtp: mail sent", zap.String("subject", subject))
	return nil
}

func (m *SMTPMailer) message(to, subject, htmlBody string) *gomail.Message {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/html", htmlBody)
	return msg
}

// LogMailer logs messages instead of sending them and keeps the last one per
// recipient so tests can read verification codes.
type LogMailer struct {
	logger *zap.Logger

	mu   sync.Mutex
	last map[string]Message
}

// Message is a captured e-mail.
type Message struct {
	To      string
	Subject string
	Body    string
}

// NewLogMailer creates a logging mailer.
func NewLogMailer(logger *zap.Logger) *LogMailer {
	return &LogMailer{logger: logger, last: map[string]Message{}}
}

func (m *LogMailer) Send(_ context.Context, to, subject, htmlBody string) error {
	m.mu.Lock()
	m.last[to] = Message{To: to, Subject: subject, Body: htmlBody}
	m.mu.Unlock()

	m.logger.Info("mail not sent (SMTP not configured)",
		zap.String("to", to),
		zap.String("subject", subject),
	)
	return nil
}

// Last returns the most recent message sent to addr.
func (m *LogMailer) Last(addr string) (Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.last[addr]
	return msg, ok
}
