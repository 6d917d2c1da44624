package services

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/mailgun/mailgun-go/v3"

	"foundation_site/internal/apperror"
	"foundation_site/internal/config"
)

// Mailer sends plain-text email.
type Mailer interface {
	SendEmail(ctx context.Context, to []string, subject, body string) error
}

// SMTPMailer sends through an authenticated SMTP relay.
type SMTPMailer struct {
	host     string
	port     string
	user     string
	password string
	from     string
}

func NewSMTPMailer(cfg config.EmailConfig) *SMTPMailer {
	return &SMTPMailer{
		host:     cfg.SMTPHost,
		port:     cfg.SMTPPort,
		user:     cfg.SMTPUser,
		password: cfg.SMTPPass,
		from:     cfg.From,
	}
}

func (s *SMTPMailer) SendEmail(ctx context.Context, to []string, subject, body string) error {
	if s.host == "" || s.port == "" || s.user == "" || s.password == "" {
		return apperror.Configuration("SMTP credentials not fully configured")
	}
	if len(to) == 0 {
		return apperror.New(apperror.KindBadRequest, "no recipients")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	auth := smtp.PlainAuth("", s.user, s.password, s.host)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)

	if err := smtp.SendMail(addr, auth, s.from, to, buildMessage(s.from, to, subject, body)); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}

func buildMessage(from string, to []string, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	b.WriteString("\r\n")
	return []byte(b.String())
}

// MailgunMailer sends through the Mailgun HTTP API.
type MailgunMailer struct {
	mg   mailgun.Mailgun
	from string
}

func NewMailgunMailer(cfg config.EmailConfig) *MailgunMailer {
	return &MailgunMailer{
		mg:   mailgun.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey),
		from: cfg.From,
	}
}

func (m *MailgunMailer) SendEmail(ctx context.Context, to []string, subject, body string) error {
	if len(to) == 0 {
		return apperror.New(apperror.KindBadRequest, "no recipients")
	}
	message := m.mg.NewMessage(m.from, subject, body, to...)
	if _, _, err := m.mg.Send(ctx, message); err != nil {
		return fmt.Errorf("mailgun send: %w", err)
	}
	return nil
}

// NewMailer picks Mailgun when it is configured, SMTP otherwise.
func NewMailer(cfg config.EmailConfig) Mailer {
	if cfg.MailgunDomain != "" && cfg.MailgunAPIKey != "" {
		return NewMailgunMailer(cfg)
	}
	return NewSMTPMailer(cfg)
}
