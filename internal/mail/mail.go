// Package mail provides the outbound email capability used by the services.
// The Sender is constructed once at startup and injected; there is no
// package-level transport singleton.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"net/smtp"
	"text/template"
)

// Sender delivers a single message. Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPConfig carries the connection settings for SMTPSender.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender sends mail over SMTP with PLAIN auth.
type SMTPSender struct {
	cfg SMTPConfig
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

func (s *SMTPSender) Send(_ context.Context, to, subject, body string) error {
	auth := smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-version: 1.0;\r\nContent-Type: text/plain; charset=\"UTF-8\";\r\n\r\n%s",
		s.cfg.From, to, subject, body))
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	return smtp.SendMail(addr, auth, s.cfg.From, []string{to}, msg)
}

// Nop discards all messages. Used when SMTP is not configured and in tests.
type Nop struct{}

func (Nop) Send(context.Context, string, string, string) error { return nil }

var inviteTmpl = template.Must(template.New("invite").Parse(
	`You have been invited to collaborate on "{{.MemoirTitle}}" as {{.Role}}.

To respond, visit:

    {{.Link}}

This invitation expires on {{.Expires}}.
`))

// InviteBody renders the invitation email body.
func InviteBody(memoirTitle, role, link, expires string) (string, error) {
	var buf bytes.Buffer
	err := inviteTmpl.Execute(&buf, struct {
		MemoirTitle, Role, Link, Expires string
	}{memoirTitle, role, link, expires})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}
