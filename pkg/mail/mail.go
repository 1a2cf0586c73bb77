package mail

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
	"strings"
)

// ErrNotConfigured is returned when SMTP settings are missing.
var ErrNotConfigured = errors.New("mail: smtp is not configured")

// Sender delivers transactional mail. Implementations must be safe for
// concurrent use.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTP sends mail through a plain-auth SMTP relay.
type SMTP struct {
	host string
	port int
	user string
	pass string
	from string
}

// NewSMTP builds an SMTP sender. Host and user are required; everything else
// has workable defaults.
func NewSMTP(host string, port int, user, pass, from string) (*SMTP, error) {
	if host == "" || user == "" {
		return nil, ErrNotConfigured
	}
	if port == 0 {
		port = 587
	}
	if from == "" {
		from = user
	}
	return &SMTP{host: host, port: port, user: user, pass: pass, from: from}, nil
}

// Send delivers a single plain-text message.
func (s *SMTP) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", s.from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	auth := smtp.PlainAuth("", s.user, s.pass, s.host)

	return smtp.SendMail(addr, auth, s.from, []string{to}, []byte(msg.String()))
}
