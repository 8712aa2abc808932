// Package mailer delivers one-time codes over SMTP.
package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// Purpose selects the message wording for a code delivery.
type Purpose string

const (
	PurposeVerify Purpose = "verify"
	PurposeReset  Purpose = "reset"
)

// Mailer sends a one-time code to a recipient.
type Mailer interface {
	SendOTP(ctx context.Context, to, name, code string, purpose Purpose) error
}

// SMTPMailer sends mail through an authenticated STARTTLS SMTP relay with
// explicit dial and IO deadlines so a stalled relay cannot hang a request.
type SMTPMailer struct {
	host     string
	port     string
	username string
	password string
	from     string
	fromName string
}

// NewSMTP builds an SMTP-backed mailer.
func NewSMTP(host, port, username, password, from, fromName string) *SMTPMailer {
	return &SMTPMailer{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		fromName: fromName,
	}
}

// SendOTP renders and delivers the code for the given purpose.
func (m *SMTPMailer) SendOTP(ctx context.Context, to, name, code string, purpose Purpose) error {
	subject := "Your MessMate verification code"
	intro := "Use this code to verify your account:"
	if purpose == PurposeReset {
		subject = "Your MessMate password reset code"
		intro = "Use this code to reset your password:"
	}

	body := fmt.Sprintf("Hi %s,\r\n\r\n%s\r\n\r\n    %s\r\n\r\nThe code expires in a few minutes. If you did not request it, you can ignore this email.\r\n", name, intro, code)

	msg := strings.Join([]string{
		fmt.Sprintf("From: %s <%s>", m.fromName, m.from),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		`Content-Type: text/plain; charset="UTF-8"`,
		"",
		body,
	}, "\r\n")

	return m.send(ctx, to, []byte(msg))
}

func (m *SMTPMailer) send(ctx context.Context, to string, msg []byte) error {
	addr := net.JoinHostPort(m.host, m.port)

	dialer := &net.Dialer{Timeout: 8 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	_ = conn.SetDeadline(time.Now().Add(15 * time.Second))

	c, err := smtp.NewClient(conn, m.host)
	if err != nil {
		return err
	}
	defer func() { _ = c.Quit() }()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: m.host}); err != nil {
			return err
		}
	}
	if m.username != "" {
		auth := smtp.PlainAuth("", m.username, m.password, m.host)
		if err := c.Auth(auth); err != nil {
			return err
		}
	}

	if err := c.Mail(m.from); err != nil {
		return err
	}
	if err := c.Rcpt(to); err != nil {
		return err
	}

	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}
