// Package outbound sends generated replies over SMTP.
package outbound

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"

	"github.com/nhle/mailbot/internal/model"
)

// SendError indicates a transient outbound transport failure. The decision
// engine converts it into an escalation instead of retrying inline.
type SendError struct {
	To  string
	Err error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("sending reply to %s: %v", e.To, e.Err)
}

func (e *SendError) Unwrap() error { return e.Err }

// IsSendError reports whether err (or any error in its chain) is a SendError.
func IsSendError(err error) bool {
	var sendErr *SendError
	return errors.As(err, &sendErr)
}

// Sender delivers replies through an SMTP server over implicit TLS.
type Sender struct {
	cfg      model.MailConfig
	password string
}

// NewSender creates a Sender from the mail configuration and SMTP password.
func NewSender(cfg model.MailConfig, password string) *Sender {
	return &Sender{cfg: cfg, password: password}
}

// SendReply sends bodyText to toAddress as a reply ("Re: <subject>") from
// the configured account. Every failure is reported as a SendError.
func (s *Sender) SendReply(
	ctx context.Context, toAddress, subject, bodyText string,
) error {
	raw := buildMessage(s.cfg.Address, toAddress, subject, bodyText)

	done := make(chan error, 1)
	go func() {
		done <- s.transmit(toAddress, raw)
	}()

	select {
	case <-ctx.Done():
		return &SendError{To: toAddress, Err: ctx.Err()}
	case err := <-done:
		if err != nil {
			return &SendError{To: toAddress, Err: err}
		}
		return nil
	}
}

// transmit performs the SMTP session for a single message.
func (s *Sender) transmit(toAddress string, raw []byte) error {
	client, err := s.connect()
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Mail(s.cfg.Address, nil); err != nil {
		return fmt.Errorf("MAIL FROM failed: %w", err)
	}
	if err := client.Rcpt(toAddress, nil); err != nil {
		return fmt.Errorf("RCPT TO %q failed: %w", toAddress, err)
	}

	writer, err := client.Data()
	if err != nil {
		return fmt.Errorf("DATA failed: %w", err)
	}
	if _, err := writer.Write(raw); err != nil {
		return fmt.Errorf("writing message failed: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalizing message failed: %w", err)
	}

	if err := client.Quit(); err != nil {
		return fmt.Errorf("QUIT failed: %w", err)
	}

	return nil
}

func (s *Sender) connect() (*smtp.Client, error) {
	addr := s.cfg.SMTPHost + ":" + s.cfg.SMTPPort

	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: s.cfg.SMTPHost})
	if err != nil {
		return nil, fmt.Errorf("SMTP TLS dial failed: %w", err)
	}

	client := smtp.NewClient(conn)
	auth := sasl.NewPlainClient("", s.cfg.Address, s.password)
	if err := client.Auth(auth); err != nil {
		client.Close()
		return nil, fmt.Errorf("SMTP auth failed: %w", err)
	}

	return client, nil
}

// buildMessage assembles a minimal RFC 5322 plain-text reply.
func buildMessage(from, to, subject, bodyText string) []byte {
	var sb strings.Builder

	fmt.Fprintf(&sb, "From: %s\r\n", from)
	fmt.Fprintf(&sb, "To: %s\r\n", to)
	fmt.Fprintf(&sb, "Subject: %s\r\n", ReplySubject(subject))
	fmt.Fprintf(&sb, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(strings.ReplaceAll(bodyText, "\n", "\r\n"))
	sb.WriteString("\r\n")

	return []byte(sb.String())
}

// ReplySubject prefixes subject with "Re: " unless it already carries one.
func ReplySubject(subject string) string {
	if strings.HasPrefix(strings.ToLower(subject), "re:") {
		return subject
	}
	return "Re: " + subject
}
