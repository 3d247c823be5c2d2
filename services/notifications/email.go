package notifications

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"marketpulse_backend/models"
)

// EmailChannel delivers notifications over SMTP
type EmailChannel struct {
	host     string
	port     string
	username string
	password string
	from     string
}

// NewEmailChannel creates an SMTP-backed email channel. The channel is
// disabled when no host is configured.
func NewEmailChannel(host, port, username, password, from string) *EmailChannel {
	return &EmailChannel{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

// Name returns the channel identifier
func (e *EmailChannel) Name() string {
	return models.ChannelEmail
}

// IsEnabled reports whether SMTP is configured
func (e *EmailChannel) IsEnabled() bool {
	return e.host != ""
}

// Send delivers one notification email
func (e *EmailChannel) Send(ctx context.Context, n Notification) error {
	if n.Recipient == "" {
		return fmt.Errorf("email notification for user %d has no recipient", n.UserID)
	}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s\r\n", e.from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", n.Recipient))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", n.Subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(n.Body)

	addr := fmt.Sprintf("%s:%s", e.host, e.port)
	var auth smtp.Auth
	if e.username != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.host)
	}

	done := make(chan error, 1)
	go func() {
		done <- smtp.SendMail(addr, auth, e.from, []string{n.Recipient}, []byte(msg.String()))
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
