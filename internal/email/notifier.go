// Package email sends operational notifications over SMTP.
package email

import (
	"context"
	"fmt"
	"html"
	"net"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/google/uuid"
)

// Config is the subset of configuration the notifier needs.
type Config interface {
	IsEmailEnabled() bool
	GetSMTPHost() string
	GetSMTPPort() int
	GetSMTPUsername() string
	GetSMTPPassword() string
	GetEmailFrom() string
	GetEmailFromName() string
}

// Notifier delivers escalation emails via the configured SMTP server.
// A nil notifier is a disabled notifier.
type Notifier struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewNotifier creates the SMTP notifier, or nil when email is disabled.
func NewNotifier(cfg Config) *Notifier {
	if !cfg.IsEmailEnabled() {
		return nil
	}
	return &Notifier{
		host:      cfg.GetSMTPHost(),
		port:      cfg.GetSMTPPort(),
		username:  cfg.GetSMTPUsername(),
		password:  cfg.GetSMTPPassword(),
		fromName:  cfg.GetEmailFromName(),
		fromEmail: cfg.GetEmailFrom(),
	}
}

// NotifyEscalation emails the tenant's notify address about a call the
// scoring engine marked as escalated.
func (n *Notifier) NotifyEscalation(ctx context.Context, toEmail, orgName string, ticketID uuid.UUID, confidence int, summary string) error {
	if n == nil {
		return nil
	}

	subject := fmt.Sprintf("Call escalated for %s", orgName)
	body := fmt.Sprintf(
		`<p>A call for <strong>%s</strong> was escalated by quality review.</p>
<p>Ticket: %s<br>Confidence: %d%%</p>
<p>%s</p>`,
		html.EscapeString(orgName), ticketID, confidence, html.EscapeString(summary))

	return n.send(ctx, toEmail, subject, body)
}

func (n *Notifier) send(ctx context.Context, toEmail, subject, htmlContent string) error {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(n.fromName, n.fromEmail); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)

	client, err := gomail.NewClient(n.host,
		gomail.WithPort(n.port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(n.username),
		gomail.WithPassword(n.password),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15*time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}
