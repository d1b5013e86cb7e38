// Package notify relays blocked-request reports to the operations mailbox.
package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"html/template"
	"time"
	"unicode/utf8"

	"github.com/wneessen/go-mail"
)

// Subject of blocked-request notifications ("blocked request - public inquiries").
const Subject = "בקשה חסומה - פניות הציבור"

// UndecodableIssue replaces an issue payload that is not valid base64 UTF-8.
const UndecodableIssue = "**Failed to decode Base64 issue**"

// ErrNoRecipients is returned when no recipient list is configured.
var ErrNoRecipients = errors.New("no notification recipients configured")

// Message is a rendered notification.
type Message struct {
	To      []string
	Subject string
	HTML    string
}

// Mailer delivers a Message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSettings configures the SMTP relay.
type SMTPSettings struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPMailer sends mail over SMTP with mandatory STARTTLS.
type SMTPMailer struct {
	settings SMTPSettings
}

// NewSMTPMailer creates a mailer for the given relay.
func NewSMTPMailer(s SMTPSettings) *SMTPMailer {
	return &SMTPMailer{settings: s}
}

func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if m.settings.Host == "" {
		return errors.New("smtp host not configured")
	}
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}

	out := mail.NewMsg()
	if err := out.From(m.settings.From); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := out.To(msg.To...); err != nil {
		return fmt.Errorf("set recipients: %w", err)
	}
	out.Subject(msg.Subject)
	out.SetBodyString(mail.TypeTextHTML, msg.HTML)

	opts := []mail.Option{
		mail.WithPort(m.settings.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
		mail.WithTimeout(30 * time.Second),
	}
	if m.settings.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(m.settings.Username),
			mail.WithPassword(m.settings.Password),
		)
	}
	client, err := mail.NewClient(m.settings.Host, opts...)
	if err != nil {
		return fmt.Errorf("create smtp client: %w", err)
	}
	if err := client.DialAndSendWithContext(ctx, out); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// DecodeIssue decodes a base64 UTF-8 issue description.
func DecodeIssue(encoded string) string {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || !utf8.Valid(raw) {
		return UndecodableIssue
	}
	return string(raw)
}

var blockedTemplate = template.Must(template.New("blocked").Parse(`<div style="direction:rtl;text-align:right;">
<p>שלום,</p>
<p>התקבלה בקשה שנחסמה במערכת.</p>
<p><strong>פירוט הבעיה:</strong></p>
<pre style="white-space:pre-wrap;font-family:consolas;background:#f2f2f2;padding:10px;border-radius:8px;">{{.Issue}}</pre>
<p><strong>כתובת IP:</strong> {{.IP}}</p>
</div>`))

// BlockedRequest renders the notification for a request the edge blocked.
func BlockedRequest(to []string, issue, ip string) (Message, error) {
	var buf bytes.Buffer
	data := struct{ Issue, IP string }{Issue: issue, IP: ip}
	if err := blockedTemplate.Execute(&buf, data); err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: Subject, HTML: buf.String()}, nil
}
