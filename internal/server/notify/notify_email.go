package notify

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const SinkEmail = "email"

// Email sends the notice through the SendGrid v3 mail API
type Email struct {
	cfg EmailConfig
}

func NewEmail(cfg EmailConfig) *Email {
	if cfg.Host == "" {
		cfg.Host = DefaultSendgridHost
	}
	if cfg.Subject == "" {
		cfg.Subject = DefaultEmailSubject
	}
	if cfg.FromName == "" {
		cfg.FromName = cfg.FromEmail
	}
	return &Email{cfg: cfg}
}

func (e *Email) Name() string {
	return SinkEmail
}

func (e *Email) Notify(ctx context.Context, notice *Notice) (*Delivery, error) {
	text := FormatText(notice)
	htmlBody := "<p>" + strings.ReplaceAll(html.EscapeString(text), "\n", "<br>") + "</p>"

	message := mail.NewV3Mail()
	message.SetFrom(mail.NewEmail(e.cfg.FromName, e.cfg.FromEmail))
	message.Subject = e.cfg.Subject + ": " + notice.FolderPath()

	p := mail.NewPersonalization()
	for _, to := range e.cfg.To {
		p.AddTos(mail.NewEmail(to, to))
	}
	message.AddPersonalizations(p)
	message.AddContent(mail.NewContent("text/plain", text), mail.NewContent("text/html", htmlBody))

	// a fresh client per send; SendWithContext mutates the request
	client := &sendgrid.Client{Request: sendgrid.GetRequest(e.cfg.SendgridAPIKey, "/v3/mail/send", e.cfg.Host)}
	resp, err := client.SendWithContext(ctx, message)
	if err != nil {
		return nil, fmt.Errorf("send email: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("send email: %w %d: %s", ErrUnexpectedStatus, resp.StatusCode, resp.Body)
	}

	var ref string
	if ids := resp.Headers["X-Message-Id"]; len(ids) > 0 {
		ref = ids[0]
	}

	return &Delivery{Sink: SinkEmail, Channel: strings.Join(e.cfg.To, ","), Ref: ref}, nil
}
