package mail

import (
	"context"
	"fmt"
	"net/http"

	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

var _ Sender = (*SendGridSender)(nil)

// SendGridSender sends messages through the SendGrid v3 API.
type SendGridSender struct {
	client *sendgrid.Client
	from   *sgmail.Email
}

// NewSendGridSender creates a SendGrid sender.
func NewSendGridSender(cfg SendGridConfig) (*SendGridSender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &SendGridSender{
		client: sendgrid.NewSendClient(cfg.Key),
		from:   sgmail.NewEmail(cfg.FromName, cfg.From),
	}, nil
}

// Send submits msg to SendGrid and returns the X-Message-Id header.
func (s *SendGridSender) Send(ctx context.Context, msg Message) (string, error) {
	resp, err := s.client.SendWithContext(ctx, buildSendGridMessage(s.from, msg))
	if err != nil {
		return "", fmt.Errorf("mail/sendgrid: send: %w", err)
	}
	if resp.StatusCode != http.StatusAccepted {
		return "", fmt.Errorf("mail/sendgrid: send: status %d: %s", resp.StatusCode, resp.Body)
	}
	if ids := resp.Headers["X-Message-Id"]; len(ids) > 0 {
		return ids[0], nil
	}
	return "", nil
}

// buildSendGridMessage maps msg onto a v3 mail body. Variables become
// dynamic template data.
func buildSendGridMessage(from *sgmail.Email, msg Message) *sgmail.SGMailV3 {
	m := sgmail.NewV3Mail()
	m.SetFrom(from)
	m.Subject = msg.Subject

	p := sgmail.NewPersonalization()
	for _, to := range msg.To {
		p.AddTos(sgmail.NewEmail("", to))
	}
	for k, v := range msg.Variables {
		p.SetDynamicTemplateData(k, v)
	}
	m.AddPersonalizations(p)

	if msg.Text != "" {
		m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	}
	if msg.HTML != "" {
		m.AddContent(sgmail.NewContent("text/html", msg.HTML))
	}
	if msg.Template != "" {
		m.SetTemplateID(msg.Template)
	}
	return m
}
