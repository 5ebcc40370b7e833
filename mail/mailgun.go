package mail

import (
	"context"
	"fmt"

	"github.com/mailgun/mailgun-go/v4"
)

var _ Sender = (*MailgunSender)(nil)

// MailgunSender sends messages through the Mailgun API.
type MailgunSender struct {
	mg   *mailgun.MailgunImpl
	from string
}

// NewMailgunSender creates a Mailgun sender.
func NewMailgunSender(cfg MailgunConfig) (*MailgunSender, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mg := mailgun.NewMailgun(cfg.Domain, cfg.Key)
	if cfg.APIBase != "" {
		mg.SetAPIBase(cfg.APIBase)
	}
	return &MailgunSender{mg: mg, from: cfg.From}, nil
}

// Send queues msg with Mailgun and returns the Mailgun message ID.
func (s *MailgunSender) Send(ctx context.Context, msg Message) (string, error) {
	message := s.mg.NewMessage(s.from, msg.Subject, msg.Text)
	if msg.HTML != "" {
		message.SetHtml(msg.HTML)
	}
	if msg.Template != "" {
		message.SetTemplate(msg.Template)
	}
	for _, to := range msg.To {
		if err := message.AddRecipient(to); err != nil {
			return "", fmt.Errorf("mail/mailgun: add recipient %q: %w", to, err)
		}
	}
	for k, v := range msg.Variables {
		if err := message.AddVariable(k, v); err != nil {
			return "", fmt.Errorf("mail/mailgun: add variable %q: %w", k, err)
		}
	}

	_, messageID, err := s.mg.Send(ctx, message)
	if err != nil {
		return "", fmt.Errorf("mail/mailgun: send: %w", err)
	}
	return messageID, nil
}
