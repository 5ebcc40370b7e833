package mail

import (
	"errors"
	"fmt"
)

// Provider names accepted by Config.Provider.
const (
	ProviderMailgun  = "mailgun"
	ProviderSendGrid = "sendgrid"
)

// Config selects and configures an email provider.
type Config struct {
	Provider string         `json:"provider" mapstructure:"provider"`
	Mailgun  MailgunConfig  `json:"mailgun" mapstructure:"mailgun"`
	SendGrid SendGridConfig `json:"sendgrid" mapstructure:"sendgrid"`
}

// MailgunConfig holds the configuration for Mailgun.
type MailgunConfig struct {
	Domain string `json:"domain" mapstructure:"domain"`
	Key    string `json:"key" mapstructure:"key"`
	From   string `json:"from" mapstructure:"from"`
	// APIBase overrides the API endpoint, e.g. for the EU region.
	APIBase string `json:"api_base" mapstructure:"api_base"`
}

// Validate checks the required Mailgun fields.
func (c MailgunConfig) Validate() error {
	if c.Domain == "" || c.Key == "" || c.From == "" {
		return errors.New("mail: invalid mailgun configuration: domain, key and from are required")
	}
	return nil
}

// SendGridConfig holds the configuration for SendGrid.
type SendGridConfig struct {
	Key      string `json:"key" mapstructure:"key"`
	From     string `json:"from" mapstructure:"from"`
	FromName string `json:"from_name" mapstructure:"from_name"`
}

// Validate checks the required SendGrid fields.
func (c SendGridConfig) Validate() error {
	if c.Key == "" || c.From == "" {
		return errors.New("mail: invalid sendgrid configuration: key and from are required")
	}
	return nil
}

// NewSender returns the Sender for cfg.Provider.
func NewSender(cfg Config) (Sender, error) {
	switch cfg.Provider {
	case ProviderMailgun:
		return NewMailgunSender(cfg.Mailgun)
	case ProviderSendGrid:
		return NewSendGridSender(cfg.SendGrid)
	default:
		return nil, fmt.Errorf("mail: unknown provider %q", cfg.Provider)
	}
}
