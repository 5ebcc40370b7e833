package mail

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/xraph/jobq/job"
)

// JobType is the job type tag email jobs are registered under.
const JobType = "email"

// Errors returned by Message.Validate. A job that fails validation is
// failed with the error text; it is never sent.
var (
	ErrNoRecipients = errors.New("mail: message has no recipients")
	ErrNoSubject    = errors.New("mail: message has no subject")
	ErrNoBody       = errors.New("mail: message has no text, html or template")
)

// Message is the email job payload.
type Message struct {
	To        []string          `json:"to"`
	Subject   string            `json:"subject"`
	Text      string            `json:"text,omitempty"`
	HTML      string            `json:"html,omitempty"`
	Template  string            `json:"template,omitempty"`
	Variables map[string]string `json:"variables,omitempty"`
}

// Validate checks that m can be handed to a Sender.
func (m Message) Validate() error {
	if len(m.To) == 0 {
		return ErrNoRecipients
	}
	for _, to := range m.To {
		if !strings.Contains(to, "@") {
			return fmt.Errorf("mail: invalid recipient %q", to)
		}
	}
	if m.Subject == "" && m.Template == "" {
		return ErrNoSubject
	}
	if m.Text == "" && m.HTML == "" && m.Template == "" {
		return ErrNoBody
	}
	return nil
}

// Sender delivers a message and returns the provider's message ID.
type Sender interface {
	Send(ctx context.Context, msg Message) (string, error)
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, msg Message) (string, error)

// Send calls f.
func (f SenderFunc) Send(ctx context.Context, msg Message) (string, error) {
	return f(ctx, msg)
}

// NewDefinition returns the typed "email" job definition backed by sender.
// The job result is the provider message ID. Once the provider accepts the
// message the job succeeds, even if the final progress report fails.
func NewDefinition(sender Sender, logger *slog.Logger, opts ...job.Option) *job.Definition[Message] {
	if logger == nil {
		logger = slog.Default()
	}
	return job.NewDefinition(JobType, func(ctx context.Context, msg Message, progress job.Reporter) (string, error) {
		if err := msg.Validate(); err != nil {
			return "", err
		}
		if err := progress.Report(ctx, 0, 1, "sending"); err != nil {
			return "", err
		}

		messageID, err := sender.Send(ctx, msg)
		if err != nil {
			return "", err
		}
		logger.Debug("email sent",
			slog.Int("recipients", len(msg.To)),
			slog.String("message_id", messageID),
		)

		if err := progress.Report(ctx, 1, 1, "sent"); err != nil {
			logger.Warn("email sent but progress report failed",
				slog.String("message_id", messageID),
				slog.String("error", err.Error()),
			)
		}
		return messageID, nil
	}, opts...)
}
