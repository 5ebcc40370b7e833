package mail_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xraph/jobq/job"
	"github.com/xraph/jobq/mail"
	"github.com/xraph/jobq/queue"
	"github.com/xraph/jobq/store/memory"
)

// fakeSender records messages and fails for recipients listed in failFor.
type fakeSender struct {
	mu      sync.Mutex
	sent    []mail.Message
	failFor map[string]bool
}

func (f *fakeSender) Send(_ context.Context, msg mail.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, to := range msg.To {
		if f.failFor[to] {
			return "", errors.New("smtp timeout")
		}
	}
	f.sent = append(f.sent, msg)
	return "msg-" + msg.To[0], nil
}

func (f *fakeSender) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func TestMessageValidate(t *testing.T) {
	tests := []struct {
		name    string
		msg     mail.Message
		wantErr error
		errText string
	}{
		{name: "valid text", msg: mail.Message{To: []string{"a@example.com"}, Subject: "hi", Text: "hello"}},
		{name: "template only", msg: mail.Message{To: []string{"a@example.com"}, Template: "welcome"}},
		{name: "no recipients", msg: mail.Message{Subject: "hi", Text: "x"}, wantErr: mail.ErrNoRecipients},
		{name: "no subject", msg: mail.Message{To: []string{"a@example.com"}, Text: "x"}, wantErr: mail.ErrNoSubject},
		{name: "no body", msg: mail.Message{To: []string{"a@example.com"}, Subject: "hi"}, wantErr: mail.ErrNoBody},
		{name: "bad recipient", msg: mail.Message{To: []string{"nobody"}, Subject: "hi", Text: "x"}, errText: "invalid recipient"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.msg.Validate()
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Validate() = %v, want %v", err, tt.wantErr)
				}
			case tt.errText != "":
				if err == nil || !strings.Contains(err.Error(), tt.errText) {
					t.Fatalf("Validate() = %v, want error containing %q", err, tt.errText)
				}
			default:
				if err != nil {
					t.Fatalf("Validate() = %v", err)
				}
			}
		})
	}
}

func TestDefinitionHandler(t *testing.T) {
	sender := &fakeSender{}
	def := mail.NewDefinition(sender, nil)
	if def.Type != mail.JobType {
		t.Fatalf("Type = %q, want %q", def.Type, mail.JobType)
	}

	var reports []string
	progress := job.ReporterFunc(func(_ context.Context, completed, total int64, label string) error {
		reports = append(reports, label)
		return nil
	})

	payload, err := job.Encode(mail.Message{To: []string{"ada@example.com"}, Subject: "hi", Text: "hello"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	result, err := def.HandlerFunc()(context.Background(), payload, progress)
	if err != nil {
		t.Fatalf("handler: %v", err)
	}
	if result != "msg-ada@example.com" {
		t.Fatalf("result = %q", result)
	}
	if strings.Join(reports, ",") != "sending,sent" {
		t.Fatalf("reports = %v", reports)
	}
}

func TestDefinitionSentDespiteReportFailure(t *testing.T) {
	sender := &fakeSender{}
	payload, _ := job.Encode(mail.Message{To: []string{"ada@example.com"}, Subject: "hi", Text: "hello"})

	progress := job.ReporterFunc(func(_ context.Context, _, _ int64, label string) error {
		if label == "sent" {
			return errors.New("store unavailable")
		}
		return nil
	})
	result, err := mail.NewDefinition(sender, nil).HandlerFunc()(context.Background(), payload, progress)
	if err != nil {
		t.Fatalf("handler: %v, want success after the provider accepted", err)
	}
	if result != "msg-ada@example.com" {
		t.Fatalf("result = %q", result)
	}
	if sender.count() != 1 {
		t.Fatalf("sent %d messages, want 1", sender.count())
	}
}

func TestDefinitionRejectsInvalidMessage(t *testing.T) {
	sender := &fakeSender{}
	payload, _ := job.Encode(mail.Message{Subject: "hi", Text: "hello"})

	_, err := mail.NewDefinition(sender, nil).HandlerFunc()(context.Background(), payload,
		job.ReporterFunc(func(context.Context, int64, int64, string) error { return nil }))
	if !errors.Is(err, mail.ErrNoRecipients) {
		t.Fatalf("err = %v, want ErrNoRecipients", err)
	}
	if sender.count() != 0 {
		t.Fatal("invalid message was sent")
	}
}

func TestEmailQueueEndToEnd(t *testing.T) {
	ctx := context.Background()
	sender := &fakeSender{failFor: map[string]bool{"bounce@example.com": true}}

	m := queue.New(memory.New(), queue.WithoutDefaultMiddleware())
	if err := queue.Register(m, mail.NewDefinition(sender, nil, job.WithConcurrency(2))); err != nil {
		t.Fatalf("Register: %v", err)
	}

	for _, to := range []string{"a@example.com", "b@example.com", "bounce@example.com"} {
		if _, err := queue.EnqueueJSON(ctx, m, mail.JobType, mail.Message{To: []string{to}, Subject: "hi", Text: "hello"}); err != nil {
			t.Fatalf("EnqueueJSON: %v", err)
		}
	}

	if err := m.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer func() { _ = m.Shutdown(5 * time.Second) }()

	deadline := time.Now().Add(5 * time.Second)
	for {
		done, _ := m.CountByTypeAndStatus(ctx, mail.JobType, job.StatusCompleted, 0)
		failed, _ := m.CountByTypeAndStatus(ctx, mail.JobType, job.StatusFailed, 0)
		if done == 2 && failed == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("completed=%d failed=%d, want 2 and 1", done, failed)
		}
		time.Sleep(10 * time.Millisecond)
	}

	failed, err := m.ListByTypeAndStatus(ctx, mail.JobType, job.StatusFailed, 0, 0)
	if err != nil || len(failed) != 1 {
		t.Fatalf("ListByTypeAndStatus = %v, %v", failed, err)
	}
	if failed[0].Error != "smtp timeout" {
		t.Fatalf("error = %q, want smtp timeout", failed[0].Error)
	}
}

func TestNewSender(t *testing.T) {
	tests := []struct {
		name    string
		cfg     mail.Config
		wantErr bool
	}{
		{"mailgun", mail.Config{Provider: mail.ProviderMailgun, Mailgun: mail.MailgunConfig{Domain: "mg.example.com", Key: "key", From: "jobs@example.com"}}, false},
		{"mailgun missing key", mail.Config{Provider: mail.ProviderMailgun, Mailgun: mail.MailgunConfig{Domain: "mg.example.com", From: "jobs@example.com"}}, true},
		{"sendgrid", mail.Config{Provider: mail.ProviderSendGrid, SendGrid: mail.SendGridConfig{Key: "key", From: "jobs@example.com"}}, false},
		{"sendgrid missing from", mail.Config{Provider: mail.ProviderSendGrid, SendGrid: mail.SendGridConfig{Key: "key"}}, true},
		{"unknown", mail.Config{Provider: "carrier-pigeon"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := mail.NewSender(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewSender() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && s == nil {
				t.Fatal("NewSender() returned nil sender")
			}
		})
	}
}
