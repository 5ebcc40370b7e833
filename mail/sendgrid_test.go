package mail

import (
	"testing"

	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

func TestBuildSendGridMessage(t *testing.T) {
	from := sgmail.NewEmail("Jobs", "jobs@example.com")
	m := buildSendGridMessage(from, Message{
		To:        []string{"a@example.com", "b@example.com"},
		Subject:   "hi",
		Text:      "hello",
		HTML:      "<p>hello</p>",
		Template:  "d-123",
		Variables: map[string]string{"name": "ada"},
	})

	if m.From.Address != "jobs@example.com" || m.Subject != "hi" || m.TemplateID != "d-123" {
		t.Fatalf("header fields = %+v", m)
	}
	if len(m.Personalizations) != 1 || len(m.Personalizations[0].To) != 2 {
		t.Fatalf("personalizations = %+v", m.Personalizations)
	}
	if got := m.Personalizations[0].DynamicTemplateData["name"]; got != "ada" {
		t.Fatalf("template data name = %v", got)
	}
	if len(m.Content) != 2 || m.Content[0].Type != "text/plain" || m.Content[1].Type != "text/html" {
		t.Fatalf("content = %+v", m.Content)
	}
}

func TestBuildSendGridMessageTemplateOnly(t *testing.T) {
	m := buildSendGridMessage(sgmail.NewEmail("", "jobs@example.com"), Message{
		To:       []string{"a@example.com"},
		Template: "d-123",
	})
	if len(m.Content) != 0 {
		t.Fatalf("content = %+v, want none", m.Content)
	}
}
