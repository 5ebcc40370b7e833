// Package mail provides the "email" job type: a JSON Message payload, a
// Sender abstraction, and Mailgun and SendGrid senders.
//
//	sender, err := mail.NewSender(mail.Config{Provider: "sendgrid", SendGrid: sgCfg})
//	if err != nil { ... }
//	if err := queue.Register(m, mail.NewDefinition(sender, logger, job.WithConcurrency(4))); err != nil { ... }
//	queue.EnqueueJSON(ctx, m, mail.JobType, mail.Message{To: []string{"ada@example.com"}, Subject: "hi", Text: "hello"})
package mail
