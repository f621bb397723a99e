package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"

	"github.com/hibiken/asynq"
)

// Mailer delivers a single email.
type Mailer interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer sends plain-text mail through an unauthenticated relay,
// typically Mailpit in development.
type SMTPMailer struct {
	addr string
	from string
}

func NewSMTPMailer(host string, port int, from string) *SMTPMailer {
	return &SMTPMailer{addr: fmt.Sprintf("%s:%d", host, port), from: from}
}

func (m *SMTPMailer) Send(_ context.Context, to, subject, body string) error {
	msg := strings.Join([]string{
		"From: " + m.from,
		"To: " + to,
		"Subject: " + subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=utf-8",
		"",
		body,
	}, "\r\n")
	return smtp.SendMail(m.addr, nil, m.from, []string{to}, []byte(msg))
}

// MailJob processes mail:send tasks.
type MailJob struct {
	mailer Mailer
	logger *slog.Logger
}

func NewMailJob(mailer Mailer, logger *slog.Logger) *MailJob {
	return &MailJob{mailer: mailer, logger: logger}
}

// Handle delivers the email described by the task payload. A malformed
// payload is dropped rather than retried.
func (j *MailJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if j.mailer == nil {
		j.logger.Warn("mailer not configured, dropping email", slog.String("to", payload.To))
		return nil
	}
	if err := j.mailer.Send(ctx, payload.To, payload.Subject, payload.Body); err != nil {
		return fmt.Errorf("jobs: send email to %s: %w", payload.To, err)
	}
	j.logger.Info("email sent", slog.String("to", payload.To), slog.String("subject", payload.Subject))
	return nil
}
