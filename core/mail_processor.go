package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
)

// MailJob is the queue payload produced by registration.
type MailJob struct {
	ID        string `json:"id"`
	AccountID int64  `json:"account_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
}

// ErrMalformedJob marks payloads that can never succeed and must not be retried.
var ErrMalformedJob = errors.New("malformed mail job")

// MailProcessor turns queued jobs into welcome mails.
type MailProcessor struct {
	sender MailSender
	from   MailAddress
}

func NewMailProcessor(sender MailSender, from MailAddress) *MailProcessor {
	return &MailProcessor{sender: sender, from: from}
}

// DecodeMailJob parses a queue payload.
func DecodeMailJob(payload string) (MailJob, error) {
	var job MailJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return MailJob{}, fmt.Errorf("%w: %v", ErrMalformedJob, err)
	}
	if job.ID == "" || strings.TrimSpace(job.Email) == "" {
		return MailJob{}, fmt.Errorf("%w: missing id or email", ErrMalformedJob)
	}
	return job, nil
}

// Process sends the welcome mail for one job. A non-nil error other than
// ErrMalformedJob means the job should be retried.
func (p *MailProcessor) Process(ctx context.Context, job MailJob) error {
	msg := welcomeMessage(p.from, job)
	if err := p.sender.Send(ctx, msg); err != nil {
		return err
	}
	slog.InfoContext(ctx, "welcome mail sent", "job", job.ID, "account_id", job.AccountID)
	return nil
}

func welcomeMessage(from MailAddress, job MailJob) MailMessage {
	name := html.EscapeString(job.Name)
	return MailMessage{
		Sender:  from,
		To:      []MailAddress{{Name: job.Name, Email: job.Email}},
		Subject: "Bienvenido",
		HTMLContent: "<html><head></head><body><p>Hola,</p><p>Bienvenido " + name +
			".</p></body></html>",
	}
}
