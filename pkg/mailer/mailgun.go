package mailer

import (
	"context"
	"time"

	mg "github.com/mailgun/mailgun-go/v4"
)

const sendTimeout = 10 * time.Second

// Mailgun delivers email jobs through the Mailgun API.
type Mailgun struct {
	client mg.Mailgun
	Sender string
}

func NewMailgun(domain, apiKey, sender string) *Mailgun {
	return &Mailgun{client: mg.NewMailgun(domain, apiKey), Sender: sender}
}

// Deliver renders job and sends it. Template jobs are tagged with the template name so
// they can be told apart in Mailgun analytics.
func (m *Mailgun) Deliver(ctx context.Context, job *EmailJob) (string, error) {
	subject, text, html, err := job.Content()
	if err != nil {
		return "", err
	}
	msg := m.client.NewMessage(m.Sender, subject, text, job.To)
	if html != "" {
		msg.SetHtml(html)
	}
	if job.Template != "" {
		if err := msg.AddTag(job.Template); err != nil {
			return "", err
		}
	}
	c, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()
	_, id, err := m.client.Send(c, msg)
	return id, err
}
