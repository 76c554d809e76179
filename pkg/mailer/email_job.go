package mailer

import (
	"fmt"

	tpl "github.com/oksasatya/go-social-sync/pkg/mailer/templates"
)

// EmailJob is the JSON payload put on the RabbitMQ queue for sending email.
// Either Template with Data, or Subject with Text and optional HTML, is set.
type EmailJob struct {
	To       string         `json:"to"`
	Subject  string         `json:"subject,omitempty"`
	Text     string         `json:"text,omitempty"`
	HTML     string         `json:"html,omitempty"`
	Template string         `json:"template,omitempty"` // "verify_email" or "forgot_password"
	Data     map[string]any `json:"data,omitempty"`
}

// Normalize fills the recipient fields templates expect from To.
func (j *EmailJob) Normalize() {
	if j.Data == nil {
		j.Data = map[string]any{}
	}
	for _, k := range []string{"Email", "RecipientEmail"} {
		if v, ok := j.Data[k]; !ok || fmt.Sprintf("%v", v) == "" {
			j.Data[k] = j.To
		}
	}
}

// Content returns the subject and bodies to send, rendering Template when one is set.
func (j *EmailJob) Content() (subject, text, html string, err error) {
	if j.Template == "" {
		return j.Subject, j.Text, j.HTML, nil
	}
	j.Normalize()
	return tpl.Render(j.Template, j.Data)
}
