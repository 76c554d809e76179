package mailer

import (
	"strings"
	"testing"

	"github.com/go-playground/assert/v2"
)

func TestContentPlain(t *testing.T) {
	j := EmailJob{To: "a@example.com", Subject: "hi", Text: "body"}
	s, txt, html, err := j.Content()
	assert.Equal(t, err, nil)
	assert.Equal(t, s, "hi")
	assert.Equal(t, txt, "body")
	assert.Equal(t, html, "")
}

func TestContentTemplateFillsRecipient(t *testing.T) {
	j := EmailJob{To: "a@example.com", Template: "verify_email", Data: map[string]any{"VerifyURL": "http://x/v?token=1"}}
	_, txt, _, err := j.Content()
	assert.Equal(t, err, nil)
	assert.Equal(t, j.Data["RecipientEmail"], "a@example.com")
	assert.Equal(t, strings.Contains(txt, "Confirm a@example.com"), true)
}
