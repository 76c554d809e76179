package templates

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	htmpl "html/template"
	"io"
	"strings"
	texttpl "text/template"
	"time"
)

//go:embed *.tmpl
var FS embed.FS

// Template names. Each has <name>.subject.tmpl, <name>.text.tmpl and <name>.html.tmpl.
const (
	VerifyEmail    = "verify_email"
	ForgotPassword = "forgot_password"
)

// EmailData holds the fields every template may reference.
type EmailData struct {
	Name           string `json:"Name"`
	Email          string `json:"Email"`
	RecipientEmail string `json:"RecipientEmail"`
	Type           string `json:"Type"`

	CompanyName    string `json:"CompanyName"`
	CompanyAddress string `json:"CompanyAddress"`
	AppName        string `json:"AppName"`

	LogoURL        string `json:"LogoURL"`
	SupportURL     string `json:"SupportURL"`
	PrivacyURL     string `json:"PrivacyURL"`
	UnsubscribeURL string `json:"UnsubscribeURL"`

	ResetURL  string `json:"ResetURL"`
	VerifyURL string `json:"VerifyURL"`

	ExpiresAtText string `json:"ExpiresAtText"`
	Time          string `json:"Time"`
}

// ToMap converts EmailData to the map carried by mailer.EmailJob.Data.
func ToMap(d EmailData) map[string]any {
	b, _ := json.Marshal(d)
	var m map[string]any
	_ = json.Unmarshal(b, &m)
	return m
}

// defaultFn supports pipe usage: {{ .Value | default "Fallback" }}
func defaultFn(fallback any, value any) any {
	switch x := value.(type) {
	case string:
		if strings.TrimSpace(x) == "" {
			return fallback
		}
		return x
	case nil:
		return fallback
	default:
		return value
	}
}

func baseFuncs() map[string]any {
	return map[string]any{
		"now":     func() time.Time { return time.Now().UTC() },
		"upper":   strings.ToUpper,
		"default": defaultFn,
	}
}

var (
	textSet = texttpl.Must(texttpl.New("mail").Funcs(texttpl.FuncMap(baseFuncs())).ParseFS(FS, "*.subject.tmpl", "*.text.tmpl"))
	htmlSet = htmpl.Must(htmpl.New("mail").Funcs(htmpl.FuncMap(baseFuncs())).ParseFS(FS, "*.html.tmpl"))
)

type executor interface {
	Execute(w io.Writer, data any) error
}

func execute(t executor, filename string, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("exec %q: %w", filename, err)
	}
	return buf.String(), nil
}

func renderText(filename string, data any) (string, error) {
	t := textSet.Lookup(filename)
	if t == nil {
		return "", fmt.Errorf("template %q not found", filename)
	}
	return execute(t, filename, data)
}

// Render renders subject, text and html for the named template.
func Render(name string, data any) (subject, text, html string, err error) {
	if subject, err = renderText(name+".subject.tmpl", data); err != nil {
		return "", "", "", err
	}
	if text, err = renderText(name+".text.tmpl", data); err != nil {
		return "", "", "", err
	}
	t := htmlSet.Lookup(name + ".html.tmpl")
	if t == nil {
		return "", "", "", fmt.Errorf("template %q not found", name+".html.tmpl")
	}
	if html, err = execute(t, name+".html.tmpl", data); err != nil {
		return "", "", "", err
	}
	return strings.TrimSpace(subject), text, html, nil
}
