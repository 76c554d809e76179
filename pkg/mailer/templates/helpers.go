package templates

import (
	"time"

	"github.com/oksasatya/go-social-sync/config"
)

const timeLayout = "02 January 2006, 15:04"

type Option func(*EmailData)

func WithTime(t time.Time) Option {
	return func(d *EmailData) { d.Time = t.UTC().Format(timeLayout) }
}

func WithVerifyURL(url string) Option { return func(d *EmailData) { d.VerifyURL = url } }
func WithResetURL(url string) Option  { return func(d *EmailData) { d.ResetURL = url } }

func WithExpiresIn(dur time.Duration) Option {
	return func(d *EmailData) { d.ExpiresAtText = time.Now().Add(dur).UTC().Format(timeLayout) }
}

// NewBaseEmailData fills the company fields from cfg and applies opts.
func NewBaseEmailData(cfg *config.Config, typ string, name, email, recipient string, opts ...Option) EmailData {
	d := EmailData{
		Name:           name,
		Email:          email,
		RecipientEmail: recipient,
		Type:           typ,

		CompanyName:    cfg.CompanyName,
		CompanyAddress: cfg.CompanyAddress,
		AppName:        cfg.AppName,

		LogoURL:        cfg.LogoURL,
		SupportURL:     cfg.SupportURL,
		PrivacyURL:     cfg.PrivacyURL,
		UnsubscribeURL: cfg.UnsubscribeURL,

		ResetURL:  cfg.ResetPasswordURL,
		VerifyURL: cfg.VerifyEmailURL,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

func NewVerifyEmailData(cfg *config.Config, name, email, verifyURL string, opts ...Option) map[string]any {
	opts = append([]Option{WithVerifyURL(verifyURL)}, opts...)
	return ToMap(NewBaseEmailData(cfg, VerifyEmail, name, email, email, opts...))
}

func NewForgotPasswordData(cfg *config.Config, name, email, recipient string, opts ...Option) map[string]any {
	return ToMap(NewBaseEmailData(cfg, ForgotPassword, name, email, recipient, opts...))
}
