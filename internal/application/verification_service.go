package application

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-social-sync/config"
	"github.com/oksasatya/go-social-sync/internal/domain/entity"
	"github.com/oksasatya/go-social-sync/internal/domain/repository"
	"github.com/oksasatya/go-social-sync/pkg/mailer"
	tpl "github.com/oksasatya/go-social-sync/pkg/mailer/templates"
)

const (
	verifyTokenTTL     = 24 * time.Hour
	VerificationMpesa  = "mpesa"
	VerificationManual = "manual"
)

// MpesaVerification is the payload of verifyUserWithMpesa. The values are recorded as
// given; no stored transaction is consulted.
type MpesaVerification struct {
	TransactionID string          `json:"transactionId" validate:"required"`
	Amount        decimal.Decimal `json:"amount"`
	Plan          string          `json:"plan" validate:"required"`
}

type VerificationService struct {
	Users         repository.UserRepository
	Tokens        TokenStore
	Mail          MailQueue
	Cfg           *config.Config
	ToggleEnabled bool
	Logger        *logrus.Logger
}

func NewVerificationService(users repository.UserRepository, tokens TokenStore, mail MailQueue, cfg *config.Config, logger *logrus.Logger) *VerificationService {
	return &VerificationService{Users: users, Tokens: tokens, Mail: mail, Cfg: cfg, ToggleEnabled: cfg.VerificationToggleEnabled, Logger: logger}
}

func (s *VerificationService) caller(ctx context.Context, caller, reason string) (*entity.User, error) {
	if caller == "" {
		return nil, NotAuthorized(reason)
	}
	u, err := s.Users.GetByID(ctx, caller)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, UserNotFound()
	}
	if err != nil {
		return nil, Internal("", err)
	}
	return u, nil
}

// SendVerificationEmail issues an email verification token for caller's primary address
// and queues the email carrying it.
func (s *VerificationService) SendVerificationEmail(ctx context.Context, caller string) error {
	u, err := s.caller(ctx, caller, "You must be logged in to send verification email")
	if err != nil {
		return err
	}
	email := u.PrimaryEmail()
	if email == nil || email.Verified {
		return AlreadyVerified("Email is already verified")
	}
	fail := func(err error) error {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", caller).Error("send verification email failed")
		}
		return Internal("Failed to send verification email", err)
	}
	if s.Tokens == nil {
		return fail(errors.New("token store not configured"))
	}
	tok, err := s.Tokens.Issue(ctx, TokenVerifyEmail, u.ID, verifyTokenTTL)
	if err != nil {
		return fail(err)
	}
	link := s.Cfg.VerifyEmailURL + "?token=" + tok
	if s.Mail == nil || !s.Cfg.MailSendEnabled {
		if s.Logger != nil {
			s.Logger.WithFields(logrus.Fields{"user_id": caller, "link": link}).Info("mail sending disabled; verification link not emailed")
		}
		return nil
	}
	data := tpl.NewVerifyEmailData(s.Cfg, u.DisplayName(), email.Address, link,
		tpl.WithTime(time.Now()),
		tpl.WithExpiresIn(verifyTokenTTL),
	)
	if err := s.Mail.Enqueue(ctx, mailer.EmailJob{To: email.Address, Template: tpl.VerifyEmail, Data: data}); err != nil {
		return fail(err)
	}
	return nil
}

// ConfirmEmail marks the primary address of the token's user as verified.
func (s *VerificationService) ConfirmEmail(ctx context.Context, token string) (*entity.User, error) {
	if s.Tokens == nil {
		return nil, Internal("Verification unavailable", nil)
	}
	uid, err := s.Tokens.Consume(ctx, TokenVerifyEmail, token)
	if err != nil {
		if errors.Is(err, ErrTokenInvalid) {
			return nil, Invalid("Invalid or expired token", nil)
		}
		return nil, Internal("", err)
	}
	u, err := s.Users.SetEmailVerified(ctx, uid)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, UserNotFound()
	}
	if err != nil {
		return nil, Internal("", err)
	}
	return u, nil
}

// ToggleVerification flips caller's verified flag, stamping or clearing verifiedAt.
func (s *VerificationService) ToggleVerification(ctx context.Context, caller string) (bool, error) {
	if !s.ToggleEnabled {
		return false, NotAuthorized("Verification toggle is disabled")
	}
	u, err := s.caller(ctx, caller, "You must be logged in to change verification")
	if err != nil {
		return false, err
	}
	next := !u.Profile.IsVerified
	patch := repository.VerificationPatch{IsVerified: next}
	if next {
		now := time.Now().UTC()
		patch.VerifiedAt = &now
		patch.Method = VerificationManual
	}
	if _, err := s.Users.SetVerification(ctx, caller, patch); err != nil {
		return false, Internal("", err)
	}
	return next, nil
}

// VerifyWithMpesa marks caller verified and records the payment details supplied.
func (s *VerificationService) VerifyWithMpesa(ctx context.Context, caller string, in MpesaVerification) error {
	if caller == "" {
		return NotAuthorized("You must be logged in to verify your account")
	}
	now := time.Now().UTC()
	_, err := s.Users.SetVerification(ctx, caller, repository.VerificationPatch{
		IsVerified: true,
		VerifiedAt: &now,
		Method:     VerificationMpesa,
		Details: &entity.VerificationDetails{
			TransactionID: in.TransactionID,
			Plan:          in.Plan,
			Amount:        in.Amount,
			Date:          now,
		},
	})
	if errors.Is(err, repository.ErrNotFound) {
		return UserNotFound()
	}
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", caller).Error("mpesa verification failed")
		}
		return Internal("", err)
	}
	return nil
}
