package application_test

import (
	"strings"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/oksasatya/go-social-sync/internal/application"
	"github.com/oksasatya/go-social-sync/pkg/helpers"
)

func newAuth(h *harness) *application.AuthService {
	jwt := helpers.NewJWTManager("access-secret", "refresh-secret", time.Minute, time.Hour)
	return application.NewAuthService(h.repos.Users, jwt, h.sessions, h.tokens, h.mail, nil, h.cfg, nil)
}

func TestSignupLoginIdentify(t *testing.T) {
	h := newHarness(t)
	auth := newAuth(h)

	res, pair, err := auth.Signup(h.ctx, application.SignupInput{Email: "Alice@Example.com", Password: "password123", Username: "alice"})
	assert.Equal(t, err, nil)
	assert.Equal(t, res.Email, "alice@example.com")
	assert.Equal(t, res.Name, "alice")

	uid, err := auth.Identify(h.ctx, pair.AccessToken)
	assert.Equal(t, err, nil)
	assert.Equal(t, uid, res.UserID)

	u, err := auth.GetProfile(h.ctx, uid)
	assert.Equal(t, err, nil)
	assert.Equal(t, u.Profile.IsVerified, false)
	assert.Equal(t, u.Password != "password123", true)

	_, _, err = auth.Signup(h.ctx, application.SignupInput{Email: "alice@example.com", Password: "password123"})
	assert.Equal(t, err, application.ErrEmailTaken)

	_, _, err = auth.Login(h.ctx, "alice@example.com", "wrong-password")
	assert.Equal(t, err, application.ErrInvalidCredentials)
	_, _, err = auth.Login(h.ctx, "nobody@example.com", "password123")
	assert.Equal(t, err, application.ErrInvalidCredentials)

	_, second, err := auth.Login(h.ctx, "alice@example.com", "password123")
	assert.Equal(t, err, nil)
	_, err = auth.Identify(h.ctx, pair.AccessToken)
	assert.Equal(t, err, application.ErrInvalidCredentials)
	_, err = auth.Identify(h.ctx, second.AccessToken)
	assert.Equal(t, err, nil)

	_, err = auth.Identify(h.ctx, second.RefreshToken)
	assert.Equal(t, err, application.ErrInvalidCredentials)
}

func TestRefreshRotatesSession(t *testing.T) {
	h := newHarness(t)
	auth := newAuth(h)
	res, pair, err := auth.Signup(h.ctx, application.SignupInput{Email: "bob@example.com", Password: "password123"})
	assert.Equal(t, err, nil)

	next, uid, err := auth.Refresh(h.ctx, pair.RefreshToken)
	assert.Equal(t, err, nil)
	assert.Equal(t, uid, res.UserID)

	_, err = auth.Identify(h.ctx, pair.AccessToken)
	assert.Equal(t, err, application.ErrInvalidCredentials)
	_, err = auth.Identify(h.ctx, next.AccessToken)
	assert.Equal(t, err, nil)

	// a refresh token is single use
	_, _, err = auth.Refresh(h.ctx, pair.RefreshToken)
	assert.Equal(t, err, application.ErrInvalidCredentials)
	_, _, err = auth.Refresh(h.ctx, next.AccessToken)
	assert.Equal(t, err, application.ErrInvalidCredentials)
}

func TestLogoutEndsSession(t *testing.T) {
	h := newHarness(t)
	auth := newAuth(h)
	res, pair, err := auth.Signup(h.ctx, application.SignupInput{Email: "carol@example.com", Password: "password123"})
	assert.Equal(t, err, nil)

	assert.Equal(t, auth.Logout(h.ctx, res.UserID), nil)
	_, err = auth.Identify(h.ctx, pair.AccessToken)
	assert.Equal(t, err, application.ErrInvalidCredentials)
	_, _, err = auth.Refresh(h.ctx, pair.RefreshToken)
	assert.Equal(t, err, application.ErrInvalidCredentials)
}

func TestPasswordResetFlow(t *testing.T) {
	h := newHarness(t)
	auth := newAuth(h)
	res, pair, err := auth.Signup(h.ctx, application.SignupInput{Email: "dave@example.com", Password: "password123"})
	assert.Equal(t, err, nil)

	link, err := auth.ResetInit(h.ctx, "nobody@example.com")
	assert.Equal(t, err, nil)
	assert.Equal(t, link, "")
	assert.Equal(t, len(h.mail.sent()), 0)

	link, err = auth.ResetInit(h.ctx, "dave@example.com")
	assert.Equal(t, err, nil)
	assert.Equal(t, strings.HasPrefix(link, h.cfg.ResetPasswordURL+"?token="), true)
	jobs := h.mail.sent()
	assert.Equal(t, len(jobs), 1)
	assert.Equal(t, jobs[0].Template, "forgot_password")
	assert.Equal(t, jobs[0].Data["ResetURL"], link)

	token := strings.TrimPrefix(link, h.cfg.ResetPasswordURL+"?token=")
	assert.Equal(t, auth.ResetConfirm(h.ctx, token, "new-password-1"), nil)
	assert.Equal(t, auth.ResetConfirm(h.ctx, token, "new-password-2"), application.ErrTokenInvalid)

	_, err = auth.Identify(h.ctx, pair.AccessToken)
	assert.Equal(t, err, application.ErrInvalidCredentials)
	_, _, err = auth.Login(h.ctx, "dave@example.com", "password123")
	assert.Equal(t, err, application.ErrInvalidCredentials)
	login, _, err := auth.Login(h.ctx, "dave@example.com", "new-password-1")
	assert.Equal(t, err, nil)
	assert.Equal(t, login.UserID, res.UserID)
}

func TestSearchUsersWithoutIndex(t *testing.T) {
	h := newHarness(t)
	out, err := newAuth(h).SearchUsers(h.ctx, "alice", 10)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(out), 0)
}
