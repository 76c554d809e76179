package application

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-social-sync/config"
	"github.com/oksasatya/go-social-sync/internal/domain/entity"
	repo "github.com/oksasatya/go-social-sync/internal/domain/repository"
	"github.com/oksasatya/go-social-sync/pkg/helpers"
	"github.com/oksasatya/go-social-sync/pkg/mailer"
	tpl "github.com/oksasatya/go-social-sync/pkg/mailer/templates"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserNotFound       = errors.New("user not found")
	ErrEmailTaken         = errors.New("email or username already registered")
)

const (
	sessionTTL    = 24 * time.Hour
	resetTokenTTL = 30 * time.Minute
)

type AuthService struct {
	Repo     repo.UserRepository
	JWT      *helpers.JWTManager
	Sessions SessionStore
	Tokens   TokenStore
	Mail     MailQueue
	Index    UserIndex
	Cfg      *config.Config
	Logger   *logrus.Logger
}

func NewAuthService(users repo.UserRepository, jwt *helpers.JWTManager, sessions SessionStore, tokens TokenStore, mail MailQueue, index UserIndex, cfg *config.Config, logger *logrus.Logger) *AuthService {
	return &AuthService{
		Repo:     users,
		JWT:      jwt,
		Sessions: sessions,
		Tokens:   tokens,
		Mail:     mail,
		Index:    index,
		Cfg:      cfg,
		Logger:   logger,
	}
}

type TokenPair struct {
	AccessToken        string
	AccessTokenExpiry  time.Time
	RefreshToken       string
	RefreshTokenExpiry time.Time
}

type LoginResponse struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	Username string `json:"username,omitempty"`
	Name     string `json:"name"`
}

type SignupInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,pwd,max=72"`
	Username string `json:"username" binding:"omitempty,min=3,max=32,alphanum"`
	Name     string `json:"name" binding:"omitempty,max=80"`
}

// NewUser builds an account with the profile defaults every new user gets.
func NewUser(email, passwordHash, username, name string) *entity.User {
	now := time.Now().UTC()
	u := &entity.User{
		Username: username,
		Password: passwordHash,
		Profile: entity.Profile{
			Name:       name,
			IsVerified: false,
			CreatedAt:  &now,
		},
	}
	if email != "" {
		u.Emails = []entity.Email{{Address: strings.ToLower(email)}}
		u.Profile.Avatar = "https://ui-avatars.com/api/?name=" + url.QueryEscape(email) + "&background=random"
	}
	return u
}

func loginResponse(u *entity.User) *LoginResponse {
	res := &LoginResponse{UserID: u.ID, Username: u.Username, Name: u.DisplayName()}
	if e := u.PrimaryEmail(); e != nil {
		res.Email = e.Address
	}
	return res
}

// Signup creates an account and signs it in.
func (s *AuthService) Signup(ctx context.Context, in SignupInput) (*LoginResponse, TokenPair, error) {
	hash, err := helpers.HashPassword(in.Password)
	if err != nil {
		return nil, TokenPair{}, err
	}
	u := NewUser(in.Email, hash, in.Username, in.Name)
	if err := s.Repo.Create(ctx, u); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, TokenPair{}, ErrEmailTaken
		}
		return nil, TokenPair{}, err
	}
	s.indexUser(ctx, u)
	pair, err := s.IssueTokens(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return loginResponse(u), pair, nil
}

// Authenticate validates email/password and returns the user without issuing tokens.
func (s *AuthService) Authenticate(ctx context.Context, email, password string) (*entity.User, error) {
	u, err := s.Repo.GetByEmail(ctx, email)
	if err != nil || u == nil {
		return nil, ErrInvalidCredentials
	}
	if !helpers.CompareHashAndPassword(u.Password, password) {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// IssueTokens generates access/refresh tokens and records a session.
func (s *AuthService) IssueTokens(ctx context.Context, u *entity.User) (TokenPair, error) {
	sid := uuid.NewString()
	access, aexp, err := s.JWT.GenerateAccessToken(u.ID, sid)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate access token failed")
		}
		return TokenPair{}, err
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(u.ID, sid)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Error("generate refresh token failed")
		}
		return TokenPair{}, err
	}

	if s.Sessions != nil {
		res := loginResponse(u)
		fields := map[string]any{
			"user_id":    u.ID,
			"email":      res.Email,
			"name":       res.Name,
			"avatar_url": u.Profile.Avatar,
			"logged_in":  true,
			"created_at": nowRFC3339(),
		}
		if err := s.Sessions.Save(ctx, u.ID, sid, fields, sessionTTL); err != nil && s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Warn("session save failed")
		}
	}

	return TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp}, nil
}

func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResponse, TokenPair, error) {
	u, err := s.Authenticate(ctx, email, password)
	if err != nil {
		return nil, TokenPair{}, err
	}
	pair, err := s.IssueTokens(ctx, u)
	if err != nil {
		return nil, TokenPair{}, err
	}
	return loginResponse(u), pair, nil
}

// Refresh rotates the session id and both tokens when refreshToken belongs to the
// current session.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (TokenPair, string, error) {
	claims, err := s.JWT.ParseRefreshToken(refreshToken)
	if err != nil {
		return TokenPair{}, "", ErrInvalidCredentials
	}
	u, err := s.Repo.GetByID(ctx, claims.UserID)
	if err != nil || u == nil {
		return TokenPair{}, "", ErrInvalidCredentials
	}
	if !s.currentSession(ctx, u.ID, claims.SessionID) {
		return TokenPair{}, "", ErrInvalidCredentials
	}
	sid := uuid.NewString()
	access, aexp, err := s.JWT.GenerateAccessToken(u.ID, sid)
	if err != nil {
		return TokenPair{}, "", err
	}
	refresh, rexp, err := s.JWT.GenerateRefreshToken(u.ID, sid)
	if err != nil {
		return TokenPair{}, "", err
	}
	if s.Sessions != nil {
		_ = s.Sessions.Save(ctx, u.ID, sid, map[string]any{"updated_at": nowRFC3339()}, sessionTTL)
	}
	return TokenPair{AccessToken: access, AccessTokenExpiry: aexp, RefreshToken: refresh, RefreshTokenExpiry: rexp}, u.ID, nil
}

// Logout ends every session of userID.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	if s.Sessions == nil || userID == "" {
		return nil
	}
	return s.Sessions.Delete(ctx, userID)
}

// Identify resolves an access token to a user id. It fails when the token is invalid or
// its session has been rotated or ended.
func (s *AuthService) Identify(ctx context.Context, accessToken string) (string, error) {
	claims, err := s.JWT.ParseAccessToken(accessToken)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	if !s.currentSession(ctx, claims.UserID, claims.SessionID) {
		return "", ErrInvalidCredentials
	}
	return claims.UserID, nil
}

func (s *AuthService) currentSession(ctx context.Context, userID, sid string) bool {
	if s.Sessions == nil {
		return true
	}
	current, err := s.Sessions.SessionID(ctx, userID)
	return err == nil && current != "" && current == sid
}

func (s *AuthService) GetProfile(ctx context.Context, userID string) (*entity.User, error) {
	u, err := s.Repo.GetByID(ctx, userID)
	if err != nil || u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// ResetInit issues a password reset token and queues the email. It returns the reset
// link, empty when the address is unknown.
func (s *AuthService) ResetInit(ctx context.Context, email string) (string, error) {
	u, err := s.Repo.GetByEmail(ctx, email)
	if err != nil || u == nil || s.Tokens == nil {
		return "", nil
	}
	tok, err := s.Tokens.Issue(ctx, TokenResetPassword, u.ID, resetTokenTTL)
	if err != nil {
		return "", err
	}
	link := s.Cfg.ResetPasswordURL + "?token=" + tok
	if s.Mail != nil && s.Cfg.MailSendEnabled {
		addr := u.PrimaryEmail().Address
		data := tpl.NewForgotPasswordData(s.Cfg, u.DisplayName(), addr, addr,
			tpl.WithTime(time.Now()),
			tpl.WithResetURL(link),
			tpl.WithExpiresIn(resetTokenTTL),
		)
		if err := s.Mail.Enqueue(ctx, mailer.EmailJob{To: addr, Template: tpl.ForgotPassword, Data: data}); err != nil && s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Warn("failed to queue reset email")
		}
	}
	return link, nil
}

// ResetConfirm sets a new password for the token's user and ends their sessions.
func (s *AuthService) ResetConfirm(ctx context.Context, token, newPassword string) error {
	if s.Tokens == nil {
		return ErrTokenInvalid
	}
	uid, err := s.Tokens.Consume(ctx, TokenResetPassword, token)
	if err != nil {
		return err
	}
	hash, err := helpers.HashPassword(newPassword)
	if err != nil {
		return err
	}
	if err := s.Repo.UpdatePassword(ctx, uid, hash); err != nil {
		return err
	}
	return s.Logout(ctx, uid)
}

func (s *AuthService) indexUser(ctx context.Context, u *entity.User) {
	if s.Index == nil {
		return
	}
	if err := s.Index.IndexUser(ctx, u); err != nil && s.Logger != nil {
		s.Logger.WithError(err).WithField("user_id", u.ID).Warn("es index failed")
	}
}

// SearchUsers queries the user directory.
func (s *AuthService) SearchUsers(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if s.Index == nil {
		return []map[string]any{}, nil
	}
	return s.Index.SearchUsers(ctx, q, size)
}
