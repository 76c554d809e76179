package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-social-sync/internal/application"
	"github.com/oksasatya/go-social-sync/pkg/helpers"
	"github.com/oksasatya/go-social-sync/pkg/response"
	"github.com/oksasatya/go-social-sync/pkg/validation"
)

type AuthHandler struct {
	Auth         *application.AuthService
	Verification *application.VerificationService
	Logger       *logrus.Logger
	Cookies      *helpers.Manager
}

func NewAuthHandler(auth *application.AuthService, verification *application.VerificationService, logger *logrus.Logger, cookieDomain string, cookieSecure bool) *AuthHandler {
	return &AuthHandler{
		Auth:         auth,
		Verification: verification,
		Logger:       logger,
		Cookies:      helpers.NewCookie(cookieDomain, cookieSecure),
	}
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type tokenRequest struct {
	Token string `json:"token" binding:"required"`
}

type resetInitRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type resetConfirmRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,pwd,max=72"`
}

func expiries(pair application.TokenPair) map[string]any {
	return map[string]any{"access_expires_at": pair.AccessTokenExpiry, "refresh_expires_at": pair.RefreshTokenExpiry}
}

// Signup POST /api/signup
func (h *AuthHandler) Signup(c *gin.Context) {
	var req application.SignupInput
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	res, pair, err := h.Auth.Signup(c.Request.Context(), req)
	if errors.Is(err, application.ErrEmailTaken) {
		response.Error[any](c, http.StatusConflict, err.Error(), nil)
		return
	}
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success(c, http.StatusCreated, res, "signup successful", expiries(pair))
}

// Login POST /api/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	res, pair, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		response.Error[any](c, http.StatusUnauthorized, "invalid credentials", nil)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success(c, http.StatusOK, res, "login successful", expiries(pair))
}

// Refresh POST /api/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	refresh, err := c.Cookie(helpers.RefreshCookie)
	if err != nil || refresh == "" {
		response.Error[any](c, http.StatusUnauthorized, "missing refresh token", nil)
		return
	}
	pair, _, err := h.Auth.Refresh(c.Request.Context(), refresh)
	if err != nil {
		response.Error[any](c, http.StatusUnauthorized, "invalid refresh token", nil)
		return
	}
	h.Cookies.SetPair(c, pair.AccessToken, pair.AccessTokenExpiry, pair.RefreshToken, pair.RefreshTokenExpiry)
	response.Success[any](c, http.StatusOK, map[string]any{"refreshed": true}, "token refreshed", expiries(pair))
}

// Logout POST /api/logout (auth required)
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.Auth.Logout(c.Request.Context(), c.GetString("userID")); err != nil && h.Logger != nil {
		h.Logger.WithError(err).Warn("session delete failed")
	}
	h.Cookies.Clear(c)
	response.Success[any](c, http.StatusOK, map[string]any{"logged_out": true}, "logged out", nil)
}

// VerifyInit POST /api/auth/verify/init (auth required)
func (h *AuthHandler) VerifyInit(c *gin.Context) {
	if err := h.Verification.SendVerificationEmail(c.Request.Context(), c.GetString("userID")); err != nil {
		fail(c, h.Logger, err)
		return
	}
	response.Success[any](c, http.StatusAccepted, map[string]any{"sent": true}, "verification email sent", nil)
}

// VerifyConfirm POST /api/auth/verify/confirm
func (h *AuthHandler) VerifyConfirm(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	u, err := h.Verification.ConfirmEmail(c.Request.Context(), req.Token)
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	response.Success[any](c, http.StatusOK, map[string]any{"verified": true, "user_id": u.ID}, "email verified", nil)
}

// ResetInit POST /api/auth/reset/init. The reply does not reveal whether the address
// is registered.
func (h *AuthHandler) ResetInit(c *gin.Context) {
	var req resetInitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	if _, err := h.Auth.ResetInit(c.Request.Context(), req.Email); err != nil && h.Logger != nil {
		h.Logger.WithError(err).Warn("reset init failed")
	}
	response.Success[any](c, http.StatusAccepted, map[string]any{"requested": true}, "if the address is registered, a reset link has been sent", nil)
}

// ResetConfirm POST /api/auth/reset/confirm
func (h *AuthHandler) ResetConfirm(c *gin.Context) {
	var req resetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", validation.ToDetails(err))
		return
	}
	err := h.Auth.ResetConfirm(c.Request.Context(), req.Token, req.NewPassword)
	if errors.Is(err, application.ErrTokenInvalid) {
		response.Error[any](c, http.StatusBadRequest, "invalid or expired token", nil)
		return
	}
	if err != nil {
		fail(c, h.Logger, err)
		return
	}
	h.Cookies.Clear(c)
	response.Success[any](c, http.StatusOK, map[string]any{"reset": true}, "password updated", nil)
}
