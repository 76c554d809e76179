package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-social-sync/internal/container"
	handlers "github.com/oksasatya/go-social-sync/internal/interface/http"
	"github.com/oksasatya/go-social-sync/internal/interface/middleware"
)

// AuthModule wires account routes.
// Public: POST /api/signup, /api/login, /api/refresh, /api/auth/verify/confirm,
// /api/auth/reset/init, /api/auth/reset/confirm
// Protected: POST /api/logout, /api/auth/verify/init
type AuthModule struct {
	Handler  *handlers.AuthHandler
	Identity middleware.Identifier
}

func NewAuthModule(h *handlers.AuthHandler, id middleware.Identifier) *AuthModule {
	return &AuthModule{Handler: h, Identity: id}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	rdb := container.GetRedis()

	// Public endpoints with IP-based rate limits
	signupLimiter := middleware.RateLimit(rdb, 10, time.Minute, middleware.KeyByIP(), nil)
	loginLimiter := middleware.RateLimit(rdb, 10, time.Minute, middleware.KeyByIP(), nil)
	refreshLimiter := middleware.RateLimit(rdb, 60, time.Minute, middleware.KeyByIP(), nil)
	verifyConfirmLimiter := middleware.RateLimit(rdb, 30, time.Minute, middleware.KeyByIPAndPath(), nil)
	resetInitLimiter := middleware.RateLimit(rdb, 5, time.Minute, middleware.KeyByIPAndPath(), nil)
	resetConfirmLimiter := middleware.RateLimit(rdb, 30, time.Minute, middleware.KeyByIPAndPath(), nil)

	rg.POST("/signup", signupLimiter, m.Handler.Signup)
	rg.POST("/login", loginLimiter, m.Handler.Login)
	rg.POST("/refresh", refreshLimiter, m.Handler.Refresh)
	rg.POST("/auth/verify/confirm", verifyConfirmLimiter, m.Handler.VerifyConfirm)
	rg.POST("/auth/reset/init", resetInitLimiter, m.Handler.ResetInit)
	rg.POST("/auth/reset/confirm", resetConfirmLimiter, m.Handler.ResetConfirm)

	// Protected with user-based rate limit
	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.Identity))
	auth.Use(middleware.RateLimit(rdb, 5, time.Minute, middleware.KeyByUserID(), nil))
	{
		auth.POST("/logout", m.Handler.Logout)
		auth.POST("/auth/verify/init", m.Handler.VerifyInit)
	}
}
