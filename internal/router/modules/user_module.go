package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-social-sync/internal/container"
	handlers "github.com/oksasatya/go-social-sync/internal/interface/http"
	"github.com/oksasatya/go-social-sync/internal/interface/middleware"
)

// UserModule wires profile and directory routes. All of them require a session.
// GET /api/profile, POST /api/profile/avatar, GET /api/users/search
type UserModule struct {
	Handler  *handlers.UserHandler
	Identity middleware.Identifier
}

func NewUserModule(h *handlers.UserHandler, id middleware.Identifier) *UserModule {
	return &UserModule{Handler: h, Identity: id}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	rdb := container.GetRedis()
	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.Identity))
	auth.Use(
		middleware.RateLimit(rdb, 300, time.Minute, middleware.KeyByIP(), nil),
		middleware.RateLimit(rdb, 120, time.Minute, middleware.KeyByUserID(), nil),
	)
	{
		auth.GET("/profile", m.Handler.GetProfile)
		auth.POST("/profile/avatar", middleware.RateLimit(rdb, 10, time.Minute, middleware.KeyByUserID(), nil), m.Handler.UploadAvatar)
		auth.GET("/users/search", m.Handler.Search)
	}
}
