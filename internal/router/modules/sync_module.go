package modules

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oksasatya/go-social-sync/internal/container"
	handlers "github.com/oksasatya/go-social-sync/internal/interface/http"
	"github.com/oksasatya/go-social-sync/internal/interface/middleware"
	"github.com/oksasatya/go-social-sync/internal/interface/ws"
)

// SyncModule wires the live sync endpoint and its HTTP fallbacks. Callers may be
// anonymous; procedures and publications decide what an anonymous caller can do.
// GET /api/sync (websocket), POST /api/methods/:name, GET /api/publications/:name
type SyncModule struct {
	Handler  *handlers.SyncHandler
	Server   *ws.Server
	Identity middleware.Identifier
}

func NewSyncModule(h *handlers.SyncHandler, srv *ws.Server, id middleware.Identifier) *SyncModule {
	return &SyncModule{Handler: h, Server: srv, Identity: id}
}

func (m *SyncModule) Register(rg *gin.RouterGroup) {
	rdb := container.GetRedis()

	rg.GET("/sync", middleware.RateLimit(rdb, 30, time.Minute, middleware.KeyByIP(), nil), m.Server.Handle)

	open := rg.Group("/")
	open.Use(middleware.Identify(m.Identity))
	open.Use(middleware.RateLimit(rdb, 600, time.Minute, middleware.KeyByUserID(), nil))
	{
		open.POST("/methods/:name", m.Handler.Call)
		open.GET("/publications/:name", m.Handler.Snapshot)
	}
}
