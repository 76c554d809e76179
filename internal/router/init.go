package router

import (
	"time"

	"github.com/oksasatya/go-social-sync/internal/container"
	handlers "github.com/oksasatya/go-social-sync/internal/interface/http"
	"github.com/oksasatya/go-social-sync/internal/interface/middleware"
	"github.com/oksasatya/go-social-sync/internal/router/modules"
)

// InitModules builds handlers from the services in the container and registers their
// modules. It should be called once during startup, after the container is filled.
func InitModules(r *Registry) {
	cfg := container.GetConfig()
	logger := container.GetLogger()
	auth := container.GetAuth()

	authHandler := handlers.NewAuthHandler(auth, container.GetVerification(), logger, cfg.CookieDomain, cfg.CookieSecure)
	userHandler := handlers.NewUserHandler(auth, container.GetProfile(), logger)
	syncHandler := handlers.NewSyncHandler(container.GetGateway(), container.GetPublisher(), logger)

	r.Use(middleware.RateLimit(container.GetRedis(), cfg.APIRateLimit, time.Minute, middleware.KeyByIPIn("api"), middleware.AllowPrivateIP()))

	r.Add(modules.NewAuthModule(authHandler, auth))
	r.Add(modules.NewUserModule(userHandler, auth))
	r.Add(modules.NewSyncModule(syncHandler, container.GetSyncServer(), auth))
	if cfg.DebugMetricsEnabled {
		r.Add(modules.NewDebugModule())
	}
}
