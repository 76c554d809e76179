package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/oklog/ulid/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-social-sync/config"
	"github.com/oksasatya/go-social-sync/internal/application"
	"github.com/oksasatya/go-social-sync/internal/container"
	"github.com/oksasatya/go-social-sync/internal/infrastructure/changefeed"
	"github.com/oksasatya/go-social-sync/internal/infrastructure/mailqueue"
	"github.com/oksasatya/go-social-sync/internal/infrastructure/memory"
	"github.com/oksasatya/go-social-sync/internal/infrastructure/objectstore"
	pginfra "github.com/oksasatya/go-social-sync/internal/infrastructure/postgres"
	"github.com/oksasatya/go-social-sync/internal/infrastructure/redisfeed"
	"github.com/oksasatya/go-social-sync/internal/infrastructure/redisstore"
	"github.com/oksasatya/go-social-sync/internal/infrastructure/search"
	"github.com/oksasatya/go-social-sync/internal/interface/middleware"
	"github.com/oksasatya/go-social-sync/internal/interface/ws"
	"github.com/oksasatya/go-social-sync/internal/livequery"
	"github.com/oksasatya/go-social-sync/internal/router"
	"github.com/oksasatya/go-social-sync/pkg/helpers"
	"github.com/oksasatya/go-social-sync/pkg/validation"
)

func main() {
	_ = godotenv.Load() // load .env if present

	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName, cfg.Env, cfg.LogLevel)
	gin.SetMode(cfg.GinMode)
	validation.Init()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore := openStore(ctx, cfg, logger)
	defer closeStore()

	// Redis backs sessions, one-time tokens, rate limits and the change relay. Without it
	// a single instance falls back to in-process state.
	var rdb *redis.Client
	var sessions application.SessionStore = memory.NewSessions()
	var tokens application.TokenStore = memory.NewTokens()
	if cfg.RedisAddr != "" {
		c := helpers.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := helpers.PingRedis(ctx, c, 3*time.Second); err != nil {
			logger.WithError(err).Warn("redis unavailable; using in-process sessions")
			_ = c.Close()
		} else {
			rdb = c
			defer func() { _ = rdb.Close() }()
			sessions = redisstore.NewSessions(rdb)
			tokens = redisstore.NewTokens(rdb)
		}
	}

	feed := livequery.NewFeed()
	if cfg.ChangeRelay {
		if rdb == nil {
			logger.Fatal("CHANGE_RELAY_ENABLED requires redis")
		}
		instance := cfg.InstanceID
		if instance == "" {
			instance = ulid.Make().String()
		}
		relay := redisfeed.NewRelay(rdb, feed, logger, instance)
		if err := relay.Start(ctx); err != nil {
			logger.WithError(err).Fatal("failed to start change relay")
		}
		defer func() { _ = relay.Stop() }()
	}
	repos := changefeed.Wrap(store, feed)

	var mail application.MailQueue
	if cfg.MailSendEnabled && cfg.RabbitMQURL != "" {
		pub, err := helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue)
		if err != nil {
			logger.WithError(err).Warn("rabbitmq unavailable; emails will not be queued")
		} else {
			defer pub.Close()
			mail = mailqueue.NewRabbit(pub)
		}
	}

	var index application.UserIndex
	if addrs := cfg.ESAddrs(); len(addrs) > 0 {
		es, err := helpers.NewESClient(addrs, cfg.ElasticsearchUser, cfg.ElasticsearchPass)
		if err == nil {
			err = helpers.PingES(ctx, es, 3*time.Second)
		}
		if err != nil {
			logger.WithError(err).Warn("elasticsearch unavailable; user search disabled")
		} else {
			index = search.NewUserIndex(es, cfg.ESUsersIndex)
		}
	}

	var objects application.ObjectStore
	if cfg.GCSBucket != "" {
		gcsClient, err := helpers.NewGCSClient(ctx, cfg.GCSCredentialsJSONPath)
		if err != nil {
			logger.WithError(err).Warn("gcs client init failed; avatar uploads disabled")
		} else {
			defer func() { _ = gcsClient.Close() }()
			objects = objectstore.NewGCS(gcsClient, cfg.GCSBucket)
		}
	}

	jwtManager := helpers.NewJWTManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)
	auth := application.NewAuthService(repos.Users, jwtManager, sessions, tokens, mail, index, cfg, logger)
	profile := application.NewProfileService(repos.Users, sessions, index, objects, logger)
	verification := application.NewVerificationService(repos.Users, tokens, mail, cfg, logger)

	gw := application.NewGateway(application.Services{
		Posts:        application.NewPostService(repos.Posts, repos.Users, application.NewTagCounter(repos.Tags, logger), logger),
		Messages:     application.NewMessageService(repos.Messages, repos.Users, logger),
		Profile:      profile,
		Verification: verification,
		Payments:     application.NewPaymentService(repos.Transactions, logger),
	}, logger)

	pub := livequery.NewPublisher(feed, logger)
	(&application.Publications{Repos: repos, FeedLimit: cfg.FeedLimit, TagLimit: cfg.TagLimit}).Register(pub)

	if cfg.SeedOnStart {
		seeder := &application.Seeder{Users: repos.Users, Posts: repos.Posts, Logger: logger}
		if err := seeder.Seed(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			logger.WithError(err).Fatal("seed failed")
		}
	}

	syncServer := ws.NewServer(gw, pub, auth, logger, cfg.SyncSendBuffer)
	syncServer.AllowOrigins(cfg.CORSOrigins()...)

	// Provide singletons to container for registry auto-wiring
	container.SetConfig(cfg)
	container.SetLogger(logger)
	container.SetRedis(rdb)
	container.SetAuth(auth)
	container.SetProfile(profile)
	container.SetVerification(verification)
	container.SetGateway(gw)
	container.SetPublisher(pub)
	container.SetSyncServer(syncServer)

	// Gin engine and global middleware
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.RealIP())
	corsCfg := cors.Config{
		AllowOrigins:     cfg.CORSOrigins(),
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(corsCfg.AllowOrigins) == 0 {
		corsCfg.AllowOrigins = nil
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	}
	r.Use(cors.New(corsCfg))
	if cfg.HTTPLogEnabled || cfg.Env == "development" {
		r.Use(gin.Logger())
	}

	// Registry: auto-register modules using container
	reg := router.NewRegistry(r)
	router.InitModules(reg)
	reg.RegisterAll()

	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		logger.WithFields(logrus.Fields{
			"port":         cfg.Port,
			"store":        cfg.StoreDriver,
			"methods":      len(gw.Names()),
			"publications": len(pub.Names()),
		}).Info("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("listen: %s", err)
		}
	}()

	// Graceful shutdown
	<-ctx.Done()
	logger.Info("shutting down server")

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	syncServer.Shutdown()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		logger.WithError(err).Error("server forced to shutdown")
	}
	logger.Info("server exited properly")
}

// openStore returns the document store selected by STORE_DRIVER and its cleanup.
func openStore(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (changefeed.Repositories, func()) {
	if cfg.StoreDriver == "memory" {
		logger.Warn("using in-memory store; data is lost on restart")
		s := memory.NewStore()
		return changefeed.Repositories{
			Users:        s.Users(),
			Posts:        s.Posts(),
			Tags:         s.Tags(),
			Messages:     s.Messages(),
			Transactions: s.Transactions(),
		}, func() {}
	}

	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), pginfra.PoolOptions{
		MaxConns:    cfg.DBMaxConns,
		MinConns:    cfg.DBMinConns,
		MaxConnLife: cfg.DBMaxConnLife,
		AppName:     cfg.AppName,
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to postgres")
	}
	if err := pginfra.RunMigrations(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
		pool.Close()
		logger.WithError(err).Fatal("migration failed")
	}
	return changefeed.Repositories{
		Users:        pginfra.NewUserRepository(pool),
		Posts:        pginfra.NewPostRepository(pool),
		Tags:         pginfra.NewTagRepository(pool),
		Messages:     pginfra.NewMessageRepository(pool),
		Transactions: pginfra.NewTransactionRepository(pool),
	}, pool.Close
}
