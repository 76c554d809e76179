package container

import (
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/go-social-sync/config"
	"github.com/oksasatya/go-social-sync/internal/application"
	"github.com/oksasatya/go-social-sync/internal/interface/ws"
	"github.com/oksasatya/go-social-sync/internal/livequery"
)

// app-level container to share constructed components across packages
// Router can auto-wire modules from these singletons.

var (
	cfg         *config.Config
	logger      *logrus.Logger
	redisClient *redis.Client

	authService         *application.AuthService
	profileService      *application.ProfileService
	verificationService *application.VerificationService
	gateway             *application.Gateway
	publisher           *livequery.Publisher
	syncServer          *ws.Server
)

func SetConfig(c *config.Config) { cfg = c }
func GetConfig() *config.Config  { return cfg }
func SetLogger(l *logrus.Logger) { logger = l }
func GetLogger() *logrus.Logger  { return logger }

// SetRedis may be given nil; rate limiters then pass every request.
func SetRedis(r *redis.Client) { redisClient = r }
func GetRedis() *redis.Client  { return redisClient }

func SetAuth(s *application.AuthService) { authService = s }
func GetAuth() *application.AuthService  { return authService }

func SetProfile(s *application.ProfileService) { profileService = s }
func GetProfile() *application.ProfileService  { return profileService }

func SetVerification(s *application.VerificationService) { verificationService = s }
func GetVerification() *application.VerificationService  { return verificationService }

func SetGateway(g *application.Gateway) { gateway = g }
func GetGateway() *application.Gateway  { return gateway }

func SetPublisher(p *livequery.Publisher) { publisher = p }
func GetPublisher() *livequery.Publisher  { return publisher }

func SetSyncServer(s *ws.Server) { syncServer = s }
func GetSyncServer() *ws.Server  { return syncServer }
