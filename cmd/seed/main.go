package main

import (
	"context"
	"time"

	"github.com/joho/godotenv"

	"github.com/oksasatya/go-social-sync/config"
	"github.com/oksasatya/go-social-sync/internal/application"
	pginfra "github.com/oksasatya/go-social-sync/internal/infrastructure/postgres"
	"github.com/oksasatya/go-social-sync/pkg/helpers"
)

// Seeds the default admin account and the sample posts into Postgres. Safe to rerun.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-seed", cfg.Env, cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := pginfra.NewPool(ctx, cfg.PostgresDSN(), pginfra.PoolOptions{
		MaxConns:    2,
		MinConns:    1,
		MaxConnLife: cfg.DBMaxConnLife,
		AppName:     cfg.AppName + "-seed",
	})
	if err != nil {
		logger.WithError(err).Fatal("failed to connect to postgres")
	}
	defer pool.Close()

	if err := pginfra.RunMigrations(cfg.PostgresDSN(), cfg.MigrationsDir, logger); err != nil {
		logger.WithError(err).Fatal("migration failed")
	}

	seeder := &application.Seeder{
		Users:  pginfra.NewUserRepository(pool),
		Posts:  pginfra.NewPostRepository(pool),
		Logger: logger,
	}
	if err := seeder.Seed(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		logger.WithError(err).Fatal("seed failed")
	}
	logger.WithField("admin", cfg.AdminEmail).Info("seed complete")
}
