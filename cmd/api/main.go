package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"

	"github.com/gorilla/sessions"

	"login-api/core"
)

func main() {
	cfg, err := core.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	ctx := context.Background()

	logCloser, err := core.SetupLogging(cfg, "api.log")
	if err != nil {
		log.Fatalf("failed to setup logging: %v", err)
	}
	defer logCloser.Close()

	db, err := core.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect database: %v", err)
	}
	defer db.Close()

	if err := core.EnsureSchema(ctx, db); err != nil {
		log.Fatalf("failed to ensure schema: %v", err)
	}

	redisClient, err := core.NewRedisClient(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect redis: %v", err)
	}
	defer redisClient.Close()

	// Gorilla cookie store for session management.
	store := sessions.NewCookieStore([]byte(cfg.SessionKey))

	hasher := core.NewBcryptHasher()
	accounts := core.NewPgAccountRepository(db)
	authenticator := core.NewAuthenticator(accounts, hasher, core.RandomTokenGenerator{})

	if err := core.BootstrapAccount(ctx, accounts, hasher, cfg); err != nil {
		log.Fatalf("bootstrap account failed: %v", err)
	}

	router := core.NewRouter(cfg, store, core.Services{
		Auth:         authenticator,
		Accounts:     accounts,
		Sessions:     core.NewRedisSessionStore(redisClient),
		Limiter:      core.NewLoginLimiter(redisClient, cfg.LoginMaxAttempts),
		Registration: core.NewRegistrationService(accounts, hasher, core.NewMailQueue(redisClient)),
		Metrics:      core.NewMetricsService(redisClient),
	})

	addr := fmt.Sprintf(":%s", cfg.Port)
	slog.Info("starting api server", "addr", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
