package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	_ "github.com/redmonkez12/quick-flayer-api/docs" // Swagger docs
	"github.com/redmonkez12/quick-flayer-api/internal/auth"
	"github.com/redmonkez12/quick-flayer-api/internal/config"
	"github.com/redmonkez12/quick-flayer-api/internal/database"
	httpServer "github.com/redmonkez12/quick-flayer-api/internal/http"
	"github.com/redmonkez12/quick-flayer-api/internal/logging"
	"github.com/redmonkez12/quick-flayer-api/internal/metrics"
	"github.com/redmonkez12/quick-flayer-api/internal/ratelimit"
	"github.com/redmonkez12/quick-flayer-api/internal/user"
)

// @title           Quick Flayer Auth API
// @version         1.0
// @description     Authentication and role-based access control: login, registration, profile and token verification.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:3001
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the access token.

func main() {
	if err := run(); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"token_strategy", cfg.Auth.TokenStrategy,
	)

	// Database
	sqlDB, err := database.OpenPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer sqlDB.Close()

	if cfg.Database.AutoMigrate {
		if err := database.MigrateUp(ctx, sqlDB); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		logger.Info("database migrations applied")
	}

	db := database.NewBunDB(sqlDB)

	// Redis backs the rate limiter
	redisClient, err := initRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	// Auth
	tokenService, err := auth.NewTokenService(cfg.Auth)
	if err != nil {
		return fmt.Errorf("failed to initialize token service: %w", err)
	}

	trustedProxies, err := ratelimit.ParseTrustedProxies(cfg.RateLimit.TrustedProxies)
	if err != nil {
		return fmt.Errorf("failed to parse trusted proxies: %w", err)
	}

	m := metrics.New()
	userRepo := user.NewRepository(db)
	hasher := auth.NewBcryptHasher(cfg.Auth.BcryptCost, cfg.Auth.HashConcurrency)
	authService := auth.NewService(userRepo, hasher, tokenService, logger)

	router := httpServer.NewRouter(httpServer.Dependencies{
		Config:         cfg,
		AuthHandler:    auth.NewHandler(authService, m),
		Guard:          auth.NewGuard(tokenService, m),
		Limiter:        ratelimit.NewLimiter(redisClient, cfg.RateLimit.Requests, cfg.RateLimit.Window),
		TrustedProxies: trustedProxies,
		Metrics:        m,
		Logger:         logger,
	})

	server := httpServer.NewServer(
		":"+cfg.Server.Port,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	// Wait for interrupt signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("received signal", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}
