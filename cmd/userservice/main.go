package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/learnhub/user-service/internal/api"
	"github.com/learnhub/user-service/internal/core/ports"
	"github.com/learnhub/user-service/internal/core/service"
	"github.com/learnhub/user-service/internal/infrastructure/auth"
	mongodb "github.com/learnhub/user-service/internal/infrastructure/db/mongo"
	redisdb "github.com/learnhub/user-service/internal/infrastructure/db/redis"
	"github.com/learnhub/user-service/internal/infrastructure/queue"
	"github.com/learnhub/user-service/internal/pkg/config"
	"github.com/learnhub/user-service/pkg/logger"

	_ "github.com/learnhub/user-service/docs" // Swagger docs
)

// @title           User Service API
// @version         1.0
// @description     Account registration, login and profile management.

// @host      localhost:3000
// @BasePath  /

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "user-service: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()

	log := logger.Init(logger.Options{
		Level:  cfg.LogLevel,
		Pretty: !cfg.IsProduction(),
	})

	if cfg.IsProduction() && cfg.Auth.JWTSecret == config.DefaultJWTSecret {
		log.Warn().Msg("JWT_SECRET is the built-in default; set a real secret in production")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- MongoDB ---
	mongoClient, db, err := mongodb.Connect(ctx, mongodb.Config{
		URI:      cfg.Mongo.URI,
		Database: cfg.Mongo.Database,
		Timeout:  cfg.Mongo.Timeout,
	})
	if err != nil {
		log.Error().Err(err).Msg("failed to connect to MongoDB")
		return err
	}
	defer func() {
		if err := mongoClient.Disconnect(context.Background()); err != nil {
			log.Error().Err(err).Msg("error disconnecting MongoDB")
		}
	}()
	log.Info().Str("database", cfg.Mongo.Database).Msg("MongoDB connected")

	accounts := mongodb.NewAccountRepository(db, cfg.Mongo.Timeout)
	if err := accounts.EnsureIndexes(ctx); err != nil {
		log.Error().Err(err).Msg("failed to create account indexes")
		return err
	}

	// --- Redis (optional) ---
	var (
		rdb  *redis.Client
		idem ports.IdempotencyStore
	)
	rdb, err = redisdb.Connect(ctx, redisdb.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	switch {
	case errors.Is(err, redisdb.ErrDisabled):
		log.Info().Msg("Redis disabled, registration idempotency keys are ignored")
	case err != nil:
		log.Warn().Err(err).Msg("Redis unavailable, registration idempotency keys are ignored")
		rdb = nil
	default:
		idem = redisdb.NewIdempotencyStore(rdb, cfg.Redis.IdempotencyTTL)
		defer func() {
			if err := rdb.Close(); err != nil {
				log.Error().Err(err).Msg("error closing Redis")
			}
		}()
		log.Info().Str("addr", cfg.Redis.Addr).Msg("Redis connected")
	}

	// --- Auth primitives ---
	// Workers outlive the signal context so in-flight logins finish during shutdown.
	hashCtx, stopHashing := context.WithCancel(context.Background())
	defer stopHashing()

	hasher := queue.NewHashDispatcher(cfg.Auth.HashWorkers, auth.NewBcryptHasher(cfg.Auth.BcryptCost), log)
	hasher.Start(hashCtx)

	issuer, err := auth.NewJWTIssuer(cfg.Auth.JWTSecret, cfg.Auth.JWTExpiresIn)
	if err != nil {
		return err
	}

	accountService := service.NewAccountService(accounts, hasher, issuer, idem, log)

	e := api.NewRouter(api.Dependencies{
		Accounts: accountService,
		Tokens:   issuer,
		Mongo:    db,
		Redis:    rdb,
		Log:      log,
	})

	serverErr := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Int("hash_workers", hasher.Workers()).Msg("user-service listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err, ok := <-serverErr:
		if ok {
			log.Error().Err(err).Msg("server failed")
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		return err
	}

	log.Info().Msg("user-service exited")
	return nil
}
