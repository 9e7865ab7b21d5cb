package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"token-ledger/config"
	httpHandler "token-ledger/internal/adapter/http/handler"
	pgStorage "token-ledger/internal/adapter/storage/postgres"
	redisStorage "token-ledger/internal/adapter/storage/redis"
	"token-ledger/internal/core/domain"
	"token-ledger/internal/core/ports"
	"token-ledger/internal/service"
	"token-ledger/pkg/logger"

	"github.com/shopspring/decimal"
)

func main() {
	// Load configuration
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting Token Ledger Engine")

	ctx := context.Background()

	// Initialize PostgreSQL pool
	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	// Initialize Redis client
	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	// Initialize repositories
	accountRepo := pgStorage.NewAccountRepo(pool)
	entryRepo := pgStorage.NewEntryRepo(pool)
	sessionRepo := pgStorage.NewSessionRepo(pool)
	clearingRepo := pgStorage.NewClearingRepo(pool)
	catalogRepo := pgStorage.NewCatalogRepo(pool)
	transactor := pgStorage.NewTransactor(pool)

	// Initialize Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	defaultRate, err := decimal.NewFromString(cfg.Ledger.TokenEurRate)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid ledger.token_eur_rate")
	}

	// Initialize business services
	transferSvc := service.NewTransferService(accountRepo, entryRepo, idempotencyCache, transactor, cfg.Ledger.IdempotencyTTL, log)
	sessionSvc := service.NewSessionService(sessionRepo, catalogRepo, accountRepo, transferSvc, transactor, cfg.Ledger.SessionTTL, log)
	clearingSvc := service.NewClearingService(clearingRepo, accountRepo, catalogRepo, transferSvc, transactor, defaultRate, log)
	topupSvc := service.NewTopupService(catalogRepo, accountRepo, transferSvc, log)
	reportingSvc := service.NewReportingService(accountRepo, entryRepo, log)
	verifier := service.NewJWTVerifier(cfg.JWT.Secret, cfg.JWT.Issuer)

	// The treasury account must exist before any mint or payout.
	if _, err := accountRepo.EnsureAccount(ctx, domain.TreasuryOwnerID, domain.AccountKindTreasury); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure treasury account")
	}

	// Initialize health checkers
	pgHealth := pgStorage.NewHealthCheck(pool)
	redisHealth := redisStorage.NewHealthCheck(rdb)

	// Setup Gin router with all routes
	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		SessionSvc:     sessionSvc,
		ClearingSvc:    clearingSvc,
		TopupSvc:       topupSvc,
		ReportingSvc:   reportingSvc,
		Verifier:       verifier,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgHealth, redisHealth},
		Logger:         log,
	})

	// HTTP Server with graceful shutdown
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}
