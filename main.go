package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"recharge-wallet/internal/aggregator"
	"recharge-wallet/internal/config"
	"recharge-wallet/internal/db"
	"recharge-wallet/internal/events"
	"recharge-wallet/internal/handlers"
	"recharge-wallet/internal/ledger"
	"recharge-wallet/internal/logger"
	"recharge-wallet/internal/router"
	"recharge-wallet/internal/services"
)

const devJWTSecret = "default-secret-key-change-in-production"

func main() {
	cfg := config.LoadConfig()

	log := logger.InitLogger(cfg.LogLevel, !cfg.IsProduction())
	log.Info().Str("env", cfg.Env).Msg("Starting recharge wallet service")

	jwtSecret := cfg.JWT.Secret
	if jwtSecret == "" {
		if cfg.IsProduction() {
			log.Fatal().Msg("JWT_SECRET is required in production")
		}
		log.Warn().Msg("JWT_SECRET not set, using default key")
		jwtSecret = devJWTSecret
	}

	database, err := db.InitDB(cfg.Database.URL, db.PoolOptions{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Database connection failed")
	}
	defer database.Close()

	if err := db.RunMigrations(database); err != nil {
		log.Fatal().Err(err).Msg("Migrations failed")
	}

	store := ledger.NewStore(database, log)
	provider := aggregator.NewClient(aggregator.Config{
		BaseURL:       cfg.Aggregator.BaseURL,
		PartnerID:     cfg.Aggregator.PartnerID,
		AuthorisedKey: cfg.Aggregator.AuthorisedKey,
		JWTKey:        cfg.Aggregator.JWTKey,
		Timeout:       cfg.Aggregator.Timeout,
	}, log)

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.RabbitMQ.URL != "" {
		p, err := events.NewRabbitMQPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, cfg.RabbitMQ.RoutingKey, log)
		if err != nil {
			log.Error().Err(err).Msg("RabbitMQ unavailable, settlement events disabled")
		} else {
			publisher = p
		}
	}
	defer publisher.Close()

	authService := services.NewAuthService(jwtSecret, cfg.JWT.TTL, log)
	otpSender, err := services.NewLogOTPSender(cfg.IsProduction(), log)
	if err != nil {
		log.Fatal().Err(err).Msg("OTP sender unavailable in production")
	}
	userService := services.NewUserService(store, authService, otpSender, cfg.OTP.TTL, cfg.OTP.MaxAttempts, log)
	balanceService := services.NewBalanceService(store, log)
	transactionService := services.NewTransactionService(store, log)
	rechargeService := services.NewRechargeService(store, provider, publisher, log)
	directoryService := services.NewDirectoryService(store, provider, log)
	reconciler := services.NewReconciler(store, provider, publisher, services.ReconcilerConfig{
		Interval:    cfg.Sweeper.Interval,
		BatchSize:   cfg.Sweeper.BatchSize,
		ReviewAfter: cfg.Sweeper.ReviewAfter,
	}, log)

	r := router.SetupRouter(router.Handlers{
		Auth:         handlers.NewAuthHandler(userService, log),
		User:         handlers.NewUserHandler(userService, log),
		Balance:      handlers.NewBalanceHandler(balanceService, log),
		Transaction:  handlers.NewTransactionHandler(transactionService, log),
		Recharge:     handlers.NewRechargeHandler(rechargeService, reconciler, log),
		Directory:    handlers.NewDirectoryHandler(directoryService, log),
		HealthPinger: database,
	}, router.Options{
		JWTSecret: jwtSecret,
		RateRPS:   cfg.RateLimit.RPS,
		RateBurst: cfg.RateLimit.Burst,
	}, log)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.Aggregator.Timeout + 15*time.Second,
	}

	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	sweeperDone := make(chan struct{})
	go func() {
		defer close(sweeperDone)
		reconciler.Run(sweepCtx)
	}()

	go func() {
		log.Info().Msgf("Server listening on port %s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutdown signal received")

	// Detached recharges may still be waiting on the provider.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Aggregator.Timeout+5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}

	stopSweeper()
	<-sweeperDone

	log.Info().Msg("Server stopped")
}
