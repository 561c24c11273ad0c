package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fairplay-wallet/config"
	"fairplay-wallet/internal/adapter/gateway"
	httpHandler "fairplay-wallet/internal/adapter/http/handler"
	pgStorage "fairplay-wallet/internal/adapter/storage/postgres"
	redisStorage "fairplay-wallet/internal/adapter/storage/redis"
	"fairplay-wallet/internal/core/ports"
	"fairplay-wallet/internal/game"
	"fairplay-wallet/internal/metrics"
	"fairplay-wallet/internal/service"
	"fairplay-wallet/pkg/logger"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	// A missing .env is fine; the environment may already be populated.
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("FPW_CONFIG"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)

	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting fairplay wallet")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	m := metrics.New(prometheus.DefaultRegisterer)

	// Repositories and stores
	walletRepo := pgStorage.NewWalletRepo(pool)
	entryRepo := pgStorage.NewLedgerRepo(pool)
	gameRepo := pgStorage.NewGameRepo(pool)
	subRepo := pgStorage.NewSubscriptionRepo(pool)
	transactor := pgStorage.NewTransactor(pool, cfg.Ledger.LockTimeout)

	callbackCache := redisStorage.NewCallbackCache(rdb)
	seedStore := redisStorage.NewSeedStore(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	// Core services
	fx, err := service.NewCurrencyService(cfg.Currency.Base, cfg.Currency.NormalizedRates())
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid currency configuration")
	}
	sealer, err := service.NewSeedSealer(cfg.Seal.Key)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize seed sealer")
	}
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)

	ledger := service.NewLedgerService(walletRepo, entryRepo, transactor, fx, m,
		cfg.Ledger.MaxRetries, cfg.Ledger.RetryBackoff, logger.Component(log, "ledger"))
	walletSvc := service.NewWalletService(walletRepo, entryRepo, ledger, fx, logger.Component(log, "wallet"))

	gateways := gateway.NewRegistry(
		gateway.NewVNPay(cfg.Gateways.VNPay),
		gateway.NewMoMo(cfg.Gateways.MoMo, cfg.Gateways.Timeout),
	)

	limits := make(map[string]service.AmountLimits, len(cfg.Deposits.Methods))
	for method, l := range cfg.Deposits.Methods {
		limits[method] = service.AmountLimits{Min: l.Min, Max: l.Max}
	}
	depositSvc := service.NewDepositService(gateways, ledger, walletSvc, entryRepo, fx, callbackCache,
		service.DepositOptions{
			Limits:         limits,
			GatewayTimeout: cfg.Gateways.Timeout,
			CacheTTL:       cfg.Deposits.CallbackCacheTTL,
		}, m, logger.Component(log, "deposit"))

	houseWalletID, err := parseOptionalUUID(cfg.Games.HouseWalletID)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid games.house_wallet_id")
	}
	if houseWalletID == uuid.Nil {
		log.Warn().Msg("games.house_wallet_id not set, bets will be rejected")
	}
	gameSvc := service.NewGameService(ledger, gameRepo, seedStore, sealer, service.NewFairnessEngine(), fx,
		game.Default(), service.GameOptions{
			HouseWalletID: houseWalletID,
			MaxStake:      cfg.Games.MaxStake,
			SeedTTL:       cfg.Games.SeedTTL,
		}, m, logger.Component(log, "game"))

	if cfg.Renewal.Enabled {
		worker := service.NewRenewalWorker(subRepo, ledger, fx, cfg.Renewal.Interval, cfg.Renewal.BatchSize, m, log)
		go worker.Start(ctx)
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		WalletSvc:      walletSvc,
		DepositSvc:     depositSvc,
		GameSvc:        gameSvc,
		Gateways:       gateways,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{
			pgStorage.NewHealthCheck(pool),
			redisStorage.NewHealthCheck(rdb),
		},
		Metrics: m,
		Logger:  log,
	})

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().
			Str("addr", addr).
			Strs("payment_methods", gateways.Methods()).
			Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

func parseOptionalUUID(s string) (uuid.UUID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(s)
}
