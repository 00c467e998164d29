package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cashier_service/internal/api"
	"cashier_service/internal/cache"
	"cashier_service/internal/config"
	"cashier_service/internal/gateway"
	"cashier_service/internal/lock"
	"cashier_service/internal/metrics"
	"cashier_service/internal/player"
	"cashier_service/internal/reconcile"
	"cashier_service/internal/transaction"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var (
		txRepo  transaction.TransactionRepository
		players player.PlayerRepository
	)
	switch cfg.StorageDriver {
	case config.StorageMemory:
		logger.Warn("using in-memory storage, data is lost on restart")
		txRepo = transaction.NewMemoryRepository()
		players = player.NewMemoryRepository()
	default:
		db, err := gorm.Open(postgres.Open(cfg.DBConnStr), &gorm.Config{TranslateError: true})
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		if err := db.AutoMigrate(&player.Player{}, &player.Credit{}, &transaction.Transaction{}); err != nil {
			logger.Fatal("failed to migrate database", zap.Error(err))
		}
		txRepo = transaction.NewTransactionRepositoryImpl(db)
		players = player.NewPlayerRepositoryImpl(db)
	}

	var (
		locker lock.Locker = lock.NewKeyedMutex()
		store  cache.Store = cache.NewMemoryStore()
	)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.String("addr", cfg.RedisAddr), zap.Error(err))
		}
		defer rdb.Close()
		locker = lock.NewRedisLocker(rdb, logger)
		store = cache.NewRedisStore(rdb)
		logger.Info("redis connected", zap.String("addr", cfg.RedisAddr))
	}

	chapa := gateway.NewClient(gateway.Config{
		BaseURL:             cfg.Chapa.BaseURL,
		SecretKey:           cfg.Chapa.SecretKey,
		CallbackURL:         cfg.Chapa.CallbackURL,
		WithdrawCallbackURL: cfg.Chapa.WithdrawCallbackURL,
		ReturnURL:           cfg.Chapa.ReturnURL,
		Timeout:             cfg.Chapa.Timeout,
	}, logger.Named("gateway"), m)

	engineCfg := transaction.DefaultConfig()
	engineCfg.Limits = transaction.Limits{
		MinAmount:       cfg.MinAmount,
		MaxAmount:       cfg.MaxAmount,
		DailyDepositCap: cfg.DailyDepositCap,
	}
	engineCfg.Currency = cfg.Currency
	engineCfg.BanksCacheTTL = cfg.BanksCacheTTL
	engineCfg.ReconcileGrace = cfg.ReconcileGrace
	engineCfg.DepositExpiry = cfg.DepositExpiry
	engineCfg.PendingHold = cfg.DepositHold

	engine := transaction.NewService(transaction.Dependencies{
		Repo:     txRepo,
		Players:  players,
		Gateway:  chapa,
		Verifier: transaction.NewSignatureVerifier(cfg.Chapa.WebhookSecret),
		Locker:   locker,
		Cache:    cache.NewReadThrough(store, logger.Named("cache")),
		Hub:      transaction.NewUpdateHub(),
		Metrics:  m,
		Logger:   logger.Named("transaction"),
	}, engineCfg)

	scheduler := reconcile.NewScheduler(engine, m, logger.Named("reconcile"), time.Minute)
	if err := scheduler.Start(cfg.ReconcileSchedule); err != nil {
		logger.Fatal("failed to schedule reconciliation", zap.Error(err))
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := api.NewRouter(api.NewHandler(engine), api.RouterConfig{
		AdminToken: cfg.AdminToken,
		Metrics:    promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
	}, logger.Named("http"))

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("server started", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
