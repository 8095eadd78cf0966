package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/yhwh80/freelance-marketplace/internal/config"
	"github.com/yhwh80/freelance-marketplace/internal/database"
	"github.com/yhwh80/freelance-marketplace/internal/handler"
	"github.com/yhwh80/freelance-marketplace/internal/logger"
	"github.com/yhwh80/freelance-marketplace/internal/middleware"
	"github.com/yhwh80/freelance-marketplace/internal/payment"
	"github.com/yhwh80/freelance-marketplace/internal/queue"
	"github.com/yhwh80/freelance-marketplace/internal/repository"
	"github.com/yhwh80/freelance-marketplace/internal/router"
	"github.com/yhwh80/freelance-marketplace/internal/service"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load() // .env is optional; real environment wins

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log, err := logger.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db, cfg.DBDriver); err != nil {
		return err
	}

	rdb, err := config.NewRedisClient(ctx, config.LoadRedisConfig())
	if err != nil {
		log.Warn("redis unavailable, rate limiting and caching disabled", zap.Error(err))
	}
	if rdb != nil {
		defer rdb.Close()
	}

	qcfg := config.LoadQueueConfig()
	var pub queue.Publisher = queue.NopPublisher{}
	if qcfg.Enabled {
		p, err := queue.NewAMQPPublisher(qcfg.URL, log)
		if err != nil {
			log.Warn("rabbitmq unavailable, events will not be published", zap.Error(err))
		} else {
			defer p.Close()
			pub = p
		}
		if qcfg.ConsumerEnabled {
			c := &queue.AuditConsumer{URL: qcfg.URL, LogDir: qcfg.LogDir, Log: log}
			go func() {
				if err := c.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("audit consumer stopped", zap.Error(err))
				}
			}()
		}
	}

	pcfg, err := config.LoadPaymentConfig(cfg.Env)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	var provider payment.Provider
	if pcfg.SecretKey == config.MockSecretKey {
		provider = payment.NewMockProvider()
	} else {
		provider = payment.NewStripeProvider(pcfg, log)
	}
	if pcfg.MockMode() {
		log.Warn("payments running in mock mode, not for production", zap.String("api_base", pcfg.APIBase))
	}
	if pcfg.WebhookSecret == "" {
		log.Warn("STRIPE_WEBHOOK_SECRET not set, every webhook will be rejected")
	}

	users := repository.NewUserRepo(db)
	tokens := repository.NewTokenRepo(db)
	jobsRepo := repository.NewJobRepo(db)
	bidsRepo := repository.NewBidRepo(db)
	events := repository.NewPaymentEventRepo(db)

	ledger := service.NewLedger(db, users, events, log)
	jobs := service.NewJobService(db, users, jobsRepo, ledger, pub, log)
	bids := service.NewBidService(db, users, jobsRepo, bidsRepo, pub, log)
	payments := service.NewPaymentService(provider, ledger, service.NewCatalog(pcfg.PriceIDs), pcfg, pub, log)

	e := router.New(router.Handlers{
		Auth:     handler.NewAuthHandler(cfg, users, tokens, log),
		Jobs:     handler.NewJobHandler(jobs, bids, log),
		Account:  handler.NewAccountHandler(users, jobs, bids, ledger, log),
		Payments: handler.NewPaymentHandler(payments, pcfg.PublishableKey, log),
		Ready:    handler.Ready(db, rdb),
	}, router.Middleware{
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb, log),
		Cache:     middleware.NewRedisCache(config.LoadCacheConfig(), rdb, log),
	}, cfg.JWTSecret, middleware.RequestLogger(log))
	e.HidePort = true

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env), zap.String("db", cfg.DBDriver))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
