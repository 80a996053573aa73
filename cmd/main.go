package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"paygate/internal/bootstrap"
	"paygate/internal/config"
	cronpkg "paygate/internal/cron"
	"paygate/internal/gateway"
	"paygate/internal/handler/api"
	"paygate/internal/middleware"
	"paygate/internal/notify"
	"paygate/internal/payment"
	"paygate/internal/payment/stripe"
	"paygate/internal/pkg/httpclient"
	"paygate/internal/repository"
	"paygate/internal/router"
	"paygate/internal/ui"
)

func main() {
	// --- Logger ---
	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	// --- Config ---
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	if hasArg("--bootstrap-db") {
		if err := runDBBootstrap(cfg, logger); err != nil {
			logger.Fatal("Database bootstrap failed", zap.Error(err))
		}
		logger.Info("Database bootstrap completed")
		return
	}

	// --- Payment records (optional) ---
	var repo *repository.PaymentRepository
	if cfg.Database.Name != "" {
		db, err := config.NewDatabase(&cfg.Database, logger)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		if err := bootstrap.Migrate(db); err != nil {
			logger.Fatal("Failed to bootstrap database schema", zap.Error(err))
		}
		repo = repository.NewPaymentRepository(db)
	}

	// --- Operator reports (optional) ---
	var reporter *notify.Telegram
	if cfg.Telegram.Token != "" {
		reporter, err = notify.NewTelegram(cfg.Telegram.Token, cfg.Telegram.ReportChatID, "", logger.Named("telegram"))
		if err != nil {
			logger.Warn("Telegram reports disabled", zap.Error(err))
			reporter = nil
		}
	}

	// --- Gateway ---
	doc := ui.NewDocument(cfg.Payment.ContainerID)
	registry := gateway.NewRegistry(gateway.Deps{
		Logger:           logger,
		Document:         doc,
		HTTPClient:       httpclient.New().WithRetries(0),
		StripeBackendURL: intentBackendURL(cfg),
	})

	gw, err := registry.Create(cfg.Payment.Gateway)
	if err != nil {
		logger.Fatal("Unknown payment gateway",
			zap.String("gateway", cfg.Payment.Gateway),
			zap.Strings("registered", registry.Registered()),
			zap.Error(err))
	}
	if repo != nil {
		gw = payment.NewRecorder(gw, repo, logger.Named("recorder"))
	}

	gwCfg := gateway.Config(cfg.Payment, cfg.Payment.Gateway)
	onEvent := eventLogger(logger, reporter)
	gwCfg.OnSuccess = onEvent
	gwCfg.OnError = onEvent
	gwCfg.OnCancel = onEvent

	initCtx, cancelInit := context.WithTimeout(context.Background(), 30*time.Second)
	err = gw.Initialize(initCtx, gwCfg)
	cancelInit()
	if err != nil {
		logger.Fatal("Failed to initialize payment gateway", zap.String("gateway", gw.Name()), zap.Error(err))
	}
	logger.Info("Payment gateway ready", zap.String("gateway", gw.Name()))

	// --- Webhook Deduper (Redis with in-memory fallback) ---
	deduper, dedupeErr := middleware.NewEventDeduper(
		cfg.Redis.Addr,
		cfg.Redis.Pass,
		cfg.Redis.DB,
		24*time.Hour,
	)
	if dedupeErr != nil {
		logger.Warn("Redis unavailable for webhook dedup, using in-memory fallback", zap.Error(dedupeErr))
	}

	// --- Echo ---
	e := echo.New()
	e.HideBanner = true

	opts := router.Options{
		Logger:   logger,
		APIKey:   cfg.API.Key,
		Gateway:  gw,
		Document: doc,
		Deduper:  deduper,
	}
	if cfg.Payment.Stripe.SecretKey != "" {
		opts.Intents = stripe.NewIntentServer(stripe.NewAPI(cfg.Payment.Stripe.SecretKey))
	}
	if repo != nil {
		opts.Records = api.RecordLister(repo)
	}
	router.Setup(e, opts)

	// --- Cron Scheduler ---
	var scheduler *cronpkg.Scheduler
	if repo != nil {
		var rep cronpkg.Reporter
		if reporter != nil {
			rep = reporter
		}
		scheduler = cronpkg.New(cfg.Reconcile, repo, gw, rep, logger.Named("cron"))
		if err := scheduler.Start(); err != nil {
			logger.Fatal("Failed to start scheduler", zap.Error(err))
		}
	}

	// --- Start Server ---
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	go func() {
		logger.Info("Starting payment server", zap.String("addr", addr))
		if err := e.Start(addr); err != nil {
			logger.Info("Server stopped", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	// Stop cron
	if scheduler != nil {
		<-scheduler.Stop().Done()
	}

	// Stop HTTP server
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}

	gw.Destroy(shutdownCtx)
	logger.Info("Server exited")
}

// intentBackendURL resolves STRIPE_INTENT_ENDPOINT. A bare path points at
// this server's own intent routes.
func intentBackendURL(cfg *config.Config) string {
	endpoint := cfg.Payment.Stripe.IntentEndpoint
	if strings.HasPrefix(endpoint, "/") {
		return fmt.Sprintf("http://127.0.0.1:%d%s", cfg.Server.Port, endpoint)
	}
	return endpoint
}

func eventLogger(logger *zap.Logger, reporter *notify.Telegram) payment.EventHandler {
	return func(ev payment.Event) {
		logger.Info("Payment event",
			zap.String("kind", string(ev.Kind)),
			zap.String("gateway", ev.Gateway),
			zap.String("transaction_id", ev.TransactionID),
			zap.String("status", ev.Status),
			zap.String("error", ev.Error))
		if reporter != nil {
			reporter.Notify(ev)
		}
	}
}

func hasArg(name string) bool {
	for _, arg := range os.Args[1:] {
		if arg == name {
			return true
		}
	}
	return false
}

func runDBBootstrap(cfg *config.Config, logger *zap.Logger) error {
	if cfg.Database.Name == "" {
		return fmt.Errorf("DB_NAME is not set")
	}
	db, err := config.NewDatabase(&cfg.Database, logger)
	if err != nil {
		return err
	}
	if err := bootstrap.Migrate(db); err != nil {
		return err
	}
	logger.Info("Schema migration completed")
	return nil
}
