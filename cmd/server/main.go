package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"checkout-service/internal/config"
	api "checkout-service/internal/controllers/http"
	"checkout-service/internal/infra"
	"checkout-service/internal/infra/cache"
	"checkout-service/internal/infra/catalog"
	"checkout-service/internal/infra/database"
	"checkout-service/internal/infra/kafka"
	"checkout-service/internal/infra/payment"
	"checkout-service/internal/infra/rabbitmq"
	"checkout-service/internal/logging"
	"checkout-service/internal/metrics"
	"checkout-service/internal/pricing"
	"checkout-service/internal/repository/gormstore"
	"checkout-service/internal/services"
	"checkout-service/internal/webhook"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg, err := config.FromEnv()
	logging.Setup(cfg.LogJSON, cfg.LogLevel)
	if err != nil {
		fatal("config: parse", err)
	}
	if err := cfg.Validate(); err != nil {
		fatal("config: validate", err)
	}

	db, err := database.Open(cfg.Database)
	if err != nil {
		fatal("db: connect", err)
	}
	ledger := gormstore.NewOrderStore(db)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.NewServerMetrics(reg)

	publisher, err := newPublisher(cfg)
	if err != nil {
		fatal("broker: connect", err)
	}
	defer publisher.Close()
	notifier := services.NewEmailNotifier(publisher)

	var locker *cache.OrderLock
	var catalogClient catalog.ClientInterface
	if cfg.CatalogURL != "" {
		catalogClient = catalog.NewClient(cfg.CatalogURL, cfg.CatalogTimeout)
	}
	if cfg.RedisAddr != "" {
		rdb := cache.NewRedisClient(cfg.RedisAddr)
		defer rdb.Close()
		ledger = cache.NewCachedLedger(ledger, rdb, cfg.CacheTTL)
		locker = cache.NewOrderLock(rdb, 10*time.Second)
		if catalogClient != nil {
			cached := catalog.NewCachedClient(catalogClient, rdb, cfg.CacheTTL)
			catalogClient = cached
			if len(cfg.CatalogWarmupIDs) > 0 {
				go func() {
					time.Sleep(5 * time.Second)
					cached.Warmup(context.Background(), cfg.CatalogWarmupIDs)
				}()
			}
		}
	}

	gateway := payment.NewClient(cfg.Gateway.BaseURL, cfg.Gateway.SecretKey, cfg.Gateway.Timeout)
	sessions := services.NewPaymentSessionService(gateway, cfg, m)
	if cfg.Gateway.Provider == config.ProviderStripe {
		sessions.SetStripeClient(payment.NewStripeClient(cfg.Stripe.SecretKey, cfg.Stripe.APIURL, cfg.Gateway.Timeout))
	}

	checkout := services.NewCheckoutService(ledger, pricing.NewCalculator(cfg.Pricing), sessions, publisher, cfg, m)
	if catalogClient != nil {
		checkout.SetCatalogClient(catalogClient)
	}

	reconciler := services.NewReconciler(ledger, webhook.NewVerifier(cfg.Webhook.SecretHash, cfg.Webhook.SigningSecret),
		gateway, notifier, publisher, cfg.AppURL, cfg.Gateway.Timeout, m)
	if locker != nil {
		reconciler.SetLocker(locker)
	}
	if cfg.Stripe.WebhookSecret != "" {
		reconciler.SetStripeVerifier(webhook.NewStripeVerifier(cfg.Stripe.WebhookSecret))
	}

	orders := services.NewOrderService(ledger, notifier)

	limiter := api.NewIPRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		t := time.NewTicker(5 * time.Minute)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				limiter.Cleanup(30 * time.Minute)
			}
		}
	}()

	handler := api.NewHandler(checkout, reconciler, orders, api.NewAuthenticator(cfg.JWTSecret), limiter)

	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), api.Metrics(m))
	handler.RegisterRoutes(r)
	r.GET("/metrics", gin.WrapH(metrics.Handler(reg)))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("starting checkout service", "port", cfg.Port, "broker", cfg.EventBroker, "gateway", cfg.Gateway.Provider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server run", err)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}

func newPublisher(cfg config.Config) (infra.Publisher, error) {
	switch cfg.EventBroker {
	case "rabbitmq":
		return rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitExchange)
	case "kafka":
		return kafka.NewPublisher(cfg.KafkaBrokers)
	default:
		return infra.NopPublisher{}, nil
	}
}

func fatal(msg string, err error) {
	slog.Error(msg, "error", err)
	os.Exit(1)
}
