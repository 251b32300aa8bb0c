package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentryecho "github.com/getsentry/sentry-go/echo"
	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/missfitcoaching/payments-api/config"
	"github.com/missfitcoaching/payments-api/pkg/api/handlers"
	"github.com/missfitcoaching/payments-api/pkg/billing"
	"github.com/missfitcoaching/payments-api/pkg/cache"
	"github.com/missfitcoaching/payments-api/pkg/captcha"
	"github.com/missfitcoaching/payments-api/pkg/checkout"
	"github.com/missfitcoaching/payments-api/pkg/email"
	"github.com/missfitcoaching/payments-api/pkg/logger"
	"github.com/missfitcoaching/payments-api/pkg/metrics"
	custommw "github.com/missfitcoaching/payments-api/pkg/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	// Load .env for local development; real deployments set env directly
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.New(cfg.LogLevel)
	log.Info("configuration loaded", "environment", cfg.APIEnvironment)

	if cfg.StripeSecretKey == "" {
		log.Warn("STRIPE_SECRET_KEY not set; checkout and webhook requests will fail closed")
	}

	// Sentry for error tracking (optional)
	sentryEnabled := false
	if cfg.SentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.SentryDSN,
			Environment:      cfg.SentryEnvironment,
			AttachStacktrace: true,
		})
		if err != nil {
			log.Warn("failed to initialize sentry", "error", err)
		} else {
			sentryEnabled = true
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Rate-limit counter store: Redis when configured, in-memory otherwise.
	// The fixed window survives restarts only with Redis.
	var counterStore custommw.CounterStore = custommw.NewMemoryCounterStore()
	if cfg.RedisURL != "" {
		redisClient, err := cache.NewClient(cfg.RedisURL)
		if err != nil {
			log.Warn("redis unavailable, using in-memory rate-limit counters", "error", err)
		} else {
			defer redisClient.Close()
			counterStore = redisClient
			log.Info("redis connected")
		}
	}

	m := metrics.New()

	emailService := email.NewService(cfg.EmailFrom, cfg.EmailFromName, cfg.SendGridAPIKey)

	webhookService := billing.NewWebhookService(
		cfg.StripeSecretKey,
		cfg.StripeWebhookSecret,
		cfg.SiteBaseURL,
		billing.NewEmailServiceAdapter(emailService),
		log,
	)
	webhookService.SetMetrics(m)

	checkoutService := checkout.NewService(
		checkout.NewStripeCreator(cfg.StripeSecretKey, cfg.OutboundTimeout),
		log,
	)

	var verifier captcha.Verifier
	if cfg.CaptchaEnabled {
		verifier = captcha.NewTurnstile(cfg.TurnstileSecretKey, cfg.OutboundTimeout)
		log.Info("captcha verification enabled")
	}

	paymentHandler := handlers.NewPaymentHandler(checkoutService, verifier, cfg.CaptchaEnabled, log)
	paymentHandler.SetMetrics(m)
	webhookHandler := handlers.NewWebhookHandler(webhookService)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(echomw.Recover())
	if sentryEnabled {
		e.Use(sentryecho.New(sentryecho.Options{Repanic: true}))
	}
	e.Use(custommw.SecurityHeaders(custommw.SecurityHeadersConfig{}))
	e.Use(custommw.NewRateLimiter(cfg.GlobalRateLimitPerMinute, cfg.GlobalRateLimitBurst).Middleware())
	e.Use(m.Middleware())

	// Payment gate chain: bot heuristic, origin allow-list (answers
	// preflights), then the fixed-window limiter on POST only
	botFilter := custommw.BotFilter(custommw.BotFilterConfig{Patterns: cfg.BotPatterns})
	originCheck := custommw.OriginCheck(custommw.OriginConfig{AllowedOrigins: cfg.AllowedOrigins})

	postGates := []echo.MiddlewareFunc{botFilter, originCheck}
	if cfg.RateLimitEnabled {
		postGates = append(postGates, custommw.PaymentRateLimit(custommw.PaymentLimiterConfig{
			Store:   counterStore,
			Limit:   cfg.RateLimitRequests,
			Window:  cfg.RateLimitWindow,
			Logger:  log,
			Metrics: m,
		}))
	}

	e.POST("/payment", paymentHandler.CreateSession, postGates...)
	e.OPTIONS("/payment", paymentHandler.Preflight, botFilter, originCheck)

	// Stripe delivers webhooks server-to-server; no browser gates apply
	e.POST("/webhook", webhookHandler.Handle)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Start server with graceful shutdown
	go func() {
		addr := cfg.APIHost + ":" + cfg.APIPort
		log.Info("starting payments API", "addr", addr)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
