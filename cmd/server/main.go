package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dukerupert/gyan/internal"
	"github.com/dukerupert/gyan/internal/billing"
	"github.com/dukerupert/gyan/internal/checkout"
	"github.com/dukerupert/gyan/internal/cookie"
	"github.com/dukerupert/gyan/internal/domain"
	"github.com/dukerupert/gyan/internal/email"
	"github.com/dukerupert/gyan/internal/handler/api"
	"github.com/dukerupert/gyan/internal/kvstore"
	"github.com/dukerupert/gyan/internal/middleware"
	"github.com/dukerupert/gyan/internal/notify"
	"github.com/dukerupert/gyan/internal/pricing"
	"github.com/dukerupert/gyan/internal/promotion"
	"github.com/dukerupert/gyan/internal/router"
	"github.com/dukerupert/gyan/internal/routes"
	"github.com/dukerupert/gyan/internal/tax"
	"github.com/dukerupert/gyan/internal/telemetry"
	"github.com/dukerupert/gyan/internal/worker"
)

const shutdownTimeout = 15 * time.Second

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	// Error tracking
	flushSentry, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Enabled:          cfg.Sentry.Enabled,
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.Sentry.Release,
		SampleRate:       cfg.Sentry.SampleRate,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		Debug:            cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	defer flushSentry()

	// Key-value store for carts, orders and analytics
	logger.Info("Opening store...", "provider", cfg.Store.Provider)
	store, err := kvstore.New(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("store initialization failed: %w", err)
	}
	defer func() {
		if err := kvstore.Close(store); err != nil {
			logger.Warn("failed to close store", "error", err)
		}
	}()

	// Payment gateway
	gateway, err := newGateway(cfg.Payment)
	if err != nil {
		return fmt.Errorf("payment gateway initialization failed: %w", err)
	}
	logger.Info("Payment gateway ready", "provider", cfg.Payment.Provider)

	// Notifications: per-request recorder for API responses, the log, and
	// optionally NATS for downstream consumers.
	notifiers := notify.Multi{notify.ContextNotifier{}, notify.NewLogNotifier(logger)}
	if cfg.NATS.Enabled {
		natsNotifier, conn, err := notify.ConnectNATS(cfg.NATS.URL, cfg.NATS.Subject, logger)
		if err != nil {
			return fmt.Errorf("nats connection failed: %w", err)
		}
		defer conn.Drain()
		notifiers = append(notifiers, natsNotifier)
		logger.Info("Publishing notifications to NATS", "url", cfg.NATS.URL)
	}

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	checkoutMetrics := telemetry.NewCheckoutMetrics("gyan", registry)
	httpMetrics := middleware.NewMetrics("gyan", registry)

	// Confirmation email, delivered by a background worker
	var mailer checkout.ConfirmationMailer
	mailDone := make(chan struct{})
	if cfg.Email.Enabled {
		sender := email.NewSMTPSender(&email.SMTPConfig{
			Host:     cfg.Email.Host,
			Port:     int(cfg.Email.Port),
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			FromName: cfg.Email.FromName,
		}, logger)
		svc, err := email.NewService(sender, cfg.Email.From, cfg.Email.FromName, logger)
		if err != nil {
			return fmt.Errorf("email initialization failed: %w", err)
		}
		mailWorker := worker.NewWorker(svc, worker.Config{}, logger)
		go func() {
			defer close(mailDone)
			_ = mailWorker.Start(ctx)
		}()
		mailer = mailWorker
		logger.Info("Order confirmation email enabled", "host", cfg.Email.Host)
	} else {
		close(mailDone)
	}

	// Checkout sessions
	manager := checkout.NewManager(checkout.ManagerConfig{
		Store:     store,
		Gateway:   gateway,
		Catalog:   promotion.NewDefaultCatalog(),
		Pricer:    pricing.NewCalculator(tax.NewPercentageCalculator(cfg.Tax.Rate, cfg.Tax.Name)),
		Notifier:  notifiers,
		Navigator: notify.ContextNavigator{},
		Metrics:   checkoutMetrics,
		Mailer:    mailer,
		Currency:  cfg.Payment.StripeCurrency,
		Logger:    logger,
	})
	go manager.RunPruner(ctx, time.Minute, cfg.HTTP.SessionIdle)

	// Rate limiting for payment and promo code attempts
	limiter := middleware.NewRateLimiter(middleware.StrictRateLimiterConfig())
	defer limiter.Stop()

	// Routes. Timeout runs the rest of the chain on its own goroutine, so
	// Recovery must come after it to see handler panics.
	r := router.New(
		middleware.RequestID,
		middleware.WithClientIP(),
		httpMetrics.Middleware,
		router.Logger(logger),
		middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig()),
		middleware.MaxBodySize(middleware.APIMaxBodySize),
		middleware.Timeout(cfg.HTTP.RequestTimeout),
		router.Recovery(logger),
	)

	routes.RegisterOpsRoutes(r, routes.OpsDeps{
		HealthHandler:  api.NewHealthHandler(store),
		MetricsHandler: middleware.Handler(registry),
	})

	routes.RegisterAPIRoutes(r, routes.APIDeps{
		CartHandler:      api.NewCartHandler(manager, logger),
		CheckoutHandler:  api.NewCheckoutHandler(manager, logger),
		OrderHandler:     api.NewOrderHandler(manager, logger),
		PromotionHandler: api.NewPromotionHandler(manager.Catalog()),
		Visitor: chain(
			middleware.Visitor(cookie.NewConfig(cfg.HTTP.CookieDomain, cfg.HTTP.SecureCookies)),
			telemetry.SentryMiddleware(domain.VisitorFromContext),
			middleware.WithRequestLogger(logger),
		),
		Sensitive: limiter.Middleware,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router.CORS(cfg.HTTP.AllowedOrigins)(r),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	select {
	case <-mailDone:
	case <-shutdownCtx.Done():
		logger.Warn("mail worker did not drain before shutdown deadline")
	}
	return nil
}

func newGateway(cfg internal.PaymentConfig) (billing.Gateway, error) {
	switch cfg.Provider {
	case "stripe":
		return billing.NewStripeGateway(billing.StripeConfig{
			APIKey:   cfg.StripeKey,
			Currency: cfg.StripeCurrency,
		})
	case "simulated", "":
		return billing.NewSimulatedGateway(
			billing.WithSuccessRate(cfg.SuccessRate),
			billing.WithDelay(cfg.Delay),
		), nil
	default:
		return nil, fmt.Errorf("unknown payment provider %q", cfg.Provider)
	}
}

// chain composes middleware so that the first one runs outermost.
func chain(mw ...func(http.Handler) http.Handler) router.Middleware {
	return func(next http.Handler) http.Handler {
		for i := len(mw) - 1; i >= 0; i-- {
			next = mw[i](next)
		}
		return next
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
