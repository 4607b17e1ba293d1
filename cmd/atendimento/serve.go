package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/atendimentobr/atendimento-api/internal/config"
	"github.com/atendimentobr/atendimento-api/internal/domain"
	"github.com/atendimentobr/atendimento-api/internal/handler"
	"github.com/atendimentobr/atendimento-api/internal/infra/brdid"
	"github.com/atendimentobr/atendimento-api/internal/infra/cache"
	"github.com/atendimentobr/atendimento-api/internal/infra/kv"
	"github.com/atendimentobr/atendimento-api/internal/infra/mail"
	"github.com/atendimentobr/atendimento-api/internal/infra/memstore"
	"github.com/atendimentobr/atendimento-api/internal/infra/observability"
	"github.com/atendimentobr/atendimento-api/internal/infra/payments"
	"github.com/atendimentobr/atendimento-api/internal/infra/postgres"
	"github.com/atendimentobr/atendimento-api/internal/infra/resilience"
	"github.com/atendimentobr/atendimento-api/internal/plans"
	"github.com/atendimentobr/atendimento-api/internal/port"
	"github.com/atendimentobr/atendimento-api/internal/service"
	"github.com/atendimentobr/atendimento-api/internal/validation"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// Stripe retries a failed delivery for up to three days.
const webhookDedupeTTL = 72 * time.Hour

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	// --- Load .env file (for local development) ---
	if err := config.LoadDotEnv(".env"); err != nil {
		return fmt.Errorf("load .env: %w", err)
	}

	// --- Config ---
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("store_driver", cfg.StoreDriver),
		zap.String("billing_mode", string(cfg.BillingMode)),
		zap.Bool("numbering_enabled", cfg.BRDIDBaseURL != ""),
		zap.Bool("smtp_enabled", cfg.SMTPHost != ""),
		zap.Bool("redis_enabled", cfg.RedisURL != ""),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("cache_ttl", cfg.CacheTTL),
		zap.Duration("jwt_ttl", cfg.JWTTTL),
	)

	// --- Tracing ---
	shutdownTracer, err := observability.InitTracer(ctx, cfg.OTLPEndpoint, "atendimento-api")
	if err != nil {
		return fmt.Errorf("init tracer: %w", err)
	}
	defer shutdownTracer(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Store ---
	var store port.Store
	switch cfg.StoreDriver {
	case "memory":
		logger.Warn("using in-memory store, data is lost on restart")
		store = memstore.New()
	default:
		db, err := postgres.Open(cfg.DatabaseURL, logger)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		store = postgres.NewStore(db)
	}
	checks := []handler.HealthCheck{{Name: cfg.StoreDriver, Ping: store.Ping}}

	// --- Webhook de-duplication ---
	var dedupe port.EventDeduper
	if cfg.RedisURL != "" {
		rdb, err := kv.NewClient(ctx, cfg.RedisURL, logger)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		d := kv.NewDeduper(rdb, "atendimento:webhook:", webhookDedupeTTL)
		dedupe = d
		checks = append(checks, handler.HealthCheck{Name: "redis", Ping: d.Ping})
	} else {
		d := cache.NewDeduper(webhookDedupeTTL)
		defer d.Close()
		dedupe = d
	}

	// --- Mail ---
	var mailer port.Mailer
	if cfg.SMTPHost != "" {
		mailer = mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.SMTPFrom,
		}, logger)
	} else {
		logger.Warn("SMTP not configured, e-mails are logged")
		mailer = mail.NewLogMailer(logger)
	}

	// --- Billing provider ---
	var billingProvider port.BillingProvider
	switch cfg.BillingMode {
	case domain.BillingLive:
		billingProvider = payments.NewStripeProvider(cfg.StripeSecretKey, cfg.StripeWebhookSecret, metrics, logger)
	case domain.BillingMock:
		billingProvider = payments.NewMockProvider(cfg.StripeWebhookSecret, cfg.AppURL, logger)
	default:
		logger.Warn("billing disabled, payment routes answer 503")
	}

	// --- Numbering provider ---
	var numberingProvider port.NumberingProvider
	if cfg.BRDIDBaseURL != "" {
		httpClient := &http.Client{Timeout: cfg.HTTPTimeout}
		cb := resilience.NewCircuitBreaker("brdid", logger)
		numberingProvider = brdid.NewClient(httpClient, cfg.BRDIDBaseURL, cfg.BRDIDToken, cb, resilience.Config{
			MaxRetries:     cfg.MaxRetries,
			InitialBackoff: cfg.InitialBackoff,
			MaxConcurrency: cfg.MaxConcurrency,
		}, metrics, logger)
	} else {
		logger.Warn("BRDID_BASE_URL not set, numbering routes answer 503")
	}

	localities := cache.New[[]domain.Locality](cfg.CacheTTL)
	defer localities.Close()

	catalog := plans.Default()

	// --- Services ---
	tokens := service.NewTokenIssuer(cfg.JWTSecret, cfg.JWTTTL)
	companies := service.NewCompanyService(store, store, logger)
	numbering := service.NewNumberingService(numberingProvider, billingProvider, store, localities, metrics, logger)
	billing := service.NewBillingService(service.BillingConfig{
		Mode:      cfg.BillingMode,
		Provider:  billingProvider,
		Catalog:   catalog,
		Store:     store,
		Companies: companies,
		Dedupe:    dedupe,
		AppURL:    cfg.AppURL,
		Metrics:   metrics,
		Logger:    logger,
	})

	deps := handler.Deps{
		Auth:       service.NewAuthService(store, tokens, mailer, logger),
		Companies:  companies,
		Profile:    service.NewProfileService(store, logger),
		Onboarding: service.NewOnboardingService(store, companies, numbering, cfg.BillingMode, metrics, logger),
		Billing:    billing,
		Numbering:  numbering,
		Dashboard:  service.NewDashboardService(store, billing, logger),
		Validator:  validation.New(),
		Checks:     checks,
	}

	// --- Router ---
	router := handler.NewRouter(deps, metrics, logger)

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
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

	logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced shutdown: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
