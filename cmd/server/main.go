package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DukeRupert/talentgate/internal"
	"github.com/DukeRupert/talentgate/internal/ai"
	"github.com/DukeRupert/talentgate/internal/ai/anthropic"
	"github.com/DukeRupert/talentgate/internal/ai/mock"
	"github.com/DukeRupert/talentgate/internal/ai/openai"
	"github.com/DukeRupert/talentgate/internal/billing"
	"github.com/DukeRupert/talentgate/internal/csrf"
	"github.com/DukeRupert/talentgate/internal/domain"
	"github.com/DukeRupert/talentgate/internal/handler"
	"github.com/DukeRupert/talentgate/internal/invoice"
	"github.com/DukeRupert/talentgate/internal/metrics"
	"github.com/DukeRupert/talentgate/internal/middleware"
	"github.com/DukeRupert/talentgate/internal/repository"
	"github.com/DukeRupert/talentgate/internal/service"
	"github.com/DukeRupert/talentgate/internal/session"
	"github.com/DukeRupert/talentgate/internal/storage"
	"github.com/DukeRupert/talentgate/internal/worker"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database connection
	db, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	// Run migrations
	if err := internal.RunMigrations(ctx, db); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	store := repository.NewStore(db)

	// Initialize storage (invoice cache)
	var fileStorage storage.Storage
	switch cfg.StorageProvider {
	case "r2":
		fileStorage, err = storage.NewR2Storage(storage.R2Config{
			AccountID:       cfg.R2AccountID,
			AccessKeyID:     cfg.R2AccessKeyID,
			SecretAccessKey: cfg.R2SecretAccessKey,
			BucketName:      cfg.R2BucketName,
		}, logger)
	default:
		fileStorage, err = storage.NewLocalStorage(storage.LocalConfig{
			BasePath: cfg.LocalStoragePath,
		}, logger)
	}
	if err != nil {
		return fmt.Errorf("storage initialization failed: %w", err)
	}
	logger.Info("Storage initialized", "provider", cfg.StorageProvider)

	// Initialize payment gateway
	gateway, verifier := newGateway(cfg)
	logger.Info("Payment gateway initialized", "provider", gateway.Name(), "currency", cfg.GatewayCurrency)

	// Initialize AI provider
	aiProvider, err := newAIProvider(cfg, logger)
	if err != nil {
		return fmt.Errorf("AI provider initialization failed: %w", err)
	}
	logger.Info("AI provider initialized", "provider", aiProvider.Name())

	// ==========================================================================
	// Services
	// ==========================================================================

	userService := service.NewUserService(store, logger, service.UserServiceConfig{
		SessionDuration: cfg.SessionDuration,
		AdminEmails:     cfg.AdminEmails,
	})
	sessionValues := service.NewSessionValues(store, logger)
	notificationService := service.NewNotificationService(store, logger)
	entitlementService := service.NewEntitlementService(store, logger)
	expiryService := service.NewExpiryService(store, notificationService, logger)
	paymentService := service.NewPaymentService(store, gateway, sessionValues, notificationService, domain.PlanCatalog{
		Currency: cfg.GatewayCurrency,
		Prices: map[domain.Plan]int64{
			domain.PlanPro:     cfg.PricePro,
			domain.PlanProPlus: cfg.PriceProPlus,
		},
		Duration: cfg.PlanDuration,
	}, logger)
	invoiceService := service.NewInvoiceService(store, invoice.NewPDFRenderer(cfg.InvoiceIssuer), fileStorage, logger)

	features := handler.FeatureServices{
		Jobs:          service.NewJobService(store, entitlementService, logger),
		Trainings:     service.NewTrainingService(store, entitlementService, notificationService, cfg.GatewayCurrency, logger),
		Consultations: service.NewConsultationService(store, entitlementService, notificationService, logger),
		Assistant:     service.NewAssistantService(store, entitlementService, aiProvider, logger),
		Resumes:       service.NewResumeService(store, entitlementService, aiProvider, logger),
	}

	// ==========================================================================
	// Middleware
	// ==========================================================================

	isSecure := cfg.IsSecure()
	authMw := middleware.NewAuthMiddleware(userService, logger, isSecure)
	subscriptionMw := middleware.NewSubscriptionMiddleware(expiryService, sessionValues, logger)
	requestLogger := middleware.NewRequestLoggingMiddleware(logger)
	securityHeaders := middleware.NewSecurityHeadersMiddleware(isSecure)
	metricsAuth := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword, logger)
	csrfProtector := csrf.NewProtector(session.CookieName, []string{"/webhooks/"}, isSecure, logger)
	rateLimiters := middleware.NewEndpointRateLimiters(logger)
	defer rateLimiters.Stop()

	// The sweep runs before any handler consults the gate.
	protect := middleware.Stack(authMw.WithUser, subscriptionMw.SweepExpired, authMw.RequireUser, middleware.Capture)
	requireStaff := middleware.Stack(authMw.WithUser, authMw.RequireUser, authMw.RequireStaff, middleware.Capture)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Metrics endpoint (protected with basic auth if configured)
	mux.Handle("GET /metrics", metricsAuth.Handler(promhttp.Handler()))

	handler.NewAuthHandler(userService, logger, isSecure).
		RegisterRoutes(mux, rateLimiters.Register.Limit, rateLimiters.Login.Limit)
	handler.NewAccountHandler(entitlementService, notificationService, sessionValues, logger).
		RegisterRoutes(mux, protect)
	handler.NewBillingHandler(paymentService, invoiceService, sessionValues, "/account", logger).
		RegisterRoutes(mux, protect, rateLimiters.Verify.Limit)
	handler.NewFeatureHandler(features, logger).
		RegisterRoutes(mux, protect)
	handler.NewAdminHandler(userService, entitlementService, paymentService, logger).
		RegisterRoutes(mux, requireStaff)

	// Webhook routes are public, authenticated by signature
	var eventVerifier handler.EventVerifier
	if verifier != nil {
		eventVerifier = verifier
	}
	handler.NewWebhookHandler(eventVerifier, paymentService, logger).RegisterRoutes(mux)

	// Global middleware, outermost first
	globalStack := middleware.Stack(
		metrics.Middleware,
		requestLogger.Handler,
		securityHeaders.Handler,
		csrfProtector.Protect,
	)

	// ==========================================================================
	// Background maintenance
	// ==========================================================================

	maintenance, err := worker.New(worker.DefaultConfig(), logger)
	if err != nil {
		return fmt.Errorf("worker initialization failed: %w", err)
	}
	maintenance.Register(worker.NewPlanSweepTask(expiryService, cfg.SweepInterval, cfg.SweepBatchSize, logger))
	maintenance.Register(worker.NewSessionCleanupTask(userService, time.Hour))

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()
	maintenance.Start(workerCtx)

	// ==========================================================================
	// Start server
	// ==========================================================================

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           globalStack(mux),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      2 * time.Minute,
	}

	// Channel to listen for interrupt signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Server failed", "error", err)
		}
	}()

	// Wait for interrupt signal
	<-sigChan
	logger.Info("Shutdown signal received, initiating graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", "error", err)
	}

	cancelWorker()
	maintenance.Stop()

	logger.Info("Graceful shutdown complete")
	return nil
}

// newGateway builds the configured payment gateway. The second result is
// non-nil only for Stripe, whose webhook needs signature verification.
func newGateway(cfg *internal.Config) (billing.Gateway, *billing.StripeGateway) {
	switch cfg.GatewayProvider {
	case "razorpay":
		return billing.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret), nil
	case "stripe":
		gw := billing.NewStripeGateway(
			cfg.StripeSecretKey,
			cfg.StripeWebhookSecret,
			cfg.BaseURL+"/billing/stripe/return",
			cfg.BaseURL+"/account",
		)
		return gw, gw
	default:
		return billing.NewMockGateway(cfg.MockGatewaySecret), nil
	}
}

// newAIProvider builds the configured completion provider.
func newAIProvider(cfg *internal.Config, logger *slog.Logger) (ai.Provider, error) {
	providerCfg := ai.ProviderConfig{
		MaxRetries:     cfg.AIMaxRetries,
		RetryBaseDelay: cfg.AIRetryBaseDelay,
		RequestTimeout: cfg.AIRequestTimeout,
	}

	switch cfg.AIProvider {
	case "openai":
		return openai.New(openai.Config{
			APIKey:         cfg.OpenAIAPIKey,
			BaseURL:        cfg.OpenAIBaseURL,
			Model:          cfg.AIModel,
			ProviderConfig: providerCfg,
		}, logger)
	case "anthropic":
		return anthropic.New(anthropic.Config{
			APIKey:         cfg.AnthropicAPIKey,
			Model:          cfg.AIModel,
			ProviderConfig: providerCfg,
		}, logger)
	default:
		return mock.New(logger), nil
	}
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
