package internal

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env         string
	Port        int
	LogLevel    string
	DatabaseUrl string

	// Application base URL (payment return links)
	BaseURL string

	// Session lifetime
	SessionDuration time.Duration

	// Payment gateway configuration
	GatewayProvider   string // "mock", "razorpay" or "stripe"
	GatewayCurrency   string
	MockGatewaySecret string

	RazorpayKeyID     string
	RazorpayKeySecret string

	StripeSecretKey     string // Stripe API secret key (sk_test_... or sk_live_...)
	StripeWebhookSecret string // Stripe webhook signing secret (whsec_...)

	// Plan catalog, prices in minor units
	PricePro     int64
	PriceProPlus int64
	PlanDuration time.Duration

	// AI Provider Configuration
	AIProvider       string // "openai", "anthropic" or "mock"
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	AnthropicAPIKey  string
	AIModel          string
	AIMaxRetries     int
	AIRetryBaseDelay time.Duration
	AIRequestTimeout time.Duration

	// Storage Configuration (invoice cache)
	StorageProvider string // "local" or "r2"

	// Local Storage (development)
	LocalStoragePath string

	// R2 Storage (production)
	R2AccountID       string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2BucketName      string

	// Invoice issuer name printed on documents
	InvoiceIssuer string

	// Background maintenance
	SweepInterval  time.Duration
	SweepBatchSize int

	// Admin access control
	AdminEmails []string // Registered as staff accounts

	// Metrics endpoint authentication
	// If both are empty, the /metrics endpoint will be unprotected (not recommended)
	MetricsUsername string
	MetricsPassword string
}

// IsSecure reports whether cookies and HSTS should assume HTTPS.
func (c *Config) IsSecure() bool {
	return c.Env != "development"
}

func NewConfig() (*Config, error) {
	// Load .env file if it exists (ignored in production)
	_ = godotenv.Load()

	cfg := &Config{
		Env:      getEnv("ENV", "development"),
		Port:     getEnvInt("PORT", 8080),
		LogLevel: getEnv("LOG_LEVEL", "debug"),

		BaseURL:         strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/"),
		SessionDuration: getEnvDuration("SESSION_DURATION", 24*time.Hour),

		// Gateway defaults to the offline mock for development
		GatewayProvider:   strings.ToLower(getEnv("GATEWAY_PROVIDER", "mock")),
		GatewayCurrency:   strings.ToUpper(getEnv("GATEWAY_CURRENCY", "INR")),
		MockGatewaySecret: getEnv("MOCK_GATEWAY_SECRET", "mock_secret"),

		RazorpayKeyID:     getEnv("RAZORPAY_KEY_ID", ""),
		RazorpayKeySecret: getEnv("RAZORPAY_KEY_SECRET", ""),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		PricePro:     getEnvInt64("PRICE_PRO", 49900),
		PriceProPlus: getEnvInt64("PRICE_PRO_PLUS", 99900),
		PlanDuration: getEnvDuration("PLAN_DURATION", 30*24*time.Hour),

		// AI provider defaults
		AIProvider:       strings.ToLower(getEnv("AI_PROVIDER", "mock")),
		OpenAIAPIKey:     getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:    getEnv("OPENAI_BASE_URL", ""),
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		AIModel:          getEnv("AI_MODEL", ""),
		AIMaxRetries:     getEnvInt("AI_MAX_RETRIES", 3),
		AIRetryBaseDelay: getEnvDuration("AI_RETRY_BASE_DELAY", 1*time.Second),
		AIRequestTimeout: getEnvDuration("AI_REQUEST_TIMEOUT", 60*time.Second),

		// Storage defaults to local filesystem for development
		StorageProvider:  getEnv("STORAGE_PROVIDER", "local"),
		LocalStoragePath: getEnv("LOCAL_STORAGE_PATH", "./storage"),

		// R2 configuration (production only)
		R2AccountID:       getEnv("R2_ACCOUNT_ID", ""),
		R2AccessKeyID:     getEnv("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: getEnv("R2_SECRET_ACCESS_KEY", ""),
		R2BucketName:      getEnv("R2_BUCKET_NAME", ""),

		InvoiceIssuer: getEnv("INVOICE_ISSUER", "TalentGate"),

		SweepInterval:  getEnvDuration("SWEEP_INTERVAL", 15*time.Minute),
		SweepBatchSize: getEnvInt("SWEEP_BATCH_SIZE", 200),

		// Metrics authentication
		MetricsUsername: getEnv("METRICS_USERNAME", ""),
		MetricsPassword: getEnv("METRICS_PASSWORD", ""),
	}

	// Parse admin emails from comma-separated environment variable
	adminEmailsStr := getEnv("ADMIN_EMAILS", "")
	if adminEmailsStr != "" {
		emails := strings.Split(adminEmailsStr, ",")
		for _, email := range emails {
			trimmed := strings.TrimSpace(strings.ToLower(email))
			if trimmed != "" {
				cfg.AdminEmails = append(cfg.AdminEmails, trimmed)
			}
		}
	}

	// Required
	cfg.DatabaseUrl = os.Getenv("DATABASE_URL")
	if cfg.DatabaseUrl == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate fails fast on provider selections that cannot work.
func (c *Config) validate() error {
	switch c.GatewayProvider {
	case "mock":
		if c.Env == "production" {
			return fmt.Errorf("GATEWAY_PROVIDER 'mock' is not allowed in production")
		}
	case "razorpay":
		if c.RazorpayKeyID == "" || c.RazorpayKeySecret == "" {
			return fmt.Errorf("RAZORPAY_KEY_ID and RAZORPAY_KEY_SECRET are required when GATEWAY_PROVIDER is 'razorpay'")
		}
	case "stripe":
		if c.StripeSecretKey == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY is required when GATEWAY_PROVIDER is 'stripe'")
		}
		if c.StripeWebhookSecret == "" {
			return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when GATEWAY_PROVIDER is 'stripe'")
		}
	default:
		return fmt.Errorf("GATEWAY_PROVIDER must be one of 'mock', 'razorpay' or 'stripe', got: %s", c.GatewayProvider)
	}

	if len(c.GatewayCurrency) != 3 {
		return fmt.Errorf("GATEWAY_CURRENCY must be a 3-letter ISO code, got: %s", c.GatewayCurrency)
	}
	if c.PricePro <= 0 || c.PriceProPlus <= 0 {
		return fmt.Errorf("PRICE_PRO and PRICE_PRO_PLUS must be positive")
	}
	if c.PlanDuration <= 0 {
		return fmt.Errorf("PLAN_DURATION must be positive")
	}

	// Validate storage configuration
	if c.StorageProvider == "r2" {
		if c.R2AccountID == "" {
			return fmt.Errorf("R2_ACCOUNT_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2AccessKeyID == "" {
			return fmt.Errorf("R2_ACCESS_KEY_ID is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2SecretAccessKey == "" {
			return fmt.Errorf("R2_SECRET_ACCESS_KEY is required when STORAGE_PROVIDER is 'r2'")
		}
		if c.R2BucketName == "" {
			return fmt.Errorf("R2_BUCKET_NAME is required when STORAGE_PROVIDER is 'r2'")
		}
	} else if c.StorageProvider != "local" {
		return fmt.Errorf("STORAGE_PROVIDER must be either 'local' or 'r2', got: %s", c.StorageProvider)
	}

	// Validate AI provider configuration
	switch c.AIProvider {
	case "mock":
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is 'openai'")
		}
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when AI_PROVIDER is 'anthropic'")
		}
	default:
		return fmt.Errorf("AI_PROVIDER must be one of 'openai', 'anthropic' or 'mock', got: %s", c.AIProvider)
	}

	return nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
