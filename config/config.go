package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	// API Configuration
	APIPort        string
	APIHost        string
	APIEnvironment string

	// Stripe
	StripeSecretKey     string
	StripeWebhookSecret string

	// Cloudflare Turnstile (CAPTCHA)
	TurnstileSecretKey string
	CaptchaEnabled     bool

	// Origin allow-list and bot filtering
	AllowedOrigins []string
	BotPatterns    []string

	// Payment rate limiting (fixed window per client IP)
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Global rate limiting (token bucket, all routes)
	GlobalRateLimitPerMinute int
	GlobalRateLimitBurst     int

	// Redis (backs the payment rate-limit counter)
	RedisURL string

	// Email
	SendGridAPIKey string
	EmailFrom      string
	EmailFromName  string

	// Frontend
	SiteBaseURL string

	// Sentry
	SentryDSN         string
	SentryEnvironment string

	// Logging
	LogLevel string

	// Outbound HTTP calls (Stripe, Turnstile)
	OutboundTimeout time.Duration
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		// API
		APIPort:        getEnv("API_PORT", "8787"),
		APIHost:        getEnv("API_HOST", "0.0.0.0"),
		APIEnvironment: getEnv("API_ENVIRONMENT", "development"),

		// Stripe
		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),

		// Turnstile
		TurnstileSecretKey: getEnv("TURNSTILE_SECRET_KEY", ""),
		CaptchaEnabled:     getEnvAsBool("CAPTCHA_ENABLED", false),

		// Origins & bots
		AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{
			"https://missfitcoaching.com",
			"https://www.missfitcoaching.com",
			"https://missfitcoaching.pages.dev",
			"http://localhost:3000", // Development
		}),
		BotPatterns: getEnvAsSlice("BOT_PATTERNS", []string{
			"bot", "crawler", "spider", "pingdom", "headless", "facebook",
			"whatsapp", "linkedinbot", "slackbot", "telegram", "twitter",
			"semrush", "ahrefsbot", "bingbot", "googlebot", "yandex", "baidu",
		}),

		// Payment rate limiting
		RateLimitEnabled:  getEnvAsBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: getEnvAsInt("RATE_LIMIT_REQUESTS", 5),
		RateLimitWindow:   time.Duration(getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 60)) * time.Second,

		// Global rate limiting
		GlobalRateLimitPerMinute: getEnvAsInt("GLOBAL_RATE_LIMIT_PER_MINUTE", 120),
		GlobalRateLimitBurst:     getEnvAsInt("GLOBAL_RATE_LIMIT_BURST", 20),

		// Redis
		RedisURL: getEnv("REDIS_URL", ""),

		// Email
		SendGridAPIKey: getEnv("SENDGRID_API_KEY", ""),
		EmailFrom:      getEnv("EMAIL_FROM", "hello@missfitcoaching.com"),
		EmailFromName:  getEnv("EMAIL_FROM_NAME", "MissFit Coaching"),

		// Frontend
		SiteBaseURL: getEnv("SITE_BASE_URL", "https://missfitcoaching.com"),

		// Sentry
		SentryDSN:         getEnv("SENTRY_DSN", ""),
		SentryEnvironment: getEnv("SENTRY_ENVIRONMENT", getEnv("API_ENVIRONMENT", "development")),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Outbound calls
		OutboundTimeout: time.Duration(getEnvAsInt("OUTBOUND_TIMEOUT_SECONDS", 10)) * time.Second,
	}
}

// Helper functions
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	parts := strings.Split(valueStr, ",")
	values := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			values = append(values, trimmed)
		}
	}
	if len(values) == 0 {
		return defaultValue
	}
	return values
}
