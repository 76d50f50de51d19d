package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the billing service.
type Config struct {
	Port                             string `mapstructure:"PORT"`
	GinMode                          string `mapstructure:"GIN_MODE"`
	LogLevel                         string `mapstructure:"LOG_LEVEL"`
	FirebaseProjectID                string `mapstructure:"FIREBASE_PROJECT_ID"`
	GoogleApplicationCredentials     string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	FirebaseServiceAccountJSONBase64 string `mapstructure:"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64"`
	StripeSecretKey                  string `mapstructure:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret              string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	// SubscriptionCreditBonus is granted once per paid billing period.
	SubscriptionCreditBonus int64 `mapstructure:"SUBSCRIPTION_CREDIT_BONUS"`
	// HardenedRoutes moves session creation behind Firebase authentication and
	// makes the public billing route accept signed webhooks only.
	HardenedRoutes bool `mapstructure:"HARDENED_ROUTES"`

	RedisAddr      string        `mapstructure:"REDIS_ADDR"`
	RedisPassword  string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB        int           `mapstructure:"REDIS_DB"`
	EventDedupeTTL time.Duration `mapstructure:"EVENT_DEDUPE_TTL"`

	RabbitMQURL        string `mapstructure:"RABBITMQ_URL"`
	BillingEventsQueue string `mapstructure:"BILLING_EVENTS_QUEUE"`
}

var envKeys = []string{
	"PORT",
	"GIN_MODE",
	"LOG_LEVEL",
	"FIREBASE_PROJECT_ID",
	"GOOGLE_APPLICATION_CREDENTIALS",
	"FIREBASE_SERVICE_ACCOUNT_JSON_BASE64",
	"STRIPE_SECRET_KEY",
	"STRIPE_WEBHOOK_SECRET",
	"SUBSCRIPTION_CREDIT_BONUS",
	"HARDENED_ROUTES",
	"REDIS_ADDR",
	"REDIS_PASSWORD",
	"REDIS_DB",
	"EVENT_DEDUPE_TTL",
	"RABBITMQ_URL",
	"BILLING_EVENTS_QUEUE",
}

// LoadConfig loads configuration from environment variables using Viper.
// Outside release mode a local .env file is loaded first, if present.
// Variables already set in the environment take precedence over .env values.
func LoadConfig() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if !strings.EqualFold(v.GetString("GIN_MODE"), "release") {
		// A missing .env is normal in containers.
		_ = godotenv.Load()
	}

	v.SetDefault("PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("SUBSCRIPTION_CREDIT_BONUS", 10)
	v.SetDefault("HARDENED_ROUTES", false)
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("EVENT_DEDUPE_TTL", "72h")
	v.SetDefault("BILLING_EVENTS_QUEUE", "billing-events")

	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.New("failed to unmarshal config: " + err.Error())
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.FirebaseProjectID == "" {
		return errors.New("FIREBASE_PROJECT_ID is required")
	}
	if c.StripeSecretKey == "" {
		return errors.New("STRIPE_SECRET_KEY is required")
	}
	if c.StripeWebhookSecret == "" {
		return errors.New("STRIPE_WEBHOOK_SECRET is required")
	}
	if c.SubscriptionCreditBonus <= 0 {
		return errors.New("SUBSCRIPTION_CREDIT_BONUS must be positive")
	}
	if c.EventDedupeTTL <= 0 {
		return errors.New("EVENT_DEDUPE_TTL must be positive")
	}
	return nil
}

// RedisEnabled reports whether the event dedupe cache is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// RabbitMQEnabled reports whether billing notifications are published.
func (c *Config) RabbitMQEnabled() bool {
	return c.RabbitMQURL != ""
}
