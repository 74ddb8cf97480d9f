package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds runtime configuration values for the API service.
type Config struct {
	AppName     string
	AppEnv      string
	AppPort     string
	CORSOrigins string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string

	OpenAIAPIKey    string
	OpenAIModel     string
	AnthropicAPIKey string
	AnthropicModel  string

	GradingPollInterval time.Duration
	GradingJobTimeout   time.Duration
	GradingJobTTL       time.Duration

	StripeAPIKey        string
	StripeWebhookSecret string
	StripePriceMonthly  string
	StripePriceYearly   string
	StripePriceExtra    string
	BillingEnforced     bool
	FreeAccessEmails    []string

	AdminEmails []string
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// Load reads configuration values from environment variables and optional .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("RUBRIQ")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "Rubriq API")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("anthropic.model", "claude-3-5-haiku-latest")
	v.SetDefault("grading.poll_interval", "1s")
	v.SetDefault("grading.job_timeout", "10m")
	v.SetDefault("grading.job_ttl", "1h")
	v.SetDefault("billing.enforced", false)
	v.SetDefault("stripe.price_monthly", "price_monthly_999")
	v.SetDefault("stripe.price_yearly", "price_yearly_199")
	v.SetDefault("stripe.price_extra", "price_extra_class_49")

	pollInterval, err := parseDuration(v.GetString("grading.poll_interval"), "grading poll interval")
	if err != nil {
		return Config{}, err
	}
	jobTimeout, err := parseDuration(v.GetString("grading.job_timeout"), "grading job timeout")
	if err != nil {
		return Config{}, err
	}
	jobTTL, err := parseDuration(v.GetString("grading.job_ttl"), "grading job ttl")
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:     v.GetString("app.name"),
		AppEnv:      v.GetString("app.env"),
		AppPort:     v.GetString("app.port"),
		CORSOrigins: v.GetString("cors.origins"),
		DatabaseURL: v.GetString("database.url"),
		RedisURL:    v.GetString("redis.url"),
		JWTSecret:   v.GetString("jwt.secret"),

		OpenAIAPIKey:    v.GetString("openai_api_key"),
		OpenAIModel:     v.GetString("openai.model"),
		AnthropicAPIKey: v.GetString("anthropic_api_key"),
		AnthropicModel:  v.GetString("anthropic.model"),

		GradingPollInterval: pollInterval,
		GradingJobTimeout:   jobTimeout,
		GradingJobTTL:       jobTTL,

		StripeAPIKey:        v.GetString("stripe.api_key"),
		StripeWebhookSecret: v.GetString("stripe.webhook_secret"),
		StripePriceMonthly:  v.GetString("stripe.price_monthly"),
		StripePriceYearly:   v.GetString("stripe.price_yearly"),
		StripePriceExtra:    v.GetString("stripe.price_extra"),
		BillingEnforced:     v.GetBool("billing.enforced"),
		FreeAccessEmails:    splitList(v.GetString("billing.free_access_emails")),

		AdminEmails: splitList(v.GetString("admin.emails")),
	}

	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("jwt secret must be provided")
	}

	return cfg, nil
}

func parseDuration(raw, name string) (time.Duration, error) {
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return parsed, nil
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
