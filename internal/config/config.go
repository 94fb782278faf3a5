package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"persona_relay/internal/entities"
)

type Config struct {
	TelegramToken string `env:"TELEGRAM_TOKEN"`
	KVURL         string `env:"KV_URL"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL"`

	HTTPAddr        string `env:"HTTP_ADDR" envDefault:":8080"`
	WebhookPath     string `env:"WEBHOOK_PATH" envDefault:"/webhook"`
	WebhookSecret   string `env:"WEBHOOK_SECRET"`
	RegisterWebhook bool   `env:"REGISTER_WEBHOOK" envDefault:"false"`
	MaxBodyBytes    int64  `env:"MAX_BODY_BYTES" envDefault:"1048576"`

	GeminiModel     string        `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	GeminiBaseURL   string        `env:"GEMINI_BASE_URL"`
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"30s"`
	StoreTimeout    time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
	TelegramTimeout time.Duration `env:"TELEGRAM_TIMEOUT" envDefault:"10s"`

	CredentialPrefix     string `env:"CREDENTIAL_PREFIX" envDefault:"AIzaSy"`
	CredentialMinLength  int    `env:"CREDENTIAL_MIN_LENGTH" envDefault:"39"`
	CredentialSealingKey string `env:"CREDENTIAL_SEALING_KEY"`

	PersonasFile string `env:"PERSONAS_FILE"`

	ChatRatePerMinute float64 `env:"CHAT_RATE_PER_MINUTE" envDefault:"20"`
	ChatRateBurst     int     `env:"CHAT_RATE_BURST" envDefault:"5"`

	AdminJWTSecret string `env:"ADMIN_JWT_SECRET"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"console"`
}

// Load reads an optional .env file and then the environment. Missing required values return an
// error wrapping entities.ErrConfigurationMissing.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	cfg.LogLevel = strings.ToLower(strings.TrimSpace(cfg.LogLevel))
	cfg.LogFormat = strings.ToLower(strings.TrimSpace(cfg.LogFormat))
	cfg.TelegramToken = strings.TrimSpace(cfg.TelegramToken)
	cfg.KVURL = strings.TrimSpace(cfg.KVURL)
	cfg.PublicBaseURL = strings.TrimSpace(cfg.PublicBaseURL)
	if !strings.HasPrefix(cfg.WebhookPath, "/") {
		cfg.WebhookPath = "/" + cfg.WebhookPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var missing []string
	if c.TelegramToken == "" {
		missing = append(missing, "TELEGRAM_TOKEN")
	}
	if c.KVURL == "" {
		missing = append(missing, "KV_URL")
	}
	if c.RegisterWebhook && c.PublicBaseURL == "" {
		missing = append(missing, "PUBLIC_BASE_URL (required by REGISTER_WEBHOOK)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", entities.ErrConfigurationMissing, strings.Join(missing, ", "))
	}

	if c.ProviderTimeout <= 0 || c.StoreTimeout <= 0 || c.TelegramTimeout <= 0 {
		return fmt.Errorf("PROVIDER_TIMEOUT, STORE_TIMEOUT and TELEGRAM_TIMEOUT must be positive")
	}
	if c.CredentialMinLength < 1 {
		return fmt.Errorf("CREDENTIAL_MIN_LENGTH must be at least 1")
	}
	return nil
}

// WebhookURL is the address Telegram should deliver updates to.
func (c *Config) WebhookURL() string {
	base := c.PublicBaseURL
	if !strings.Contains(base, "://") {
		base = "https://" + base
	}
	return strings.TrimRight(base, "/") + c.WebhookPath
}
