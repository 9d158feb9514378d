package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Update modes
const (
	modePolling = "polling"
	modeWebhook = "webhook"
)

// Config holds bot configuration loaded from environment variables.
// TELEGRAM_TOKEN, KEYCLOAK_REALM, KEYCLOAK_CLIENT_ID and KEYCLOAK_CLIENT_SECRET
// fall back to API_TOKEN, REALM_NAME, CLIENT_ID and CLIENT_SECRET.
type Config struct {
	Port     int    `envconfig:"PORT" default:"8080"`
	RedisURL string `envconfig:"REDIS_URL"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	TelegramToken  string `envconfig:"TELEGRAM_TOKEN"`
	TelegramAPIURL string `envconfig:"TELEGRAM_API_URL" default:"https://api.telegram.org"`
	UpdateMode     string `envconfig:"UPDATE_MODE" default:"polling"`
	WebhookSecret  string `envconfig:"WEBHOOK_SECRET"`
	SendQRCode     bool   `envconfig:"SEND_QR_CODE" default:"false"`

	KeycloakURL          string        `envconfig:"KEYCLOAK_URL" required:"true"`
	KeycloakRealm        string        `envconfig:"KEYCLOAK_REALM"`
	KeycloakClientID     string        `envconfig:"KEYCLOAK_CLIENT_ID"`
	KeycloakClientSecret string        `envconfig:"KEYCLOAK_CLIENT_SECRET"`
	ProviderTimeout      time.Duration `envconfig:"PROVIDER_TIMEOUT" default:"10s"`
	SessionExpiry        time.Duration `envconfig:"SESSION_EXPIRY" default:"10m"`
	VerifyTokenSignature bool          `envconfig:"VERIFY_TOKEN_SIGNATURE" default:"true"`

	ReadHeaderTimeout time.Duration `envconfig:"READ_HEADER_TIMEOUT" default:"5s"`
	ShutdownTimeout   time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"15s"`
}

// loadConfig reads and validates the configuration
func loadConfig() (Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return cfg, err
	}
	cfg.applyLegacyNames()
	return cfg, cfg.validate()
}

// applyLegacyNames fills unset fields from the variable names of the first bot release
func (c *Config) applyLegacyNames() {
	for _, v := range []struct {
		legacy string
		field  *string
	}{
		{"API_TOKEN", &c.TelegramToken},
		{"REALM_NAME", &c.KeycloakRealm},
		{"CLIENT_ID", &c.KeycloakClientID},
		{"CLIENT_SECRET", &c.KeycloakClientSecret},
	} {
		if *v.field == "" {
			*v.field = os.Getenv(v.legacy)
		}
	}
}

func (c Config) validate() error {
	for _, v := range []struct {
		name, legacy, value string
	}{
		{"TELEGRAM_TOKEN", "API_TOKEN", c.TelegramToken},
		{"KEYCLOAK_REALM", "REALM_NAME", c.KeycloakRealm},
		{"KEYCLOAK_CLIENT_ID", "CLIENT_ID", c.KeycloakClientID},
	} {
		if v.value == "" {
			return fmt.Errorf("%s (or %s) is required", v.name, v.legacy)
		}
	}

	switch c.UpdateMode {
	case modePolling:
	case modeWebhook:
		if c.WebhookSecret == "" {
			return errors.New("WEBHOOK_SECRET is required in webhook mode")
		}
	default:
		return fmt.Errorf("UPDATE_MODE must be %q or %q, got %q", modePolling, modeWebhook, c.UpdateMode)
	}
	if c.ProviderTimeout <= 0 {
		return errors.New("PROVIDER_TIMEOUT must be positive")
	}
	return nil
}
