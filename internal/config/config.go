// Package config handles configuration loading from file and environment.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration values for the application.
type Config struct {
	// Database connection string
	DatabaseURL string

	// HTTP server port
	HTTPPort int

	// Bearer token protecting the API. Empty disables authentication
	// (local development only).
	APIToken string

	// Path of the artifact registry JSON file
	RegistryPath string

	// Directory for downloaded artifacts (audio files)
	DataDir string

	// Remote execution service used for asynchronous audio generation.
	// Both must be set for dispatch to be enabled.
	DispatchBaseURL string
	DispatchToken   string

	// Webhook URL for job completion notifications. Empty disables the
	// webhook channel.
	NotifyWebhookURL string

	// OTLP collector endpoint for traces
	OTELEndpoint string

	// Log level: debug, info, warn, error
	LogLevel string

	// Runner poll interval and its cap while the queue stays empty
	PollInterval time.Duration
	MaxBackoff   time.Duration

	// Request rate limiting. RPS 0 means unlimited.
	RateLimitRPS   float64
	RateLimitBurst int
}

// Load reads configuration from the given file (optional) and from
// RESEARCHPLANE_* environment variables. Environment wins over file.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("http_port", 6262)
	v.SetDefault("registry_path", "artifact-registry.json")
	v.SetDefault("data_dir", "data")
	v.SetDefault("otel_endpoint", "localhost:4317")
	v.SetDefault("log_level", "info")
	v.SetDefault("poll_interval", "1s")
	v.SetDefault("max_backoff", "30s")
	v.SetDefault("rate_limit_rps", 10)
	v.SetDefault("rate_limit_burst", 20)

	v.SetEnvPrefix("RESEARCHPLANE")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("researchplane")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
			// No config file is fine, environment alone can carry it.
		}
	}

	cfg := &Config{
		DatabaseURL:      v.GetString("database_url"),
		HTTPPort:         v.GetInt("http_port"),
		APIToken:         v.GetString("api_token"),
		RegistryPath:     v.GetString("registry_path"),
		DataDir:          v.GetString("data_dir"),
		DispatchBaseURL:  v.GetString("dispatch_base_url"),
		DispatchToken:    v.GetString("dispatch_token"),
		NotifyWebhookURL: v.GetString("notify_webhook_url"),
		OTELEndpoint:     v.GetString("otel_endpoint"),
		LogLevel:         v.GetString("log_level"),
		PollInterval:     v.GetDuration("poll_interval"),
		MaxBackoff:       v.GetDuration("max_backoff"),
		RateLimitRPS:     v.GetFloat64("rate_limit_rps"),
		RateLimitBurst:   v.GetInt("rate_limit_burst"),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("database_url is required (set RESEARCHPLANE_DATABASE_URL)")
	}
	if cfg.PollInterval <= 0 {
		return nil, fmt.Errorf("poll_interval must be positive")
	}
	if cfg.MaxBackoff < cfg.PollInterval {
		return nil, fmt.Errorf("max_backoff must be at least poll_interval")
	}

	return cfg, nil
}

// DispatchEnabled reports whether the remote execution service is configured.
func (c *Config) DispatchEnabled() bool {
	return c.DispatchBaseURL != "" && c.DispatchToken != ""
}
