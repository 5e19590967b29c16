package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the API server configuration, read from the environment.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required,notEmpty"`
	ListenAddr  string `env:"LISTEN_ADDR" envDefault:":8080"`

	RuntimeToken  string `env:"RUNTIME_TOKEN"`
	RuntimeSecret string `env:"RUNTIME_SERVICE_SECRET"`

	TokenEncryptionKey          string   `env:"TOKEN_ENCRYPTION_KEY"`
	TokenEncryptionKeysPrevious []string `env:"TOKEN_ENCRYPTION_KEYS_PREVIOUS" envSeparator:","`

	RetentionDays     int           `env:"WORKLOG_RETENTION_DAYS" envDefault:"30"`
	RetentionInterval time.Duration `env:"WORKLOG_RETENTION_INTERVAL" envDefault:"12h"`
}

// DispatchConfig is the dispatch client configuration, read from the
// environment by the dispatch binary.
type DispatchConfig struct {
	BaseURL     string        `env:"RUNTIME_BASE_URL" envDefault:"http://localhost:8080"`
	Token       string        `env:"RUNTIME_TOKEN"`
	Secret      string        `env:"RUNTIME_SERVICE_SECRET"`
	Timeout     time.Duration `env:"RUNTIME_DISPATCH_TIMEOUT" envDefault:"15s"`
	MaxAttempts int           `env:"RUNTIME_DISPATCH_MAX_ATTEMPTS" envDefault:"2"`

	DefaultUserID string `env:"DEFAULT_USER_ID" envDefault:"user_demo"`
}

// Load parses the API server configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse env: %w", err)
	}
	return cfg, nil
}

// LoadDispatch parses the dispatch client configuration from the environment.
func LoadDispatch() (DispatchConfig, error) {
	var cfg DispatchConfig
	if err := env.Parse(&cfg); err != nil {
		return DispatchConfig{}, fmt.Errorf("config: parse env: %w", err)
	}
	return cfg, nil
}
