// Package config provides application configuration management with
// multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (runtime override)
//  2. Config file (~/.taurimind/config.yaml or ./config.yaml)
//  3. Default values
//
// Main configuration categories:
//   - Server: HTTP listen address
//   - Storage: PostgreSQL connection (optional; in-memory without it)
//   - Models: the model catalog exposed to clients
//   - Completion: rate limiting for upstream generation calls
//   - Logging: level and format
//   - Observability: OTLP trace export (see observability.go)
//
// Security: sensitive data (passwords, API keys) is never logged; Config
// masks it in MarshalJSON.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

var (
	// ErrNoModels indicates the model catalog is empty.
	ErrNoModels = errors.New("no models configured")

	// ErrInvalidModelProvider indicates a model has an unknown provider.
	ErrInvalidModelProvider = errors.New("invalid model provider")

	// ErrInvalidModelName indicates a model entry has no name.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidPostgresPort indicates the PostgreSQL port is out of range.
	ErrInvalidPostgresPort = errors.New("invalid PostgreSQL port")

	// ErrInvalidLogLevel indicates the log level is not recognised.
	ErrInvalidLogLevel = errors.New("invalid log level")

	// ErrInvalidRateLimit indicates the completion rate limit is out of range.
	ErrInvalidRateLimit = errors.New("invalid completion rate limit")
)

// Model providers accepted in the catalog.
const (
	ProviderLocal  = "local"
	ProviderHosted = "hosted"
)

// ModelConfig is one entry of the model catalog.
type ModelConfig struct {
	Provider    string `mapstructure:"provider" json:"provider"`
	Name        string `mapstructure:"name" json:"name"`
	Description string `mapstructure:"description" json:"description"`
	APIKey      string `mapstructure:"api_key" json:"api_key"` // SENSITIVE: masked in MarshalJSON
	Endpoint    string `mapstructure:"endpoint" json:"endpoint"`
}

// Config stores application configuration.
// SECURITY: sensitive fields are explicitly masked in MarshalJSON().
type Config struct {
	// Server configuration
	Addr string `mapstructure:"addr" json:"addr"`

	// Storage configuration. An empty PostgresHost selects the in-memory
	// store; state then does not survive a restart.
	PostgresHost     string `mapstructure:"postgres_host" json:"postgres_host"`
	PostgresPort     int    `mapstructure:"postgres_port" json:"postgres_port"`
	PostgresUser     string `mapstructure:"postgres_user" json:"postgres_user"`
	PostgresPassword string `mapstructure:"postgres_password" json:"postgres_password"` // SENSITIVE: masked in MarshalJSON
	PostgresDBName   string `mapstructure:"postgres_db_name" json:"postgres_db_name"`
	PostgresSSLMode  string `mapstructure:"postgres_ssl_mode" json:"postgres_ssl_mode"`

	// Model catalog
	Models []ModelConfig `mapstructure:"models" json:"models"`

	// Ollama host serving the "local" provider models
	OllamaHost string `mapstructure:"ollama_host" json:"ollama_host"`

	// Completion rate limit (requests per second across all conversations)
	CompletionRateLimit float64 `mapstructure:"completion_rate_limit" json:"completion_rate_limit"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level" json:"log_level"`
	LogJSON  bool   `mapstructure:"log_json" json:"log_json"`

	// Observability configuration (see observability.go)
	Otel OtelConfig `mapstructure:"otel" json:"otel"`
}

// Load loads configuration.
// Priority: Environment variables > Configuration file > Default values
func Load() (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("getting user home directory: %w", err)
	}
	configDir := filepath.Join(home, ".taurimind")

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)
	bindEnvVariables(v)

	if err := v.ReadInConfig(); err != nil {
		// A missing config file is not an error; defaults apply.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		slog.Debug("configuration file not found, using default values",
			"search_paths", []string{configDir, "."})
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing configuration: %w", err)
	}

	// DATABASE_URL, when set, overrides the individual postgres_* keys.
	if err := cfg.parseDatabaseURL(); err != nil {
		return nil, fmt.Errorf("parsing DATABASE_URL: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets all default configuration values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", "127.0.0.1:3500")

	v.SetDefault("postgres_port", 5432)
	v.SetDefault("postgres_user", "taurimind")
	v.SetDefault("postgres_db_name", "taurimind")
	v.SetDefault("postgres_ssl_mode", "disable")

	v.SetDefault("ollama_host", "http://localhost:11434")
	v.SetDefault("completion_rate_limit", 5.0)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)

	v.SetDefault("otel.endpoint", "localhost:4318")
	v.SetDefault("otel.environment", "dev")
	v.SetDefault("otel.service_name", "taurimind")
	v.SetDefault("otel.enabled", false)

	v.SetDefault("models", []map[string]any{
		{"provider": ProviderLocal, "name": "llama3.2", "description": "Llama 3.2 via Ollama"},
		{"provider": ProviderHosted, "name": "gemini-2.5-flash", "description": "Gemini 2.5 Flash"},
	})
}

// bindEnvVariables binds environment variable overrides explicitly.
// NOTE: GEMINI_API_KEY is read directly by the Genkit plugin, not via
// Viper; per-model api_key entries take precedence when set.
func bindEnvVariables(v *viper.Viper) {
	mustBind := func(key, envVar string) {
		if err := v.BindEnv(key, envVar); err != nil {
			panic(fmt.Sprintf("BUG: failed to bind %q to %q: %v", key, envVar, err))
		}
	}

	mustBind("addr", "TAURIMIND_ADDR")
	mustBind("ollama_host", "TAURIMIND_OLLAMA_HOST")
	mustBind("log_level", "TAURIMIND_LOG_LEVEL")
	mustBind("log_json", "TAURIMIND_LOG_JSON")
	mustBind("otel.enabled", "TAURIMIND_OTEL_ENABLED")
	mustBind("otel.endpoint", "TAURIMIND_OTEL_ENDPOINT")
}

// maskedValue is the placeholder for masked sensitive data.
const maskedValue = "████████"

// maskSecret masks a secret string for safe logging. Empty stays empty so
// unset credentials remain recognisable.
func maskSecret(s string) string {
	if s == "" {
		return ""
	}
	return maskedValue
}

// MarshalJSON implements json.Marshaler with explicit sensitive field
// masking. When adding new sensitive fields, update this method.
func (c Config) MarshalJSON() ([]byte, error) {
	type alias Config
	a := alias(c)
	a.PostgresPassword = maskSecret(a.PostgresPassword)
	a.Models = make([]ModelConfig, len(c.Models))
	for i, m := range c.Models {
		m.APIKey = maskSecret(m.APIKey)
		a.Models[i] = m
	}
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}

// String implements Stringer to prevent accidental printing of secrets.
func (c Config) String() string {
	data, err := c.MarshalJSON()
	if err != nil {
		return fmt.Sprintf("Config{error: %v}", err)
	}
	return string(data)
}
