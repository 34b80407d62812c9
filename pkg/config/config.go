// Package config loads gatehouse configuration from an optional YAML file
// and GATEHOUSE_* environment variables. Environment variables always win
// over file values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gatehouse-io/gatehouse/pkg/observability"
	"github.com/gatehouse-io/gatehouse/pkg/platform"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Auth          AuthConfig          `yaml:"auth"`
	Billing       BillingConfig       `yaml:"billing"`
	SSO           SSOConfig           `yaml:"sso"`
	Platform      PlatformConfig      `yaml:"platform"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// Health/metrics server (separate port for k8s probes)
	HealthPort string `yaml:"health_port"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL         string        `yaml:"url"`
	ReplicaURLs string        `yaml:"replica_urls"` // comma-separated
	MaxConns    int           `yaml:"max_conns"`
	MinConns    int           `yaml:"min_conns"`
	Timeout     time.Duration `yaml:"timeout"`
}

// RedisConfig holds feature cache Redis configuration
type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// AuthConfig holds session and credential configuration
type AuthConfig struct {
	SessionTTL    time.Duration `yaml:"session_ttl"`
	ResetTokenTTL time.Duration `yaml:"reset_token_ttl"`
	InviteTTL     time.Duration `yaml:"invite_ttl"`
	InviteBaseURL string        `yaml:"invite_base_url"`
}

// BillingConfig holds billing provider configuration
type BillingConfig struct {
	StripeAPIKey        string `yaml:"stripe_api_key"`
	StripeWebhookSecret string `yaml:"stripe_webhook_secret"`
}

// SSOConfig holds SSO registry configuration
type SSOConfig struct {
	BaseURL       string `yaml:"base_url"`
	EncryptionKey string `yaml:"encryption_key"` // 32-byte key for provider config secrets
	StateSecret   string `yaml:"state_secret"`   // HMAC key for signed login state
	ConfigFile    string `yaml:"config_file"`    // optional file watched for provider changes
}

// PlatformConfig holds deployment mode configuration
type PlatformConfig struct {
	Mode platform.Mode `yaml:"mode"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"`
}

// LoadConfig loads configuration from the optional file named by
// GATEHOUSE_CONFIG_FILE, then applies environment overrides, then validates.
func LoadConfig() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("GATEHOUSE_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			HealthPort:      "9090",
		},
		Database: DatabaseConfig{
			MaxConns: 25,
			MinConns: 5,
			Timeout:  5 * time.Second,
		},
		Auth: AuthConfig{
			SessionTTL:    7 * 24 * time.Hour,
			ResetTokenTTL: 7 * 24 * time.Hour,
			InviteTTL:     7 * 24 * time.Hour,
			InviteBaseURL: "http://localhost:8080",
		},
		Platform: PlatformConfig{
			Mode: platform.ModeSelfHosted,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "gatehouse",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
	}
}

func applyEnv(cfg *Config) {
	cfg.Server.Host = getEnv("GATEHOUSE_HOST", cfg.Server.Host)
	cfg.Server.Port = getEnv("GATEHOUSE_PORT", cfg.Server.Port)
	cfg.Server.ReadTimeout = getEnvDuration("GATEHOUSE_READ_TIMEOUT", cfg.Server.ReadTimeout)
	cfg.Server.WriteTimeout = getEnvDuration("GATEHOUSE_WRITE_TIMEOUT", cfg.Server.WriteTimeout)
	cfg.Server.IdleTimeout = getEnvDuration("GATEHOUSE_IDLE_TIMEOUT", cfg.Server.IdleTimeout)
	cfg.Server.ShutdownTimeout = getEnvDuration("GATEHOUSE_SHUTDOWN_TIMEOUT", cfg.Server.ShutdownTimeout)
	cfg.Server.HealthPort = getEnv("GATEHOUSE_HEALTH_PORT", cfg.Server.HealthPort)

	cfg.Database.URL = getEnv("GATEHOUSE_POSTGRES_URL", cfg.Database.URL)
	cfg.Database.ReplicaURLs = getEnv("GATEHOUSE_POSTGRES_REPLICA_URLS", cfg.Database.ReplicaURLs)
	cfg.Database.MaxConns = getEnvInt("GATEHOUSE_POSTGRES_MAX_CONNS", cfg.Database.MaxConns)
	cfg.Database.MinConns = getEnvInt("GATEHOUSE_POSTGRES_MIN_CONNS", cfg.Database.MinConns)
	cfg.Database.Timeout = getEnvDuration("GATEHOUSE_POSTGRES_TIMEOUT", cfg.Database.Timeout)

	cfg.Redis.URL = getEnv("GATEHOUSE_REDIS_URL", cfg.Redis.URL)
	cfg.Redis.Password = getEnv("GATEHOUSE_REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvInt("GATEHOUSE_REDIS_DB", cfg.Redis.DB)

	cfg.Auth.SessionTTL = getEnvDuration("GATEHOUSE_SESSION_TTL", cfg.Auth.SessionTTL)
	cfg.Auth.ResetTokenTTL = getEnvDuration("GATEHOUSE_RESET_TOKEN_TTL", cfg.Auth.ResetTokenTTL)
	cfg.Auth.InviteTTL = getEnvDuration("GATEHOUSE_INVITE_TTL", cfg.Auth.InviteTTL)
	cfg.Auth.InviteBaseURL = getEnv("GATEHOUSE_INVITE_BASE_URL", cfg.Auth.InviteBaseURL)

	cfg.Billing.StripeAPIKey = getEnv("GATEHOUSE_STRIPE_API_KEY", cfg.Billing.StripeAPIKey)
	cfg.Billing.StripeWebhookSecret = getEnv("GATEHOUSE_STRIPE_WEBHOOK_SECRET", cfg.Billing.StripeWebhookSecret)

	cfg.SSO.BaseURL = getEnv("GATEHOUSE_SSO_BASE_URL", cfg.SSO.BaseURL)
	cfg.SSO.EncryptionKey = getEnv("GATEHOUSE_SSO_ENCRYPTION_KEY", cfg.SSO.EncryptionKey)
	cfg.SSO.StateSecret = getEnv("GATEHOUSE_SSO_STATE_SECRET", cfg.SSO.StateSecret)
	cfg.SSO.ConfigFile = getEnv("GATEHOUSE_SSO_CONFIG_FILE", cfg.SSO.ConfigFile)

	if mode := os.Getenv("GATEHOUSE_PLATFORM_MODE"); mode != "" {
		cfg.Platform.Mode = platform.Mode(mode)
	}

	cfg.Observability.LogLevel = getEnv("GATEHOUSE_LOG_LEVEL", cfg.Observability.LogLevel)
	cfg.Observability.MetricsEnabled = getEnvBool("GATEHOUSE_METRICS_ENABLED", cfg.Observability.MetricsEnabled)
	cfg.Observability.OTelEnabled = getEnvBool("GATEHOUSE_OTEL_ENABLED", cfg.Observability.OTelEnabled)
	cfg.Observability.OTelEndpoint = getEnv("GATEHOUSE_OTEL_ENDPOINT", cfg.Observability.OTelEndpoint)
	cfg.Observability.OTelServiceName = getEnv("GATEHOUSE_OTEL_SERVICE_NAME", cfg.Observability.OTelServiceName)
	cfg.Observability.OTelServiceVersion = getEnv("GATEHOUSE_OTEL_SERVICE_VERSION", cfg.Observability.OTelServiceVersion)
	cfg.Observability.OTelInsecure = getEnvBool("GATEHOUSE_OTEL_INSECURE", cfg.Observability.OTelInsecure)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required")
	}

	if !c.Platform.Mode.Valid() {
		return fmt.Errorf("invalid platform mode: %s (must be self_hosted, managed, or cloud)", c.Platform.Mode)
	}

	if c.Platform.Mode == platform.ModeCloud {
		if c.Billing.StripeAPIKey == "" {
			return fmt.Errorf("stripe API key is required in cloud mode")
		}
		if c.Billing.StripeWebhookSecret == "" {
			return fmt.Errorf("stripe webhook secret is required in cloud mode")
		}
		if c.Redis.URL == "" {
			return fmt.Errorf("redis URL is required in cloud mode")
		}
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// LogLevel returns the parsed observability log level.
func (c *Config) LogLevel() observability.LogLevel {
	return observability.ParseLogLevel(c.Observability.LogLevel)
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
