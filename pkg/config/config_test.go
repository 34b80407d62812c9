package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatehouse-io/gatehouse/pkg/platform"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("GATEHOUSE_POSTGRES_URL", "postgres://localhost/gatehouse_test?sslmode=disable")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.HealthPort)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, 7*24*time.Hour, cfg.Auth.ResetTokenTTL)
	assert.Equal(t, platform.ModeSelfHosted, cfg.Platform.Mode)
	assert.True(t, cfg.Observability.MetricsEnabled)
	assert.False(t, cfg.Observability.OTelEnabled)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("GATEHOUSE_POSTGRES_URL", "postgres://localhost/gatehouse_test?sslmode=disable")
	t.Setenv("GATEHOUSE_PORT", "8888")
	t.Setenv("GATEHOUSE_SESSION_TTL", "24h")
	t.Setenv("GATEHOUSE_PLATFORM_MODE", "managed")
	t.Setenv("GATEHOUSE_LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "8888", cfg.Server.Port)
	assert.Equal(t, 24*time.Hour, cfg.Auth.SessionTTL)
	assert.Equal(t, platform.ModeManaged, cfg.Platform.Mode)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gatehouse.yaml")
	content := `
server:
  port: "7000"
database:
  url: postgres://filehost/gatehouse?sslmode=disable
auth:
  session_ttl: 48h
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("GATEHOUSE_CONFIG_FILE", path)
	// Env still beats the file.
	t.Setenv("GATEHOUSE_PORT", "7001")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "7001", cfg.Server.Port)
	assert.Equal(t, "postgres://filehost/gatehouse?sslmode=disable", cfg.Database.URL)
	assert.Equal(t, 48*time.Hour, cfg.Auth.SessionTTL)
}

func TestValidateRequiresPostgres(t *testing.T) {
	cfg := defaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres URL is required")
}

func TestValidateRejectsBadMode(t *testing.T) {
	cfg := defaults()
	cfg.Database.URL = "postgres://localhost/x"
	cfg.Platform.Mode = platform.Mode("hybrid")
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid platform mode")
}

func TestValidateCloudModeRequiresBillingAndRedis(t *testing.T) {
	cfg := defaults()
	cfg.Database.URL = "postgres://localhost/x"
	cfg.Platform.Mode = platform.ModeCloud

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stripe API key is required")

	cfg.Billing.StripeAPIKey = "sk_test_123"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stripe webhook secret is required")

	cfg.Billing.StripeWebhookSecret = "whsec_123"
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis URL is required")

	cfg.Redis.URL = "localhost:6379"
	assert.NoError(t, cfg.Validate())
}
