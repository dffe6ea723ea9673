package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scentry/internal/constants"
)

func validConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port:                8080,
			ReadTimeoutSeconds:  15,
			WriteTimeoutSeconds: 15,
		},
		Payment: PaymentConfig{
			Webhook: WebhookConfig{
				Secret: "whsec_test",
			},
		},
		Outbox: OutboxConfig{
			MaxAge:      24 * time.Hour,
			MaxAttempts: 3,
		},
		Dedup: DedupConfig{
			TTLSeconds:   86400,
			OnRedisError: constants.FallbackAllow,
		},
	}
}

func TestValidateStaticAcceptsValidConfig(t *testing.T) {
	assert.NoError(t, ValidateStatic(validConfig()))
}

func TestValidateStaticRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{
			name:   "port zero",
			mutate: func(c *Config) { c.Server.Port = 0 },
			field:  "server.port",
		},
		{
			name:   "port too large",
			mutate: func(c *Config) { c.Server.Port = 70000 },
			field:  "server.port",
		},
		{
			name:   "read timeout",
			mutate: func(c *Config) { c.Server.ReadTimeoutSeconds = 0 },
			field:  "server.read_timeout_seconds",
		},
		{
			name:   "write timeout",
			mutate: func(c *Config) { c.Server.WriteTimeoutSeconds = -1 },
			field:  "server.write_timeout_seconds",
		},
		{
			name:   "missing webhook secret",
			mutate: func(c *Config) { c.Payment.Webhook.Secret = "" },
			field:  "payment.webhook.secret",
		},
		{
			name:   "outbox max age",
			mutate: func(c *Config) { c.Outbox.MaxAge = 0 },
			field:  "outbox.max_age",
		},
		{
			name:   "outbox max attempts",
			mutate: func(c *Config) { c.Outbox.MaxAttempts = 0 },
			field:  "outbox.max_attempts",
		},
		{
			name:   "dedup ttl",
			mutate: func(c *Config) { c.Dedup.TTLSeconds = 0 },
			field:  "dedup.ttl_seconds",
		},
		{
			name:   "dedup fallback enum",
			mutate: func(c *Config) { c.Dedup.OnRedisError = "maybe" },
			field:  "dedup.on_redis_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := ValidateStatic(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestValidateStaticSkipVerifyRefusedInProduction(t *testing.T) {
	cfg := validConfig()
	cfg.Environment = "production"
	cfg.Payment.Webhook.InsecureSkipVerify = true

	err := ValidateStatic(cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insecure_skip_verify")
}

func TestValidateStaticSkipVerifyAllowedInDevelopment(t *testing.T) {
	cfg := validConfig()
	cfg.Payment.Webhook.InsecureSkipVerify = true
	cfg.Payment.Webhook.Secret = ""

	assert.NoError(t, ValidateStatic(cfg))
}
