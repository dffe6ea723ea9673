package config

import (
	"fmt"

	"scentry/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

func ValidateStatic(cfg *Config) error {
	var errors []error

	if err := validateServer(cfg.Server); err != nil {
		errors = append(errors, err)
	}

	if err := validateWebhook(cfg); err != nil {
		errors = append(errors, err)
	}

	if err := validateOutbox(cfg.Outbox); err != nil {
		errors = append(errors, err)
	}

	if err := validateDedup(cfg.Dedup); err != nil {
		errors = append(errors, err)
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errors)
	}

	return nil
}

func validateServer(cfg ServerConfig) error {
	if cfg.Port < 1 || cfg.Port > 65535 {
		return &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", cfg.Port),
		}
	}

	if cfg.ReadTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.read_timeout_seconds",
			Message: "read timeout must be positive",
		}
	}

	if cfg.WriteTimeoutSeconds <= 0 {
		return &ValidationError{
			Field:   "server.write_timeout_seconds",
			Message: "write timeout must be positive",
		}
	}

	return nil
}

// validateWebhook refuses the signature bypass outside non-production
// environments. The bypass is a config flag only; a request header can never
// enable it.
func validateWebhook(cfg *Config) error {
	if cfg.Payment.Webhook.InsecureSkipVerify && cfg.Environment == "production" {
		return &ValidationError{
			Field:   "payment.webhook.insecure_skip_verify",
			Message: "signature verification cannot be disabled in production",
		}
	}

	if !cfg.Payment.Webhook.InsecureSkipVerify && cfg.Payment.Webhook.Secret == "" {
		return &ValidationError{
			Field:   "payment.webhook.secret",
			Message: "webhook secret is required when verification is enabled",
		}
	}

	return nil
}

func validateOutbox(cfg OutboxConfig) error {
	if cfg.MaxAge <= 0 {
		return &ValidationError{
			Field:   "outbox.max_age",
			Message: "max age must be positive",
		}
	}

	if cfg.MaxAttempts <= 0 {
		return &ValidationError{
			Field:   "outbox.max_attempts",
			Message: "max attempts must be positive",
		}
	}

	return nil
}

func validateDedup(cfg DedupConfig) error {
	if cfg.TTLSeconds <= 0 {
		return &ValidationError{
			Field:   "dedup.ttl_seconds",
			Message: "ttl must be positive",
		}
	}

	switch cfg.OnRedisError {
	case constants.FallbackAllow, constants.FallbackDeny:
		return nil
	default:
		return &ValidationError{
			Field:   "dedup.on_redis_error",
			Message: fmt.Sprintf("must be %q or %q, got %q", constants.FallbackAllow, constants.FallbackDeny, cfg.OnRedisError),
		}
	}
}
