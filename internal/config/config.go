package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig
	Environment    string               `mapstructure:"environment"`
	Redis          RedisConfig
	Broker         BrokerConfig
	Logging        LoggingConfig
	Payment        PaymentConfig
	Commerce       CommerceConfig
	Sinks          SinksConfig
	Outbox         OutboxConfig
	Dedup          DedupConfig
	RateLimit      RateLimitConfig      `mapstructure:"rate_limit"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

type ServerConfig struct {
	Port                int           `mapstructure:"port"`
	ReadTimeoutSeconds  time.Duration `mapstructure:"read_timeout_seconds"`
	WriteTimeoutSeconds time.Duration `mapstructure:"write_timeout_seconds"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type BrokerConfig struct {
	Type  string      `mapstructure:"type"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers         []string `mapstructure:"brokers"`
	GroupID         string   `mapstructure:"group_id"`
	ConversionTopic string   `mapstructure:"conversion_topic"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PaymentConfig configures the payment-processor client and webhook receiver.
type PaymentConfig struct {
	APIBaseURL          string        `mapstructure:"api_base_url"`
	SecretKey           string        `mapstructure:"secret_key"`
	SuccessURL          string        `mapstructure:"success_url"`
	CancelURL           string        `mapstructure:"cancel_url"`
	Webhook             WebhookConfig `mapstructure:"webhook"`
	FixedUnitPriceCents int64         `mapstructure:"fixed_unit_price_cents"`
}

type WebhookConfig struct {
	Secret             string        `mapstructure:"secret"`
	Tolerance          time.Duration `mapstructure:"tolerance"`
	InsecureSkipVerify bool          `mapstructure:"insecure_skip_verify"`
}

// CommerceConfig configures the commerce backend that receives completed
// orders.
type CommerceConfig struct {
	StoreURL    string      `mapstructure:"store_url"`
	AccessToken string      `mapstructure:"access_token"`
	APIVersion  string      `mapstructure:"api_version"`
	Retry       RetryConfig `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier"`
}

type SinksConfig struct {
	Pixel          PixelConfig          `mapstructure:"pixel"`
	ConversionsAPI ConversionsAPIConfig `mapstructure:"conversions_api"`
	Attribution    AttributionConfig    `mapstructure:"attribution"`
}

// PixelConfig configures the server-side mirror of the in-browser tag. The
// tag itself is optional on the client (ad blockers), so an empty endpoint
// disables the sink without error.
type PixelConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	TagEndpoint string `mapstructure:"tag_endpoint"`
	PixelID     string `mapstructure:"pixel_id"`
}

type ConversionsAPIConfig struct {
	GraphBaseURL  string `mapstructure:"graph_base_url"`
	PixelID       string `mapstructure:"pixel_id"`
	AccessToken   string `mapstructure:"access_token"`
	TestEventCode string `mapstructure:"test_event_code"`
}

type AttributionConfig struct {
	WebhookURL            string `mapstructure:"webhook_url"`
	APIKey                string `mapstructure:"api_key"`
	Platform              string `mapstructure:"platform"`
	GatewayFeeBasisPoints int    `mapstructure:"gateway_fee_basis_points"`
}

type OutboxConfig struct {
	MaxAge      time.Duration `mapstructure:"max_age"`
	MaxAttempts int           `mapstructure:"max_attempts"`
}

// DedupConfig governs the webhook replay guard: a processed checkout session
// is remembered for TTL seconds so redelivered webhooks do not re-dispatch.
type DedupConfig struct {
	TTLSeconds   int    `mapstructure:"ttl_seconds"`
	OnRedisError string `mapstructure:"on_redis_error"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps"`
	Burst           int     `mapstructure:"burst"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

func Load(configFile string) (*Config, error) {
	return LoadConfig(configFile)
}
