package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"scentry/internal/constants"
)

func LoadConfig(configFile string) (*Config, error) {
	viper.Reset()

	viper.SetConfigType("yaml")
	viper.SetConfigFile(configFile)

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	bindEnvVariables()
	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnvOverrides(&cfg); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("outbox.max_age", constants.OutboxMaxAge)
	viper.SetDefault("outbox.max_attempts", constants.OutboxMaxAttempts)
	viper.SetDefault("dedup.ttl_seconds", constants.DefaultDedupTTLSeconds)
	viper.SetDefault("dedup.on_redis_error", constants.FallbackAllow)
	viper.SetDefault("sinks.attribution.platform", "stripe")
	viper.SetDefault("sinks.attribution.gateway_fee_basis_points", constants.DefaultGatewayFeeBasisPoints)
	viper.SetDefault("sinks.conversions_api.graph_base_url", "https://graph.facebook.com/v17.0")
	viper.SetDefault("broker.kafka.conversion_topic", constants.DefaultConversionTopic)
}

func bindEnvVariables() {
	viper.BindEnv("environment", "ENVIRONMENT")

	viper.BindEnv("server.port", "SERVER_PORT")
	viper.BindEnv("server.read_timeout_seconds", "SERVER_READ_TIMEOUT_SECONDS")
	viper.BindEnv("server.write_timeout_seconds", "SERVER_WRITE_TIMEOUT_SECONDS")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS")
	viper.BindEnv("broker.kafka.group_id", "BROKER_KAFKA_GROUP_ID")
	viper.BindEnv("broker.kafka.conversion_topic", "BROKER_KAFKA_CONVERSION_TOPIC")

	viper.BindEnv("logging.level", "LOGGING_LEVEL")
	viper.BindEnv("logging.format", "LOGGING_FORMAT")

	viper.BindEnv("payment.api_base_url", "PAYMENT_API_BASE_URL")
	viper.BindEnv("payment.secret_key", "PAYMENT_SECRET_KEY")
	viper.BindEnv("payment.webhook.secret", "PAYMENT_WEBHOOK_SECRET")

	viper.BindEnv("commerce.store_url", "COMMERCE_STORE_URL")
	viper.BindEnv("commerce.access_token", "COMMERCE_ACCESS_TOKEN")

	viper.BindEnv("sinks.pixel.pixel_id", "SINKS_PIXEL_PIXEL_ID")
	viper.BindEnv("sinks.conversions_api.pixel_id", "SINKS_CONVERSIONS_API_PIXEL_ID")
	viper.BindEnv("sinks.conversions_api.access_token", "SINKS_CONVERSIONS_API_ACCESS_TOKEN")
	viper.BindEnv("sinks.conversions_api.test_event_code", "SINKS_CONVERSIONS_API_TEST_EVENT_CODE")
	viper.BindEnv("sinks.attribution.webhook_url", "SINKS_ATTRIBUTION_WEBHOOK_URL")
	viper.BindEnv("sinks.attribution.api_key", "SINKS_ATTRIBUTION_API_KEY")
}

func applyEnvOverrides(cfg *Config) error {
	if brokersEnv := viper.GetString("BROKER_KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		if len(brokers) > 0 && brokers[0] != "" {
			cfg.Broker.Kafka.Brokers = brokers
		}
	}

	return nil
}
