package broker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scentry/internal/config"
	"scentry/internal/logger"
)

func TestNewProducerKafka(t *testing.T) {
	p, err := NewProducer(config.BrokerConfig{
		Type: "kafka",
		Kafka: config.KafkaConfig{
			Brokers:         []string{"localhost:9092"},
			ConversionTopic: "conversions",
		},
	}, logger.NopLogger())
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.NoError(t, p.Close())
}

func TestNewProducerDisabled(t *testing.T) {
	for _, typ := range []string{"", "none"} {
		p, err := NewProducer(config.BrokerConfig{Type: typ}, logger.NopLogger())
		require.NoError(t, err)
		assert.Nil(t, p)
	}
}

func TestNewProducerUnknownType(t *testing.T) {
	_, err := NewProducer(config.BrokerConfig{Type: "rabbitmq"}, logger.NopLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rabbitmq")
}
