package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	SinkDeliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sink_deliveries_total",
			Help: "Total number of conversion deliveries attempted per sink (count)",
		},
		[]string{"sink", "status"},
	)

	SinkDeliveryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sink_delivery_duration_ms",
			Help:    "Duration of sink delivery attempts in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		},
		[]string{"sink"},
	)

	OutboxRecordsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_records_total",
			Help: "Total number of outbox records written, retried, delivered or evicted (count)",
		},
		[]string{"outcome"},
	)

	OutboxSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "outbox_size",
			Help: "Number of conversion payloads currently pending redelivery (count)",
		},
	)

	SweepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "outbox_sweeps_total",
			Help: "Total number of outbox sweeps (count)",
		},
		[]string{"status"},
	)

	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_events_total",
			Help: "Total number of payment webhook events received (count)",
		},
		[]string{"type", "result"},
	)

	CheckoutSessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_sessions_total",
			Help: "Total number of checkout sessions created (count)",
		},
		[]string{"status"},
	)

	CommerceOrdersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commerce_orders_total",
			Help: "Total number of order creation calls to the commerce backend (count)",
		},
		[]string{"status"},
	)

	FallbackUsageTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallback_usage_total",
			Help: "Total number of times fallback strategies were used (count)",
		},
		[]string{"service", "strategy", "reason"},
	)

	RateLimitRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_requests_total",
			Help: "Total number of requests checked against rate limit (count)",
		},
		[]string{"status"},
	)

	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open) (state code)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker (count)",
		},
		[]string{"name", "state"},
	)

	CircuitBreakerFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of failures through circuit breaker (count)",
		},
		[]string{"name"},
	)

	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_written_total",
			Help: "Total number of messages written to Kafka (count)",
		},
		[]string{"service", "topic"},
	)

	KafkaWriteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kafka_write_duration_ms",
			Help:    "Duration of writing messages to Kafka in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"service", "topic"},
	)
)

func RegisterPipelineMetrics() {
	prometheus.MustRegister(SinkDeliveriesTotal)
	prometheus.MustRegister(SinkDeliveryDuration)
	prometheus.MustRegister(OutboxRecordsTotal)
	prometheus.MustRegister(OutboxSize)
	prometheus.MustRegister(SweepsTotal)
	prometheus.MustRegister(FallbackUsageTotal)
}

func RegisterHTTPMetrics() {
	prometheus.MustRegister(WebhookEventsTotal)
	prometheus.MustRegister(CheckoutSessionsTotal)
	prometheus.MustRegister(CommerceOrdersTotal)
	prometheus.MustRegister(RateLimitRequestsTotal)
}

func RegisterBrokerMetrics() {
	prometheus.MustRegister(KafkaMessagesWrittenTotal)
	prometheus.MustRegister(KafkaWriteDuration)
}

func RegisterCircuitBreakerMetrics() {
	prometheus.MustRegister(CircuitBreakerState)
	prometheus.MustRegister(CircuitBreakerRequests)
	prometheus.MustRegister(CircuitBreakerFailures)
}

func ObserveSinkDeliveryDuration(sink string, duration time.Duration) {
	SinkDeliveryDuration.WithLabelValues(sink).Observe(float64(duration.Milliseconds()))
}

func ObserveKafkaWriteDuration(service, topic string, duration time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(duration.Milliseconds()))
}

func SetOutboxSize(size int) {
	OutboxSize.Set(float64(size))
}
