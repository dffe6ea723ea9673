package constants

import "time"

const (
	DefaultHTTPTimeout = 10 * time.Second
)

const (
	KafkaBatchTimeout = 10 * time.Millisecond
	KafkaWriteTimeout = 10 * time.Second
)

const (
	CacheKeyPrefixOutbox     = "outbox:"
	CacheKeyPrefixConversion = "conversion:"
)

const (
	DefaultConversionTopic = "conversion_events"
)

const (
	ShutdownTimeout = 5 * time.Second
)

// Outbox lifecycle limits. Records older than the max age or past the attempt
// cap are evicted without redelivery.
const (
	OutboxMaxAge      = 24 * time.Hour
	OutboxMaxAttempts = 3
)

const (
	DefaultDedupTTLSeconds = 86400
)

const (
	HTTPStatusOKMin = 200
	HTTPStatusOKMax = 300
)

const (
	FallbackAllow = "allow"
	FallbackDeny  = "deny"
)

// Gateway fee estimate applied when the processor does not report the real
// fee: 2.9%, in basis points.
const DefaultGatewayFeeBasisPoints = 290
