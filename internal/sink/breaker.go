package sink

import (
	"context"

	"github.com/sony/gobreaker"

	"scentry/internal/event"
	"scentry/internal/logger"
	"scentry/pkg/circuitbreaker"
)

// BreakerSink guards an unreliable destination with a circuit breaker. Only
// transient failures count against the circuit; unconfigured and malformed
// outcomes say nothing about destination health. An open circuit reports
// Transient so the dispatcher parks the conversion instead of hammering a
// destination that is already down.
type BreakerSink struct {
	inner   Sink
	breaker *circuitbreaker.Wrapper
	logger  logger.Logger
}

func WrapWithBreaker(inner Sink, cfg circuitbreaker.Config, log logger.Logger) *BreakerSink {
	if cfg.Name == "" {
		cfg.Name = inner.Name()
	}
	return &BreakerSink{
		inner:   inner,
		breaker: circuitbreaker.NewWrapper(cfg),
		logger:  log,
	}
}

func (s *BreakerSink) Name() string { return s.inner.Name() }

func (s *BreakerSink) Deliver(ctx context.Context, ev event.Conversion, dedupeKey string) error {
	var deliverErr error
	_, err := s.breaker.ExecuteWithContext(ctx, func() (interface{}, error) {
		deliverErr = s.inner.Deliver(ctx, ev, dedupeKey)
		if deliverErr != nil && IsTransient(deliverErr) {
			return nil, deliverErr
		}
		return nil, nil
	})

	switch err {
	case nil:
		s.breaker.RecordRequest(deliverErr == nil)
		return deliverErr
	case gobreaker.ErrOpenState, gobreaker.ErrTooManyRequests:
		s.logger.WarnwCtx(ctx, "Circuit open, delivery deferred",
			"sink", s.Name(),
			"dedupe_key", dedupeKey,
		)
		return Transientf("circuit open for sink %s", s.Name())
	default:
		s.breaker.RecordRequest(false)
		return err
	}
}
