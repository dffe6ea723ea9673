package sink

import (
	"context"
	"testing"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scentry/internal/event"
	"scentry/internal/logger"
	"scentry/pkg/circuitbreaker"
)

type scriptedSink struct {
	name  string
	errs  []error
	calls int
}

func (s *scriptedSink) Name() string { return s.name }

func (s *scriptedSink) Deliver(ctx context.Context, ev event.Conversion, dedupeKey string) error {
	s.calls++
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

// newTestBreaker trips after two consecutive failures so tests stay short.
func newTestBreaker(t *testing.T, inner Sink) *BreakerSink {
	t.Helper()
	cfg := circuitbreaker.DefaultConfig(t.Name())
	cfg.ReadyToTrip = func(counts gobreaker.Counts) bool {
		return counts.ConsecutiveFailures >= 2
	}
	return WrapWithBreaker(inner, cfg, logger.NopLogger())
}

func TestBreakerPassesThroughSuccess(t *testing.T) {
	inner := &scriptedSink{name: "attribution"}
	s := newTestBreaker(t, inner)

	require.NoError(t, s.Deliver(context.Background(), purchaseConversion(), "cs_test_123"))
	assert.Equal(t, 1, inner.calls)
	assert.Equal(t, "attribution", s.Name())
}

func TestBreakerOpensAfterTransientFailures(t *testing.T) {
	inner := &scriptedSink{
		name: "attribution",
		errs: []error{
			Transientf("upstream down"),
			Transientf("upstream down"),
			Transientf("upstream down"),
		},
	}
	s := newTestBreaker(t, inner)

	err := s.Deliver(context.Background(), purchaseConversion(), "cs_test_123")
	assert.True(t, IsTransient(err))
	err = s.Deliver(context.Background(), purchaseConversion(), "cs_test_123")
	assert.True(t, IsTransient(err))

	// Circuit is now open. The inner sink must not see the third attempt,
	// and the caller still gets a transient error so the outbox catches it.
	err = s.Deliver(context.Background(), purchaseConversion(), "cs_test_123")
	assert.True(t, IsTransient(err))
	assert.Equal(t, 2, inner.calls)
}

func TestBreakerIgnoresNonTransientOutcomes(t *testing.T) {
	inner := &scriptedSink{
		name: "attribution",
		errs: []error{
			Unconfiguredf("no api key"),
			Malformedf("bad payload"),
			Unconfiguredf("no api key"),
			Malformedf("bad payload"),
		},
	}
	s := newTestBreaker(t, inner)

	for i := 0; i < 4; i++ {
		err := s.Deliver(context.Background(), purchaseConversion(), "cs_test_123")
		require.Error(t, err)
		assert.False(t, IsTransient(err))
	}

	// Every call reached the inner sink; drops never trip the circuit.
	assert.Equal(t, 4, inner.calls)
}

func TestBreakerRecoversOnSuccess(t *testing.T) {
	inner := &scriptedSink{
		name: "attribution",
		errs: []error{Transientf("blip"), nil, Transientf("blip")},
	}
	s := newTestBreaker(t, inner)

	assert.True(t, IsTransient(s.Deliver(context.Background(), purchaseConversion(), "cs_test_123")))
	assert.NoError(t, s.Deliver(context.Background(), purchaseConversion(), "cs_test_123"))

	// Success reset the consecutive failure count, circuit stays closed.
	assert.True(t, IsTransient(s.Deliver(context.Background(), purchaseConversion(), "cs_test_123")))
	assert.Equal(t, 3, inner.calls)
}

func TestBreakerOpenErrorMentionsSink(t *testing.T) {
	inner := &scriptedSink{
		name: "attribution",
		errs: []error{Transientf("down"), Transientf("down")},
	}
	s := newTestBreaker(t, inner)

	s.Deliver(context.Background(), purchaseConversion(), "cs_test_123")
	s.Deliver(context.Background(), purchaseConversion(), "cs_test_123")

	err := s.Deliver(context.Background(), purchaseConversion(), "cs_test_123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "attribution")
}
