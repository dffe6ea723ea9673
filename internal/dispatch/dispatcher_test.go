package dispatch

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scentry/internal/event"
	"scentry/internal/logger"
	"scentry/internal/outbox"
	"scentry/internal/sink"
)

type fakeSink struct {
	mu       sync.Mutex
	name     string
	err      error
	panics   bool
	calls    int
	notify   chan struct{}
	lastKey  string
	lastConv event.Conversion
}

func (f *fakeSink) Name() string { return f.name }

func (f *fakeSink) Deliver(ctx context.Context, ev event.Conversion, dedupeKey string) error {
	f.mu.Lock()
	f.calls++
	f.lastKey = dedupeKey
	f.lastConv = ev
	f.mu.Unlock()
	if f.notify != nil {
		close(f.notify)
	}
	if f.panics {
		panic("sink exploded")
	}
	return f.err
}

func (f *fakeSink) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func testConversion() event.Conversion {
	return event.Conversion{
		OrderID:    "cs_test_123",
		OccurredAt: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
		Customer: event.Customer{
			Name:  "Ada Lovelace",
			Email: "ada@example.com",
		},
		AmountTotalMinorUnits: 4999,
		Currency:              "gbp",
		LineItems: []event.LineItem{
			{ProductID: "prod_1", Name: "Eau de Parfum 50ml", Quantity: 1, UnitPriceMinorUnits: 4999},
		},
	}
}

func TestDispatchFanOut(t *testing.T) {
	store := outbox.NewMemoryStore()
	a := &fakeSink{name: "pixel"}
	b := &fakeSink{name: "conversions-api"}
	c := &fakeSink{name: "attribution"}
	d := NewDispatcher([]sink.Sink{a, b, c}, store, logger.NopLogger())

	d.Dispatch(context.Background(), testConversion(), "cs_test_123")

	assert.Equal(t, 1, a.callCount())
	assert.Equal(t, 1, b.callCount())
	assert.Equal(t, 1, c.callCount())
	assert.Equal(t, "cs_test_123", a.lastKey)

	size, err := store.Size(context.Background())
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestDispatchFailureIsolation(t *testing.T) {
	store := outbox.NewMemoryStore()
	healthy := &fakeSink{name: "pixel"}
	failing := &fakeSink{name: "attribution", err: sink.Transientf("upstream down")}
	d := NewDispatcher([]sink.Sink{healthy, failing}, store, logger.NopLogger())

	d.Dispatch(context.Background(), testConversion(), "cs_test_123")

	// The healthy sink was still attempted.
	assert.Equal(t, 1, healthy.callCount())

	// Only the failing sink got an outbox record, keyed order:sink.
	rec, ok := store.Get("cs_test_123:attribution")
	require.True(t, ok)
	assert.Equal(t, "attribution", rec.SinkName)
	assert.Equal(t, "cs_test_123", rec.DedupeKey)
	assert.Equal(t, 0, rec.AttemptCount)
	assert.Equal(t, "cs_test_123", rec.Event.OrderID)

	_, ok = store.Get("cs_test_123:pixel")
	assert.False(t, ok)
}

func TestDispatchUnclassifiedErrorIsParked(t *testing.T) {
	store := outbox.NewMemoryStore()
	failing := &fakeSink{name: "attribution", err: stderrors.New("something odd")}
	d := NewDispatcher([]sink.Sink{failing}, store, logger.NopLogger())

	d.Dispatch(context.Background(), testConversion(), "cs_test_123")

	_, ok := store.Get("cs_test_123:attribution")
	assert.True(t, ok)
}

func TestDispatchDropsUnconfiguredAndMalformed(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "unconfigured", err: sink.Unconfiguredf("no credentials")},
		{name: "malformed", err: sink.Malformedf("bad payload")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := outbox.NewMemoryStore()
			failing := &fakeSink{name: "attribution", err: tt.err}
			d := NewDispatcher([]sink.Sink{failing}, store, logger.NopLogger())

			d.Dispatch(context.Background(), testConversion(), "cs_test_123")

			size, err := store.Size(context.Background())
			require.NoError(t, err)
			assert.Zero(t, size, "drops must not reach the outbox")
		})
	}
}

func TestDispatchInvalidConversionNeverReachesSinks(t *testing.T) {
	store := outbox.NewMemoryStore()
	s := &fakeSink{name: "pixel"}
	d := NewDispatcher([]sink.Sink{s}, store, logger.NopLogger())

	ev := testConversion()
	ev.OrderID = ""
	d.Dispatch(context.Background(), ev, "cs_test_123")

	assert.Zero(t, s.callCount())
}

func TestDispatchPanicIsolation(t *testing.T) {
	store := outbox.NewMemoryStore()
	panicking := &fakeSink{name: "attribution", panics: true}
	healthy := &fakeSink{name: "pixel"}
	d := NewDispatcher([]sink.Sink{panicking, healthy}, store, logger.NopLogger())

	require.NotPanics(t, func() {
		d.Dispatch(context.Background(), testConversion(), "cs_test_123")
	})

	assert.Equal(t, 1, healthy.callCount())

	// A panicking sink is neither delivered nor parked.
	size, err := store.Size(context.Background())
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestDispatchAsyncReturnsBeforeDelivery(t *testing.T) {
	store := outbox.NewMemoryStore()
	s := &fakeSink{name: "pixel", notify: make(chan struct{})}
	d := NewDispatcher([]sink.Sink{s}, store, logger.NopLogger())

	d.DispatchAsync(context.Background(), testConversion(), "cs_test_123")

	select {
	case <-s.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("sink was never invoked")
	}
}

func TestDispatchAsyncSurvivesCallerCancellation(t *testing.T) {
	store := outbox.NewMemoryStore()
	s := &fakeSink{name: "pixel", notify: make(chan struct{})}
	d := NewDispatcher([]sink.Sink{s}, store, logger.NopLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.DispatchAsync(ctx, testConversion(), "cs_test_123")

	select {
	case <-s.notify:
	case <-time.After(2 * time.Second):
		t.Fatal("delivery was aborted by the caller's cancellation")
	}
}
