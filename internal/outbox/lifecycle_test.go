package outbox_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scentry/internal/config"
	"scentry/internal/dispatch"
	"scentry/internal/event"
	"scentry/internal/logger"
	"scentry/internal/outbox"
	"scentry/internal/sink"
)

// Full lifecycle against a real sink: the first delivery attempt sees a 500
// and the conversion gets parked, the next sweep sees a 200 and the record
// disappears.
func TestOutboxLifecycleThroughDispatcherAndSweeper(t *testing.T) {
	var failures int32 = 1
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&failures, -1) >= 0 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	capi := sink.NewConversionsAPISink(config.ConversionsAPIConfig{
		GraphBaseURL: srv.URL,
		PixelID:      "px_1",
		AccessToken:  "token",
	}, logger.NopLogger())

	store := outbox.NewMemoryStore()
	ev := event.Conversion{
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

	d := dispatch.NewDispatcher([]sink.Sink{capi}, store, logger.NopLogger())
	d.Dispatch(context.Background(), ev, "cs_test_123")

	rec, ok := store.Get("cs_test_123:conversions-api")
	require.True(t, ok)
	assert.Equal(t, 0, rec.AttemptCount)

	cfg := config.OutboxConfig{MaxAge: 24 * time.Hour, MaxAttempts: 3}
	sw := outbox.NewSweeper(store, []sink.Sink{capi}, cfg, logger.NopLogger())
	sw.Sweep(context.Background())

	_, ok = store.Get("cs_test_123:conversions-api")
	assert.False(t, ok, "redelivered record must be removed")
}
