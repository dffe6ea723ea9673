package commerce

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scentry/internal/config"
	"scentry/internal/event"
	"scentry/internal/logger"
)

func newTestClient(storeURL string) *Client {
	return NewClient(config.CommerceConfig{
		StoreURL:    storeURL,
		AccessToken: "shpat_test",
		APIVersion:  "2024-01",
		Retry: config.RetryConfig{
			MaxAttempts:     3,
			InitialInterval: time.Millisecond,
			MaxInterval:     5 * time.Millisecond,
			Multiplier:      2.0,
		},
	}, logger.NopLogger())
}

func settledConversion() event.Conversion {
	return event.Conversion{
		OrderID:    "cs_test_123",
		OccurredAt: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC),
		Customer: event.Customer{
			Name:  "Ada Lovelace",
			Email: "ada@example.com",
			Phone: "+441234567890",
		},
		TrackingParameters: map[string]string{
			"utm_source":   "meta",
			"utm_campaign": "spring",
		},
		AmountTotalMinorUnits: 4999,
		Currency:              "gbp",
		LineItems: []event.LineItem{
			{ProductID: "prod_1", Name: "Eau de Parfum 50ml", Quantity: 1, UnitPriceMinorUnits: 4999},
		},
	}
}

func TestCreateOrderPayload(t *testing.T) {
	var got orderEnvelope
	var token string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/api/2024-01/orders.json", r.URL.Path)
		token = r.Header.Get("X-Shopify-Access-Token")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"order": {"id": 9001, "order_number": 1042, "email": "ada@example.com"}}`))
	}))
	defer srv.Close()

	order, err := newTestClient(srv.URL).CreateOrder(context.Background(), settledConversion(), "cs_test_123")
	require.NoError(t, err)
	assert.Equal(t, int64(9001), order.ID)
	assert.Equal(t, int64(1042), order.OrderNumber)
	assert.Equal(t, "shpat_test", token)

	o := got.Order
	assert.Equal(t, "paid", o.FinancialStatus)
	assert.Equal(t, "ada@example.com", o.Email)
	assert.Equal(t, "GBP", o.Currency)
	assert.Equal(t, "49.99", o.TotalPrice)
	assert.Equal(t, "2026-03-14T12:00:00Z", o.ProcessedAt)

	assert.Equal(t, "Ada", o.Customer.FirstName)
	assert.Equal(t, "Lovelace", o.Customer.LastName)

	require.Len(t, o.LineItems, 1)
	assert.Equal(t, "Eau de Parfum 50ml", o.LineItems[0].Title)
	assert.Equal(t, "49.99", o.LineItems[0].Price)
	assert.Equal(t, "prod_1", o.LineItems[0].SKU)

	// Session id plus all five UTM keys ride along as note attributes.
	require.Len(t, o.NoteAttributes, 6)
	attrs := make(map[string]string, len(o.NoteAttributes))
	for _, a := range o.NoteAttributes {
		attrs[a.Name] = a.Value
	}
	assert.Equal(t, "cs_test_123", attrs["checkout_session_id"])
	assert.Equal(t, "meta", attrs["utm_source"])
	assert.Equal(t, "spring", attrs["utm_campaign"])
	assert.Equal(t, "", attrs["utm_medium"])
}

func TestCreateOrderRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"order": {"id": 9001}}`))
	}))
	defer srv.Close()

	order, err := newTestClient(srv.URL).CreateOrder(context.Background(), settledConversion(), "cs_test_123")
	require.NoError(t, err)
	assert.Equal(t, int64(9001), order.ID)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCreateOrderRetriesRateLimit(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"order": {"id": 9001}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).CreateOrder(context.Background(), settledConversion(), "cs_test_123")
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestCreateOrderClientErrorIsFinal(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, `{"errors": "line_items invalid"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).CreateOrder(context.Background(), settledConversion(), "cs_test_123")
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "4xx must not be retried")
	assert.Contains(t, err.Error(), "422")
}

func TestCreateOrderUnconfigured(t *testing.T) {
	c := NewClient(config.CommerceConfig{}, logger.NopLogger())
	_, err := c.CreateOrder(context.Background(), settledConversion(), "cs_test_123")
	assert.Error(t, err)
}

func TestFormatMinorUnits(t *testing.T) {
	tests := []struct {
		cents int64
		want  string
	}{
		{cents: 0, want: "0.00"},
		{cents: 5, want: "0.05"},
		{cents: 100, want: "1.00"},
		{cents: 4999, want: "49.99"},
		{cents: 123456, want: "1234.56"},
		{cents: -4999, want: "-49.99"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatMinorUnits(tt.cents))
	}
}

func TestSplitName(t *testing.T) {
	tests := []struct {
		full  string
		first string
		last  string
	}{
		{full: "Ada Lovelace", first: "Ada", last: "Lovelace"},
		{full: "Ada", first: "Ada", last: ""},
		{full: "Ada King Countess of Lovelace", first: "Ada", last: "King Countess of Lovelace"},
		{full: "", first: "", last: ""},
	}

	for _, tt := range tests {
		first, last := splitName(tt.full)
		assert.Equal(t, tt.first, first)
		assert.Equal(t, tt.last, last)
	}
}
