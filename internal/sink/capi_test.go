package sink

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scentry/internal/config"
	"scentry/internal/logger"
)

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestCAPIUnconfigured(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.ConversionsAPIConfig
	}{
		{name: "missing pixel id", cfg: config.ConversionsAPIConfig{AccessToken: "tok"}},
		{name: "missing token", cfg: config.ConversionsAPIConfig{PixelID: "px"}},
		{name: "missing both", cfg: config.ConversionsAPIConfig{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewConversionsAPISink(tt.cfg, logger.NopLogger())
			err := s.Deliver(context.Background(), purchaseConversion(), "cs_test_123")
			assert.True(t, IsUnconfigured(err))
		})
	}
}

func TestCAPIDeliversHashedUserData(t *testing.T) {
	var got capiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/px_1/events")
		assert.Equal(t, "secret-token", r.URL.Query().Get("access_token"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewConversionsAPISink(config.ConversionsAPIConfig{
		GraphBaseURL: srv.URL,
		PixelID:      "px_1",
		AccessToken:  "secret-token",
	}, logger.NopLogger())

	err := s.Deliver(context.Background(), purchaseConversion(), "cs_test_123")
	require.NoError(t, err)

	require.Len(t, got.Data, 1)
	ev := got.Data[0]

	assert.Equal(t, "Purchase", ev.EventName)
	assert.Equal(t, "cs_test_123", ev.EventID)
	assert.Equal(t, "website", ev.ActionSource)
	assert.Equal(t, "https://shop.example.com/checkout", ev.EventSourceURL)

	// PII leaves the process hashed: trimmed, lowercased, SHA-256 hex.
	assert.Equal(t, sha256Hex("ada@example.com"), ev.UserData.Email)
	assert.Equal(t, sha256Hex("+441234567890"), ev.UserData.Phone)
	assert.Equal(t, sha256Hex("ada"), ev.UserData.FirstName)
	assert.Equal(t, sha256Hex("lovelace"), ev.UserData.LastName)

	assert.Equal(t, "gbp", ev.CustomData.Currency)
	assert.Equal(t, 49.99, ev.CustomData.Value)
	assert.Equal(t, []string{"prod_1"}, ev.CustomData.ContentIDs)
	assert.Equal(t, "product", ev.CustomData.ContentType)
}

func TestCAPIServerErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := NewConversionsAPISink(config.ConversionsAPIConfig{
		GraphBaseURL: srv.URL,
		PixelID:      "px_1",
		AccessToken:  "tok",
	}, logger.NopLogger())

	err := s.Deliver(context.Background(), purchaseConversion(), "cs_test_123")
	assert.True(t, IsTransient(err))
}

func TestCAPINetworkErrorIsTransient(t *testing.T) {
	s := NewConversionsAPISink(config.ConversionsAPIConfig{
		GraphBaseURL: "http://127.0.0.1:1",
		PixelID:      "px_1",
		AccessToken:  "tok",
	}, logger.NopLogger())

	err := s.Deliver(context.Background(), purchaseConversion(), "cs_test_123")
	assert.True(t, IsTransient(err))
}

func TestSendEventHashesAndForwards(t *testing.T) {
	var got capiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewConversionsAPISink(config.ConversionsAPIConfig{
		GraphBaseURL:  srv.URL,
		PixelID:       "px_1",
		AccessToken:   "tok",
		TestEventCode: "TEST123",
	}, logger.NopLogger())

	err := s.SendEvent(context.Background(), ServerEvent{
		Name:      "InitiateCheckout",
		ID:        "evt_1",
		SourceURL: "https://shop.example.com/cart",
		Value:     49.99,
		Currency:  "gbp",
		UserData: UserData{
			Email:     "  Ada@Example.com ",
			ClientIP:  "203.0.113.9",
			UserAgent: "Mozilla/5.0",
		},
	})
	require.NoError(t, err)

	require.Len(t, got.Data, 1)
	assert.Equal(t, "InitiateCheckout", got.Data[0].EventName)
	assert.Equal(t, "evt_1", got.Data[0].EventID)
	assert.Equal(t, sha256Hex("ada@example.com"), got.Data[0].UserData.Email)
	assert.Equal(t, "203.0.113.9", got.Data[0].UserData.ClientIPAddress)
	assert.Equal(t, "Mozilla/5.0", got.Data[0].UserData.ClientUserAgent)
	assert.Equal(t, "TEST123", got.TestEventCode)
}

func TestSendEventMissingName(t *testing.T) {
	s := NewConversionsAPISink(config.ConversionsAPIConfig{
		PixelID:     "px_1",
		AccessToken: "tok",
	}, logger.NopLogger())

	err := s.SendEvent(context.Background(), ServerEvent{ID: "evt_1"})
	assert.True(t, IsMalformed(err))
}
