package sink

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"scentry/internal/config"
	"scentry/internal/constants"
	"scentry/internal/event"
	"scentry/internal/logger"
)

// ConversionsAPISink reports purchases to the ad platform's server-side
// Conversions API. PII is SHA-256 hashed before it leaves the process, per
// the platform contract. The dedupe key becomes event_id so the platform can
// collapse the server report with the browser pixel's report of the same
// purchase.
type ConversionsAPISink struct {
	cfg    config.ConversionsAPIConfig
	client *http.Client
	logger logger.Logger
}

func NewConversionsAPISink(cfg config.ConversionsAPIConfig, log logger.Logger) *ConversionsAPISink {
	return &ConversionsAPISink{
		cfg: cfg,
		client: &http.Client{
			Timeout: constants.DefaultHTTPTimeout,
		},
		logger: log,
	}
}

func (s *ConversionsAPISink) Name() string { return "conversions-api" }

type capiUserData struct {
	Email           string `json:"em,omitempty"`
	Phone           string `json:"ph,omitempty"`
	FirstName       string `json:"fn,omitempty"`
	LastName        string `json:"ln,omitempty"`
	ExternalID      string `json:"external_id,omitempty"`
	ClientIPAddress string `json:"client_ip_address,omitempty"`
	ClientUserAgent string `json:"client_user_agent,omitempty"`
}

type capiCustomData struct {
	Currency    string   `json:"currency,omitempty"`
	Value       float64  `json:"value,omitempty"`
	ContentIDs  []string `json:"content_ids,omitempty"`
	ContentType string   `json:"content_type,omitempty"`
}

type capiEvent struct {
	EventName      string         `json:"event_name"`
	EventTime      int64          `json:"event_time"`
	EventID        string         `json:"event_id"`
	EventSourceURL string         `json:"event_source_url,omitempty"`
	ActionSource   string         `json:"action_source"`
	UserData       capiUserData   `json:"user_data"`
	CustomData     capiCustomData `json:"custom_data"`
}

type capiRequest struct {
	Data          []capiEvent `json:"data"`
	TestEventCode string      `json:"test_event_code,omitempty"`
}

func (s *ConversionsAPISink) Deliver(ctx context.Context, ev event.Conversion, dedupeKey string) error {
	if s.cfg.PixelID == "" || s.cfg.AccessToken == "" {
		return Unconfiguredf("conversions-api credentials missing")
	}

	payload := capiRequest{
		Data:          []capiEvent{s.buildEvent(ev, dedupeKey)},
		TestEventCode: s.cfg.TestEventCode,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Malformedf("conversions-api payload for %s", dedupeKey)
	}

	url := fmt.Sprintf("%s/%s/events?access_token=%s", s.cfg.GraphBaseURL, s.cfg.PixelID, s.cfg.AccessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Malformedf("conversions-api request for %s", dedupeKey)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return Transientf("conversions-api request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		s.logger.WarnwCtx(ctx, "Conversions API rejected event",
			"sink", s.Name(),
			"dedupe_key", dedupeKey,
			"status", resp.StatusCode,
			"response", string(respBody),
		)
		return Transientf("conversions-api returned status %d", resp.StatusCode)
	}

	s.logger.InfowCtx(ctx, "Conversions API event delivered",
		"sink", s.Name(),
		"event_name", "Purchase",
		"dedupe_key", dedupeKey,
		"status", resp.StatusCode,
	)
	return nil
}

func (s *ConversionsAPISink) buildEvent(ev event.Conversion, dedupeKey string) capiEvent {
	userData := capiUserData{}

	email := ev.Customer.Email
	phone := ev.Customer.Phone
	firstName, lastName := splitName(ev.Customer.Name)

	if email != "" {
		userData.Email = hashField(email)
	}
	if phone != "" {
		userData.Phone = hashField(phone)
	}
	if firstName != "" {
		userData.FirstName = hashField(firstName)
	}
	if lastName != "" {
		userData.LastName = hashField(lastName)
	}

	return capiEvent{
		EventName:      "Purchase",
		EventTime:      ev.OccurredAt.Unix(),
		EventID:        dedupeKey,
		EventSourceURL: ev.SourceURL,
		ActionSource:   "website",
		UserData:       userData,
		CustomData: capiCustomData{
			Currency:    ev.Currency,
			Value:       float64(ev.AmountTotalMinorUnits) / 100,
			ContentIDs:  ev.ContentIDs(),
			ContentType: "product",
		},
	}
}

// hashField normalizes then hashes a PII field per the platform contract:
// trimmed, lowercased, SHA-256 hex.
func hashField(value string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(value))))
	return hex.EncodeToString(sum[:])
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
