package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// UserData is the raw PII attached to a named tracking event. Hashed fields
// are hashed here before the payload leaves the process; ip and user agent go
// through as-is per the platform contract.
type UserData struct {
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	ExternalID string `json:"external_id,omitempty"`
	ClientIP   string `json:"-"`
	UserAgent  string `json:"-"`
}

// ServerEvent is a named tracking event (PageView, AddToCart, ...) reported
// through the first-party events endpoint rather than the purchase pipeline.
type ServerEvent struct {
	Name        string
	ID          string
	OccurredAt  time.Time
	SourceURL   string
	Value       float64
	Currency    string
	ContentIDs  []string
	ContentType string
	UserData    UserData
}

// SendEvent forwards a named event to the Conversions API. Unlike Deliver it
// is not routed through the dispatcher and never touches the outbox; callers
// treat failures as advisory.
func (s *ConversionsAPISink) SendEvent(ctx context.Context, ev ServerEvent) error {
	if s.cfg.PixelID == "" || s.cfg.AccessToken == "" {
		return Unconfiguredf("conversions-api credentials missing")
	}
	if ev.Name == "" {
		return Malformedf("server event missing event name")
	}

	occurred := ev.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}

	userData := capiUserData{
		ClientIPAddress: ev.UserData.ClientIP,
		ClientUserAgent: ev.UserData.UserAgent,
	}
	if ev.UserData.Email != "" {
		userData.Email = hashField(ev.UserData.Email)
	}
	if ev.UserData.Phone != "" {
		userData.Phone = hashField(ev.UserData.Phone)
	}
	if ev.UserData.FirstName != "" {
		userData.FirstName = hashField(ev.UserData.FirstName)
	}
	if ev.UserData.LastName != "" {
		userData.LastName = hashField(ev.UserData.LastName)
	}
	if ev.UserData.ExternalID != "" {
		userData.ExternalID = hashField(ev.UserData.ExternalID)
	}

	payload := capiRequest{
		Data: []capiEvent{{
			EventName:      ev.Name,
			EventTime:      occurred.Unix(),
			EventID:        ev.ID,
			EventSourceURL: ev.SourceURL,
			ActionSource:   "website",
			UserData:       userData,
			CustomData: capiCustomData{
				Currency:    ev.Currency,
				Value:       ev.Value,
				ContentIDs:  ev.ContentIDs,
				ContentType: ev.ContentType,
			},
		}},
		TestEventCode: s.cfg.TestEventCode,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Malformedf("server event payload for %s", ev.ID)
	}

	url := fmt.Sprintf("%s/%s/events?access_token=%s", s.cfg.GraphBaseURL, s.cfg.PixelID, s.cfg.AccessToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Malformedf("server event request for %s", ev.ID)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return Transientf("conversions-api request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		s.logger.WarnwCtx(ctx, "Conversions API rejected named event",
			"sink", s.Name(),
			"event_name", ev.Name,
			"event_id", ev.ID,
			"status", resp.StatusCode,
			"response", string(respBody),
		)
		return Transientf("conversions-api returned status %d", resp.StatusCode)
	}

	s.logger.InfowCtx(ctx, "Named event delivered",
		"sink", s.Name(),
		"event_name", ev.Name,
		"event_id", ev.ID,
	)
	return nil
}
