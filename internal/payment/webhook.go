package payment

import (
	"encoding/json"
	"fmt"
)

// Webhook event types this service reacts to. Everything else is
// acknowledged and ignored.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventPaymentIntentSucceeded   = "payment_intent.succeeded"
	EventPaymentIntentFailed      = "payment_intent.payment_failed"
)

type WebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object json.RawMessage `json:"object"`
	} `json:"data"`
}

func ParseWebhookEvent(payload []byte) (*WebhookEvent, error) {
	var ev WebhookEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("failed to parse webhook payload: %w", err)
	}
	if ev.Type == "" {
		return nil, fmt.Errorf("webhook payload missing event type")
	}
	return &ev, nil
}

// Session decodes the event object as a checkout session. Only meaningful for
// checkout.session.* events.
func (e *WebhookEvent) Session() (*Session, error) {
	var sess Session
	if err := json.Unmarshal(e.Data.Object, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session from webhook event %s: %w", e.ID, err)
	}
	if sess.ID == "" {
		return nil, fmt.Errorf("webhook event %s carries no session id", e.ID)
	}
	return &sess, nil
}
