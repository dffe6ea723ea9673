package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"scentry/internal/config"
	"scentry/internal/constants"
	"scentry/internal/logger"
)

// Client is a thin REST client for the payment processor's hosted checkout.
// The processor is the source of truth for payment state; this service only
// creates sessions and reads them back.
type Client struct {
	cfg     config.PaymentConfig
	pricing PricingPolicy
	client  *http.Client
	logger  logger.Logger
}

func NewClient(cfg config.PaymentConfig, log logger.Logger) *Client {
	return &Client{
		cfg:     cfg,
		pricing: NewPricingPolicy(cfg.FixedUnitPriceCents, log),
		client: &http.Client{
			Timeout: constants.DefaultHTTPTimeout,
		},
		logger: log,
	}
}

// CartItem is one cart position as submitted by the storefront. PriceID
// refers to a processor-side price object; the price fields are used when the
// pricing policy overrides or no price object exists.
type CartItem struct {
	PriceID             string `json:"price_id"`
	ProductID           string `json:"product_id"`
	Name                string `json:"name"`
	Quantity            int    `json:"quantity"`
	UnitPriceMinorUnits int64  `json:"unit_price_minor_units"`
}

type CreateSessionRequest struct {
	Items         []CartItem
	CustomerEmail string
	Metadata      map[string]string
	SuccessURL    string
	CancelURL     string
}

type CustomerDetails struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// Session mirrors the processor's checkout-session object; Metadata carries
// the attribution parameters end to end.
type Session struct {
	ID              string            `json:"id"`
	URL             string            `json:"url"`
	ClientSecret    string            `json:"client_secret"`
	PaymentStatus   string            `json:"payment_status"`
	AmountTotal     int64             `json:"amount_total"`
	Currency        string            `json:"currency"`
	CustomerDetails CustomerDetails   `json:"customer_details"`
	Metadata        map[string]string `json:"metadata"`
}

func (s *Session) Paid() bool {
	return s.PaymentStatus == "paid"
}

// CreateSession creates a hosted checkout session. Attribution parameters go
// into session metadata so the webhook path can recover them without any
// shared storage.
func (c *Client) CreateSession(ctx context.Context, req CreateSessionRequest) (*Session, error) {
	if len(req.Items) == 0 {
		return nil, fmt.Errorf("at least one item is required")
	}

	items := c.pricing.Apply(ctx, req.Items)

	form := url.Values{}
	form.Set("mode", "payment")
	form.Set("success_url", pick(req.SuccessURL, c.cfg.SuccessURL))
	form.Set("cancel_url", pick(req.CancelURL, c.cfg.CancelURL))
	if req.CustomerEmail != "" {
		form.Set("customer_email", req.CustomerEmail)
	}

	for i, item := range items {
		prefix := fmt.Sprintf("line_items[%d]", i)
		form.Set(prefix+"[quantity]", strconv.Itoa(item.Quantity))
		if item.PriceID != "" && c.cfg.FixedUnitPriceCents == 0 {
			form.Set(prefix+"[price]", item.PriceID)
			continue
		}
		form.Set(prefix+"[price_data][currency]", "gbp")
		form.Set(prefix+"[price_data][unit_amount]", strconv.FormatInt(item.UnitPriceMinorUnits, 10))
		form.Set(prefix+"[price_data][product_data][name]", item.Name)
	}

	for k, v := range req.Metadata {
		form.Set(fmt.Sprintf("metadata[%s]", k), v)
	}

	var sess Session
	if err := c.post(ctx, "/v1/checkout/sessions", form, &sess); err != nil {
		return nil, err
	}

	c.logger.InfowCtx(ctx, "Checkout session created",
		"session_id", sess.ID,
		"line_items", len(items),
	)
	return &sess, nil
}

// GetSession fetches a session by id, typically from the storefront return
// page showing payment status.
func (c *Client) GetSession(ctx context.Context, id string) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("session id is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIBaseURL+"/v1/checkout/sessions/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("session lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("session lookup returned status %d: %s", resp.StatusCode, string(body))
	}

	var sess Session
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &sess, nil
}

// SessionLineItem is one cart position as the processor reports it after
// payment. AmountTotal is the position total, not the unit price.
type SessionLineItem struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Quantity    int    `json:"quantity"`
	AmountTotal int64  `json:"amount_total"`
	Price       struct {
		ID         string `json:"id"`
		UnitAmount int64  `json:"unit_amount"`
		Product    string `json:"product"`
	} `json:"price"`
}

// ListLineItems fetches the purchased items for a completed session. The
// webhook payload does not embed them, so the conversion pipeline calls this
// to rebuild the cart.
func (c *Client) ListLineItems(ctx context.Context, sessionID string) ([]SessionLineItem, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.APIBaseURL+"/v1/checkout/sessions/"+url.PathEscape(sessionID)+"/line_items", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("line item lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("line item lookup returned status %d: %s", resp.StatusCode, string(body))
	}

	var list struct {
		Data []SessionLineItem `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		return nil, fmt.Errorf("failed to decode line items: %w", err)
	}
	return list.Data, nil
}

func (c *Client) post(ctx context.Context, path string, form url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIBaseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.SecretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("processor request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("processor returned status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode processor response: %w", err)
	}
	return nil
}

func pick(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}
