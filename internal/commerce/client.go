package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"scentry/internal/config"
	"scentry/internal/constants"
	"scentry/internal/event"
	"scentry/internal/logger"
	"scentry/pkg/metrics"
	"scentry/pkg/retry"
)

// Client creates orders in the commerce backend's admin API once a payment
// has settled. The backend is the system of record for fulfillment; tracking
// sinks receive the same conversion independently, so a failure here never
// blocks sink delivery.
type Client struct {
	cfg    config.CommerceConfig
	policy retry.Policy
	client *http.Client
	logger logger.Logger
}

func NewClient(cfg config.CommerceConfig, log logger.Logger) *Client {
	policy := retry.Policy{
		MaxAttempts:     cfg.Retry.MaxAttempts,
		InitialInterval: cfg.Retry.InitialInterval,
		MaxInterval:     cfg.Retry.MaxInterval,
		Multiplier:      cfg.Retry.Multiplier,
	}
	if policy.MaxAttempts <= 0 {
		policy = retry.DefaultPolicy()
	}
	return &Client{
		cfg:    cfg,
		policy: policy,
		client: &http.Client{
			Timeout: constants.DefaultHTTPTimeout,
		},
		logger: log,
	}
}

// Order is the commerce backend's view of a settled purchase.
type Order struct {
	ID          int64  `json:"id"`
	OrderNumber int64  `json:"order_number"`
	Email       string `json:"email"`
}

type noteAttribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type orderCustomer struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone,omitempty"`
}

type orderLineItem struct {
	Title    string `json:"title"`
	Quantity int    `json:"quantity"`
	Price    string `json:"price"`
	SKU      string `json:"sku,omitempty"`
}

type orderPayload struct {
	Email                  string          `json:"email"`
	FinancialStatus        string          `json:"financial_status"`
	SendReceipt            bool            `json:"send_receipt"`
	SendFulfillmentReceipt bool            `json:"send_fulfillment_receipt"`
	Note                   string          `json:"note"`
	NoteAttributes         []noteAttribute `json:"note_attributes"`
	Customer               orderCustomer   `json:"customer"`
	LineItems              []orderLineItem `json:"line_items"`
	Currency               string          `json:"currency"`
	TotalPrice             string          `json:"total_price"`
	SubtotalPrice          string          `json:"subtotal_price"`
	TotalTax               string          `json:"total_tax"`
	TaxesIncluded          bool            `json:"taxes_included"`
	ProcessedAt            string          `json:"processed_at"`
}

type orderEnvelope struct {
	Order orderPayload `json:"order"`
}

type orderResponse struct {
	Order Order `json:"order"`
}

// CreateOrder posts the conversion as a paid order. 5xx and transport
// failures are retried under the configured policy; 4xx responses are final
// since resubmitting the same payload cannot succeed.
func (c *Client) CreateOrder(ctx context.Context, ev event.Conversion, sessionID string) (*Order, error) {
	if c.cfg.StoreURL == "" || c.cfg.AccessToken == "" {
		return nil, fmt.Errorf("commerce backend not configured")
	}

	body, err := json.Marshal(orderEnvelope{Order: c.buildOrder(ev, sessionID)})
	if err != nil {
		return nil, fmt.Errorf("marshaling order for %s: %w", ev.OrderID, err)
	}

	url := fmt.Sprintf("%s/admin/api/%s/orders.json", strings.TrimRight(c.cfg.StoreURL, "/"), c.cfg.APIVersion)

	var created *Order
	err = retry.RetryWithCallback(ctx, c.policy, func() error {
		order, attemptErr := c.postOrder(ctx, url, body)
		if attemptErr != nil {
			return attemptErr
		}
		created = order
		return nil
	}, func(attempt int, attemptErr error, nextDelay time.Duration) {
		c.logger.WarnwCtx(ctx, "Commerce order creation failed, retrying",
			"order_id", ev.OrderID,
			"session_id", sessionID,
			"attempt", attempt,
			"next_delay", nextDelay.String(),
			"error", attemptErr.Error(),
		)
	})
	if err != nil {
		metrics.CommerceOrdersTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.CommerceOrdersTotal.WithLabelValues("created").Inc()
	c.logger.InfowCtx(ctx, "Commerce order created",
		"order_id", ev.OrderID,
		"session_id", sessionID,
		"commerce_order_id", created.ID,
		"order_number", created.OrderNumber,
	)
	return created, nil
}

func (c *Client) postOrder(ctx context.Context, url string, body []byte) (*Order, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, retry.NewFatalError(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", c.cfg.AccessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, retry.NewRetryableError(fmt.Errorf("commerce request failed: %w", err))
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	switch {
	case resp.StatusCode >= constants.HTTPStatusOKMin && resp.StatusCode < constants.HTTPStatusOKMax:
		var parsed orderResponse
		if err := json.Unmarshal(respBody, &parsed); err != nil {
			return nil, retry.NewFatalError(fmt.Errorf("decoding commerce response: %w", err))
		}
		return &parsed.Order, nil
	case resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests:
		return nil, retry.NewRetryableError(fmt.Errorf("commerce backend returned status %d: %s", resp.StatusCode, truncate(respBody, 512)))
	default:
		return nil, retry.NewFatalError(fmt.Errorf("commerce backend rejected order with status %d: %s", resp.StatusCode, truncate(respBody, 512)))
	}
}

func (c *Client) buildOrder(ev event.Conversion, sessionID string) orderPayload {
	first, last := splitName(ev.Customer.Name)

	attrs := []noteAttribute{
		{Name: "checkout_session_id", Value: sessionID},
	}
	for _, k := range event.UTMKeys {
		attrs = append(attrs, noteAttribute{Name: k, Value: ev.TrackingParameters[k]})
	}

	items := make([]orderLineItem, 0, len(ev.LineItems))
	for _, li := range ev.LineItems {
		items = append(items, orderLineItem{
			Title:    li.Name,
			Quantity: li.Quantity,
			Price:    formatMinorUnits(li.UnitPriceMinorUnits),
			SKU:      li.ProductID,
		})
	}

	total := formatMinorUnits(ev.AmountTotalMinorUnits)

	return orderPayload{
		Email:           ev.Customer.Email,
		FinancialStatus: "paid",
		SendReceipt:     true,
		Note:            "Order created from checkout session " + sessionID,
		NoteAttributes:  attrs,
		Customer: orderCustomer{
			FirstName: first,
			LastName:  last,
			Email:     ev.Customer.Email,
			Phone:     ev.Customer.Phone,
		},
		LineItems:     items,
		Currency:      strings.ToUpper(ev.Currency),
		TotalPrice:    total,
		SubtotalPrice: total,
		TotalTax:      "0.00",
		TaxesIncluded: false,
		ProcessedAt:   ev.OccurredAt.UTC().Format(time.RFC3339),
	}
}

// formatMinorUnits renders cents as a decimal string the admin API accepts.
func formatMinorUnits(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return sign + strconv.FormatInt(cents/100, 10) + "." + fmt.Sprintf("%02d", cents%100)
}

func splitName(full string) (string, string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
