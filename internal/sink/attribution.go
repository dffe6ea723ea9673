package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"scentry/internal/config"
	"scentry/internal/constants"
	"scentry/internal/event"
	"scentry/internal/logger"
)

// AttributionSink posts the full conversion, commission breakdown included,
// to the attribution platform's webhook URL with a static API key header.
// Historically the least reliable destination, hence the prime customer of
// the outbox.
type AttributionSink struct {
	cfg    config.AttributionConfig
	client *http.Client
	logger logger.Logger
}

func NewAttributionSink(cfg config.AttributionConfig, log logger.Logger) *AttributionSink {
	return &AttributionSink{
		cfg: cfg,
		client: &http.Client{
			Timeout: constants.DefaultHTTPTimeout,
		},
		logger: log,
	}
}

func (s *AttributionSink) Name() string { return "attribution" }

type attributionCustomer struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Phone    *string `json:"phone"`
	Document *string `json:"document"`
}

type attributionCommission struct {
	TotalPriceInCents     int64 `json:"totalPriceInCents"`
	GatewayFeeInCents     int64 `json:"gatewayFeeInCents"`
	UserCommissionInCents int64 `json:"userCommissionInCents"`
}

type attributionProduct struct {
	ID           string `json:"id"`
	PlanID       string `json:"planId"`
	PlanName     string `json:"planName"`
	Name         string `json:"name"`
	Quantity     int    `json:"quantity"`
	PriceInCents int64  `json:"priceInCents"`
}

type attributionConversion struct {
	OrderID            string                 `json:"orderId"`
	Platform           string                 `json:"platform"`
	PaymentMethod      string                 `json:"paymentMethod"`
	Status             string                 `json:"status"`
	CreatedAt          string                 `json:"createdAt"`
	ApprovedDate       string                 `json:"approvedDate"`
	Customer           attributionCustomer    `json:"customer"`
	TrackingParameters map[string]*string     `json:"trackingParameters"`
	Commission         attributionCommission  `json:"commission"`
	Products           []attributionProduct   `json:"products"`
}

func (s *AttributionSink) Deliver(ctx context.Context, ev event.Conversion, dedupeKey string) error {
	if s.cfg.WebhookURL == "" {
		return Unconfiguredf("attribution webhook URL missing")
	}
	if s.cfg.APIKey == "" {
		return Unconfiguredf("attribution API key missing")
	}

	body, err := json.Marshal(s.buildConversion(ev, dedupeKey))
	if err != nil {
		return Malformedf("attribution payload for %s", dedupeKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return Malformedf("attribution request for %s", dedupeKey)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-token", s.cfg.APIKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return Transientf("attribution request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < constants.HTTPStatusOKMin || resp.StatusCode >= constants.HTTPStatusOKMax {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		s.logger.WarnwCtx(ctx, "Attribution webhook rejected conversion",
			"sink", s.Name(),
			"dedupe_key", dedupeKey,
			"status", resp.StatusCode,
			"response", string(respBody),
		)
		return Transientf("attribution webhook returned status %d", resp.StatusCode)
	}

	s.logger.InfowCtx(ctx, "Attribution conversion delivered",
		"sink", s.Name(),
		"event_name", "Purchase",
		"dedupe_key", dedupeKey,
		"status", resp.StatusCode,
	)
	return nil
}

func (s *AttributionSink) buildConversion(ev event.Conversion, dedupeKey string) attributionConversion {
	occurred := ev.OccurredAt.UTC().Format(time.RFC3339)

	feeBps := int64(s.cfg.GatewayFeeBasisPoints)
	if feeBps == 0 {
		feeBps = constants.DefaultGatewayFeeBasisPoints
	}
	gatewayFee := ev.AmountTotalMinorUnits * feeBps / 10000

	products := make([]attributionProduct, 0, len(ev.LineItems))
	for _, li := range ev.LineItems {
		products = append(products, attributionProduct{
			ID:           li.ProductID,
			PlanID:       "plan_" + li.ProductID,
			PlanName:     li.Name,
			Name:         li.Name,
			Quantity:     li.Quantity,
			PriceInCents: li.UnitPriceMinorUnits,
		})
	}

	// Known UTM keys always appear, absent values as explicit nulls.
	tracking := make(map[string]*string, len(event.UTMKeys))
	for _, k := range event.UTMKeys {
		if v, ok := ev.TrackingParameters[k]; ok && v != "" {
			value := v
			tracking[k] = &value
		} else {
			tracking[k] = nil
		}
	}

	return attributionConversion{
		OrderID:       dedupeKey,
		Platform:      s.cfg.Platform,
		PaymentMethod: "credit_card",
		Status:        "paid",
		CreatedAt:     occurred,
		ApprovedDate:  occurred,
		Customer: attributionCustomer{
			Name:     ev.Customer.Name,
			Email:    ev.Customer.Email,
			Phone:    nullable(ev.Customer.Phone),
			Document: nullable(ev.Customer.Document),
		},
		TrackingParameters: tracking,
		Commission: attributionCommission{
			TotalPriceInCents:     ev.AmountTotalMinorUnits,
			GatewayFeeInCents:     gatewayFee,
			UserCommissionInCents: ev.AmountTotalMinorUnits - gatewayFee,
		},
		Products: products,
	}
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
