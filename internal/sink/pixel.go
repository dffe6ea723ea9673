package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"scentry/internal/config"
	"scentry/internal/constants"
	"scentry/internal/event"
	"scentry/internal/logger"
)

// PixelSink mirrors the in-browser tag server-side. The browser tag is
// routinely absent (ad blockers strip it), so a disabled or unreachable tag
// endpoint is logged and swallowed: pixel absence must never block the other
// sinks or the checkout flow.
type PixelSink struct {
	cfg    config.PixelConfig
	client *http.Client
	logger logger.Logger
}

func NewPixelSink(cfg config.PixelConfig, log logger.Logger) *PixelSink {
	return &PixelSink{
		cfg: cfg,
		client: &http.Client{
			Timeout: constants.DefaultHTTPTimeout,
		},
		logger: log,
	}
}

func (s *PixelSink) Name() string { return "pixel" }

type pixelEvent struct {
	PixelID    string   `json:"pixel_id"`
	EventName  string   `json:"event_name"`
	EventID    string   `json:"event_id"`
	Value      float64  `json:"value"`
	Currency   string   `json:"currency"`
	ContentIDs []string `json:"content_ids"`
	SourceURL  string   `json:"source_url,omitempty"`
}

func (s *PixelSink) Deliver(ctx context.Context, ev event.Conversion, dedupeKey string) error {
	if !s.cfg.Enabled || s.cfg.TagEndpoint == "" {
		s.logger.DebugwCtx(ctx, "Pixel tag absent, skipping",
			"sink", s.Name(),
			"dedupe_key", dedupeKey,
		)
		return nil
	}

	payload := pixelEvent{
		PixelID:    s.cfg.PixelID,
		EventName:  "Purchase",
		EventID:    dedupeKey,
		Value:      float64(ev.AmountTotalMinorUnits) / 100,
		Currency:   ev.Currency,
		ContentIDs: ev.ContentIDs(),
		SourceURL:  ev.SourceURL,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.WarnwCtx(ctx, "Pixel payload marshal failed",
			"sink", s.Name(),
			"dedupe_key", dedupeKey,
			"error", err,
		)
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.TagEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		// Fire and forget: an unreachable tag is equivalent to an absent one.
		s.logger.WarnwCtx(ctx, "Pixel delivery failed",
			"sink", s.Name(),
			"event_name", payload.EventName,
			"dedupe_key", dedupeKey,
			"error", err,
		)
		return nil
	}
	defer resp.Body.Close()

	s.logger.InfowCtx(ctx, "Pixel event delivered",
		"sink", s.Name(),
		"event_name", payload.EventName,
		"dedupe_key", dedupeKey,
		"status", resp.StatusCode,
	)
	return nil
}
