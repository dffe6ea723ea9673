package tracking

import (
	"context"
	"fmt"
	"strings"
	"time"

	"scentry/internal/broker"
	"scentry/internal/commerce"
	"scentry/internal/dedup"
	"scentry/internal/dispatch"
	"scentry/internal/event"
	"scentry/internal/logger"
	"scentry/internal/payment"
	"scentry/internal/sink"
	"scentry/pkg/errors"
	"scentry/pkg/metrics"
	"scentry/pkg/models"
)

const sourceName = "tracking-service"

// Service owns the conversion pipeline end to end: checkout session
// creation, the two conversion entry paths (payment webhook and client
// report), named funnel events, and the fan-out to sinks.
type Service struct {
	payments   *payment.Client
	commerce   *commerce.Client
	dispatcher *dispatch.Dispatcher
	capi       *sink.ConversionsAPISink
	guard      *dedup.Guard
	sessions   *sessionRegistry
	producer   broker.Producer
	topic      string
	logger     logger.Logger
	now        func() time.Time
}

type ServiceParams struct {
	Payments   *payment.Client
	Commerce   *commerce.Client
	Dispatcher *dispatch.Dispatcher
	CAPI       *sink.ConversionsAPISink
	Guard      *dedup.Guard
	Producer   broker.Producer
	Topic      string
	Logger     logger.Logger
}

func NewService(p ServiceParams) *Service {
	return &Service{
		payments:   p.Payments,
		commerce:   p.Commerce,
		dispatcher: p.Dispatcher,
		capi:       p.CAPI,
		guard:      p.Guard,
		sessions:   newSessionRegistry(defaultSessionTTL),
		producer:   p.Producer,
		topic:      p.Topic,
		logger:     p.Logger,
		now:        time.Now,
	}
}

// CreateCheckoutSession opens a hosted checkout session with the payment
// processor. Attribution parameters are filtered to the known UTM set and
// stored in session metadata so both conversion paths can recover them.
func (s *Service) CreateCheckoutSession(ctx context.Context, req CreateCheckoutRequest) (*payment.Session, error) {
	items := make([]payment.CartItem, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, payment.CartItem{
			PriceID:             item.PriceID,
			ProductID:           item.ProductID,
			Name:                item.Name,
			Quantity:            item.Quantity,
			UnitPriceMinorUnits: item.UnitPriceMinorUnits,
		})
	}

	metadata := event.FilterTracking(req.TrackingParameters)
	if req.ClientSessionID != "" {
		metadata["client_session_id"] = req.ClientSessionID
	}

	sess, err := s.payments.CreateSession(ctx, payment.CreateSessionRequest{
		Items:         items,
		CustomerEmail: req.CustomerEmail,
		Metadata:      metadata,
		SuccessURL:    req.SuccessURL,
		CancelURL:     req.CancelURL,
	})
	if err != nil {
		metrics.CheckoutSessionsTotal.WithLabelValues("error").Inc()
		return nil, errors.ErrServiceUnavailable.WithCause(err)
	}

	if req.CustomerEmail != "" && req.ClientSessionID != "" {
		s.sessions.get(req.ClientSessionID).profile.SetEmail(req.CustomerEmail)
	}

	metrics.CheckoutSessionsTotal.WithLabelValues("created").Inc()
	return sess, nil
}

func (s *Service) GetCheckoutSession(ctx context.Context, id string) (*payment.Session, error) {
	sess, err := s.payments.GetSession(ctx, id)
	if err != nil {
		return nil, errors.ErrNotFound.WithCause(err)
	}
	return sess, nil
}

// HandleWebhookEvent reacts to a verified processor webhook. Only completed
// checkout sessions trigger the pipeline; other known types are logged and
// acknowledged so the processor stops redelivering them.
func (s *Service) HandleWebhookEvent(ctx context.Context, ev *payment.WebhookEvent) error {
	switch ev.Type {
	case payment.EventCheckoutSessionCompleted:
		sess, err := ev.Session()
		if err != nil {
			return errors.ErrValidation.WithCause(err)
		}
		return s.ProcessCompletedSession(ctx, sess)

	case payment.EventPaymentIntentSucceeded:
		s.logger.InfowCtx(ctx, "Payment intent succeeded", "webhook_event_id", ev.ID)
		return nil

	case payment.EventPaymentIntentFailed:
		s.logger.WarnwCtx(ctx, "Payment intent failed", "webhook_event_id", ev.ID)
		return nil

	default:
		s.logger.InfowCtx(ctx, "Ignoring unhandled webhook event type",
			"webhook_event_id", ev.ID,
			"type", ev.Type,
		)
		return nil
	}
}

// ProcessCompletedSession is the single convergence point for both the
// webhook and the client-report path. Whichever arrives first claims the
// session; the conversion is then dispatched exactly once with the session
// id as the cross-sink dedupe key.
func (s *Service) ProcessCompletedSession(ctx context.Context, sess *payment.Session) error {
	if !sess.Paid() {
		s.logger.InfowCtx(ctx, "Session not paid, skipping conversion",
			"session_id", sess.ID,
			"payment_status", sess.PaymentStatus,
		)
		return nil
	}

	first, err := s.guard.Claim(ctx, sess.ID)
	if err != nil {
		return errors.ErrServiceUnavailable.WithCause(err)
	}
	if !first {
		return nil
	}

	ev := s.buildConversion(ctx, sess)

	if clientID := sess.Metadata["client_session_id"]; clientID != "" {
		profile := s.sessions.get(clientID).profile

		// PII captured earlier in the journey fills gaps the processor
		// session leaves, then the confirmed details flow back so later
		// events in the same session carry them too.
		snap := profile.Snapshot()
		if ev.Customer.Email == "" {
			ev.Customer.Email = snap.Email
		}
		if ev.Customer.Phone == "" {
			ev.Customer.Phone = snap.Phone
		}
		if ev.Customer.Name == "" {
			ev.Customer.Name = strings.TrimSpace(snap.FirstName + " " + snap.LastName)
		}

		if ev.Customer.Email != "" {
			profile.SetEmail(ev.Customer.Email)
		}
		if ev.Customer.Phone != "" {
			profile.SetPhone(ev.Customer.Phone)
		}
	}

	if s.commerce != nil {
		if _, err := s.commerce.CreateOrder(ctx, ev, sess.ID); err != nil {
			s.logger.ErrorwCtx(ctx, "Commerce order creation failed, conversion dispatch continues",
				"session_id", sess.ID,
				"error", err,
			)
		}
	}

	// Delivery is fire and forget: the storefront return page and the
	// webhook ack must never wait on sink latency. Failures land in the
	// outbox, not in the caller's response.
	s.dispatcher.DispatchAsync(ctx, ev, sess.ID)
	go s.publishConversion(context.WithoutCancel(ctx), ev, sess.ID)
	return nil
}

// ReportConversion handles the client checkout path: the return page posts
// the session id and the service resolves everything else processor-side, so
// a spoofed report cannot fabricate a paid conversion.
func (s *Service) ReportConversion(ctx context.Context, sessionID string) error {
	sess, err := s.payments.GetSession(ctx, sessionID)
	if err != nil {
		return errors.ErrNotFound.WithCause(fmt.Errorf("session %s: %w", sessionID, err))
	}
	return s.ProcessCompletedSession(ctx, sess)
}

// TrackEvent forwards a named funnel event to the ad platform. Returns the
// event id used, or skipped=true when Once suppressed a repeat.
func (s *Service) TrackEvent(ctx context.Context, req TrackEventRequest, clientIP, userAgent string) (eventID string, skipped bool, err error) {
	var sess *clientSession
	if req.ClientSessionID != "" {
		sess = s.sessions.get(req.ClientSessionID)
	}

	if req.Once && sess != nil && !sess.tracker.TrackOnce(req.EventName) {
		s.logger.InfowCtx(ctx, "Named event already fired this session, skipping",
			"event_name", req.EventName,
			"client_session_id", req.ClientSessionID,
		)
		return "", true, nil
	}

	if sess != nil {
		if req.UserData.Email != "" {
			sess.profile.SetEmail(req.UserData.Email)
		}
		if req.UserData.Phone != "" {
			sess.profile.SetPhone(req.UserData.Phone)
		}
		if req.UserData.FirstName != "" || req.UserData.LastName != "" {
			sess.profile.SetName(req.UserData.FirstName, req.UserData.LastName)
		}
		if req.UserData.ExternalID != "" {
			sess.profile.SetExternalID(req.UserData.ExternalID)
		}
	}

	userData := sink.UserData{
		Email:      req.UserData.Email,
		Phone:      req.UserData.Phone,
		FirstName:  req.UserData.FirstName,
		LastName:   req.UserData.LastName,
		ExternalID: req.UserData.ExternalID,
		ClientIP:   clientIP,
		UserAgent:  userAgent,
	}
	if sess != nil {
		p := sess.profile.Snapshot()
		if userData.Email == "" {
			userData.Email = p.Email
		}
		if userData.Phone == "" {
			userData.Phone = p.Phone
		}
		if userData.FirstName == "" {
			userData.FirstName, userData.LastName = p.FirstName, p.LastName
		}
		if userData.ExternalID == "" {
			userData.ExternalID = p.ExternalID
		}
	}

	eventID = req.EventID
	if eventID == "" {
		eventID = event.NewEventID()
	}

	if s.capi != nil {
		sendErr := s.capi.SendEvent(ctx, sink.ServerEvent{
			Name:        req.EventName,
			ID:          eventID,
			SourceURL:   req.SourceURL,
			Value:       req.Parameters.Value,
			Currency:    req.Parameters.Currency,
			ContentIDs:  req.Parameters.ContentIDs,
			ContentType: req.Parameters.ContentType,
			UserData:    userData,
		})
		switch {
		case sendErr == nil:
		case sink.IsUnconfigured(sendErr):
			s.logger.InfowCtx(ctx, "Conversions API not configured, named event acknowledged only",
				"event_name", req.EventName,
			)
		default:
			// The tag endpoint contract: never fail the caller over a
			// tracking delivery problem.
			s.logger.WarnwCtx(ctx, "Named event delivery failed",
				"event_name", req.EventName,
				"event_id", eventID,
				"error", sendErr,
			)
		}
	}

	return eventID, false, nil
}

// ResetSession clears the named-step dedup state and profile for a client
// session, typically after checkout completes.
func (s *Service) ResetSession(clientSessionID string) {
	s.sessions.reset(clientSessionID)
}

func (s *Service) buildConversion(ctx context.Context, sess *payment.Session) event.Conversion {
	items := s.fetchLineItems(ctx, sess.ID)

	return event.Conversion{
		OrderID:               sess.ID,
		OccurredAt:            s.now(),
		Customer: event.Customer{
			Name:  sess.CustomerDetails.Name,
			Email: sess.CustomerDetails.Email,
			Phone: sess.CustomerDetails.Phone,
		},
		TrackingParameters:    event.FilterTracking(sess.Metadata),
		AmountTotalMinorUnits: sess.AmountTotal,
		Currency:              sess.Currency,
		SourceURL:             sess.Metadata["source_url"],
		LineItems:             items,
	}
}

func (s *Service) fetchLineItems(ctx context.Context, sessionID string) []event.LineItem {
	raw, err := s.payments.ListLineItems(ctx, sessionID)
	if err != nil {
		// The conversion is still deliverable without the cart breakdown.
		s.logger.WarnwCtx(ctx, "Failed to fetch session line items, dispatching without cart detail",
			"session_id", sessionID,
			"error", err,
		)
		return nil
	}

	items := make([]event.LineItem, 0, len(raw))
	for _, li := range raw {
		unitPrice := li.Price.UnitAmount
		if unitPrice == 0 && li.Quantity > 0 {
			unitPrice = li.AmountTotal / int64(li.Quantity)
		}
		productID := li.Price.Product
		if productID == "" {
			productID = li.Price.ID
		}
		items = append(items, event.LineItem{
			ProductID:           productID,
			Name:                li.Description,
			Quantity:            li.Quantity,
			UnitPriceMinorUnits: unitPrice,
		})
	}
	return items
}

func (s *Service) publishConversion(ctx context.Context, ev event.Conversion, sessionID string) {
	if s.producer == nil || s.topic == "" {
		return
	}

	envelope := models.NewMessageEnvelopeBuilder().
		WithID(sessionID).
		WithSource(sourceName).
		WithPayload(map[string]interface{}{
			"order_id":                 ev.OrderID,
			"amount_total_minor_units": ev.AmountTotalMinorUnits,
			"currency":                 ev.Currency,
			"tracking_parameters":      ev.TrackingParameters,
			"line_item_count":          len(ev.LineItems),
		}).
		WithDedup(sessionID, true).
		Build()

	if err := s.producer.Publish(ctx, s.topic, *envelope); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to publish conversion to event stream",
			"session_id", sessionID,
			"topic", s.topic,
			"error", err,
		)
	}
}
