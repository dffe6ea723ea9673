package tracking

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"scentry/internal/logger"
	"scentry/internal/outbox"
	"scentry/internal/payment"
	"scentry/pkg/errors"
	"scentry/pkg/metrics"
)

const maxWebhookBody = 1 << 20

type Handler struct {
	service    *Service
	sweeper    *outbox.Sweeper
	verifier   *payment.Verifier
	skipVerify bool
	logger     logger.Logger
}

func NewHandler(service *Service, sweeper *outbox.Sweeper, verifier *payment.Verifier, skipVerify bool, log logger.Logger) *Handler {
	return &Handler{
		service:    service,
		sweeper:    sweeper,
		verifier:   verifier,
		skipVerify: skipVerify,
		logger:     log,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	{
		checkout := v1.Group("/checkout")
		{
			checkout.POST("/sessions", h.CreateCheckoutSession)
			checkout.GET("/sessions/:id", h.GetCheckoutSession)
		}

		v1.POST("/webhooks/payment", h.HandlePaymentWebhook)
		v1.POST("/events", h.TrackEvent)
		v1.POST("/conversions", h.ReportConversion)
		v1.POST("/outbox/sweep", h.SweepOutbox)
		v1.DELETE("/sessions/:id", h.ResetSession)
	}
}

func (h *Handler) HandleError(c *gin.Context, err error) {
	h.logger.ErrorwCtx(c.Request.Context(), "Request error",
		"error", err,
		"path", c.Request.URL.Path,
	)

	status := errors.ToHTTPStatus(err)
	response := errors.ToErrorResponse(err)

	c.JSON(status, response)
}

func (h *Handler) CreateCheckoutSession(c *gin.Context) {
	var req CreateCheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	sess, err := h.service.CreateCheckoutSession(c.Request.Context(), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, CheckoutSessionResponse{
		ID:           sess.ID,
		URL:          sess.URL,
		ClientSecret: sess.ClientSecret,
	})
}

func (h *Handler) GetCheckoutSession(c *gin.Context) {
	sess, err := h.service.GetCheckoutSession(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":             sess.ID,
		"payment_status": sess.PaymentStatus,
		"amount_total":   sess.AmountTotal,
		"currency":       sess.Currency,
		"customer_email": sess.CustomerDetails.Email,
	})
}

// HandlePaymentWebhook verifies the processor signature over the raw body
// before any parsing. A processing failure returns 5xx so the processor
// redelivers; the replay guard absorbs the duplicate.
func (h *Handler) HandlePaymentWebhook(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "read_error").Inc()
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	if h.skipVerify {
		h.logger.WarnwCtx(c.Request.Context(), "Webhook signature verification is disabled")
	} else if err := h.verifier.Verify(body, c.GetHeader("Stripe-Signature")); err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "signature_rejected").Inc()
		h.logger.WarnwCtx(c.Request.Context(), "Webhook signature rejected",
			"error", err,
		)
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrUnauthorized.WithCause(err)))
		return
	}

	ev, err := payment.ParseWebhookEvent(body)
	if err != nil {
		metrics.WebhookEventsTotal.WithLabelValues("unknown", "malformed").Inc()
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	if err := h.service.HandleWebhookEvent(c.Request.Context(), ev); err != nil {
		metrics.WebhookEventsTotal.WithLabelValues(ev.Type, "error").Inc()
		h.HandleError(c, err)
		return
	}

	metrics.WebhookEventsTotal.WithLabelValues(ev.Type, "processed").Inc()
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *Handler) TrackEvent(c *gin.Context) {
	var req TrackEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	eventID, skipped, err := h.service.TrackEvent(c.Request.Context(), req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, TrackEventResponse{
		Success: true,
		EventID: eventID,
		Skipped: skipped,
	})
}

func (h *Handler) ReportConversion(c *gin.Context) {
	var req ConversionReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errors.ToErrorResponse(errors.ErrValidation.WithCause(err)))
		return
	}

	if err := h.service.ReportConversion(c.Request.Context(), req.SessionID); err != nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}

// ResetSession clears the named-step dedup state and accumulated profile for
// a client session. The storefront calls it when a visitor starts over, so
// once-per-session events fire again on the new journey.
func (h *Handler) ResetSession(c *gin.Context) {
	h.service.ResetSession(c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"reset": true})
}

// SweepOutbox runs one cooperative sweep inline. Callers poll it the way the
// original system swept pending deliveries on page load.
func (h *Handler) SweepOutbox(c *gin.Context) {
	h.sweeper.Sweep(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"swept": true})
}
