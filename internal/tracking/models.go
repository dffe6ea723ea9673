package tracking

type CartItemRequest struct {
	PriceID             string `json:"price_id"`
	ProductID           string `json:"product_id"`
	Name                string `json:"name" binding:"required"`
	Quantity            int    `json:"quantity" binding:"required,gt=0"`
	UnitPriceMinorUnits int64  `json:"unit_price_minor_units"`
}

type CreateCheckoutRequest struct {
	Items              []CartItemRequest `json:"items" binding:"required,min=1,dive"`
	CustomerEmail      string            `json:"customer_email"`
	TrackingParameters map[string]string `json:"tracking_parameters"`
	ClientSessionID    string            `json:"client_session_id"`
	SuccessURL         string            `json:"success_url"`
	CancelURL          string            `json:"cancel_url"`
}

type CheckoutSessionResponse struct {
	ID           string `json:"id"`
	URL          string `json:"url,omitempty"`
	ClientSecret string `json:"client_secret,omitempty"`
}

// ConversionReportRequest is the client-side conversion trigger: the return
// page posts the session id it came back with, and the service resolves the
// rest from the payment processor.
type ConversionReportRequest struct {
	SessionID string `json:"session_id" binding:"required"`
}

type EventParameters struct {
	Value       float64  `json:"value,omitempty"`
	Currency    string   `json:"currency,omitempty"`
	ContentIDs  []string `json:"content_ids,omitempty"`
	ContentType string   `json:"content_type,omitempty"`
}

type UserDataRequest struct {
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	FirstName  string `json:"first_name,omitempty"`
	LastName   string `json:"last_name,omitempty"`
	ExternalID string `json:"external_id,omitempty"`
}

// TrackEventRequest reports a named funnel event (PageView, AddToCart,
// InitiateCheckout, ...). Once suppresses repeats of the same name within the
// client session.
type TrackEventRequest struct {
	EventName       string          `json:"event_name" binding:"required"`
	EventID         string          `json:"event_id"`
	Once            bool            `json:"once"`
	ClientSessionID string          `json:"client_session_id"`
	SourceURL       string          `json:"source_url"`
	Parameters      EventParameters `json:"parameters"`
	UserData        UserDataRequest `json:"user_data"`
}

type TrackEventResponse struct {
	Success bool   `json:"success"`
	EventID string `json:"id,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
}
