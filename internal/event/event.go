package event

import (
	"fmt"
	"time"
)

// UTM keys captured at the start of the user journey and threaded through
// unchanged to every sink.
const (
	UTMSource   = "utm_source"
	UTMMedium   = "utm_medium"
	UTMCampaign = "utm_campaign"
	UTMTerm     = "utm_term"
	UTMContent  = "utm_content"
)

// UTMKeys is the fixed set of attribution parameters. Keys outside this set
// are dropped at the boundary.
var UTMKeys = []string{UTMSource, UTMMedium, UTMCampaign, UTMTerm, UTMContent}

// Customer carries the buyer's PII. Sinks hash or redact fields per their own
// contract; this struct is never sent anywhere verbatim.
type Customer struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Document string `json:"document,omitempty"`
}

// LineItem is one cart position at the time of purchase.
type LineItem struct {
	ProductID           string `json:"product_id"`
	Name                string `json:"name"`
	Quantity            int    `json:"quantity"`
	UnitPriceMinorUnits int64  `json:"unit_price_minor_units"`
}

// Conversion is a single business occurrence (a purchase) to be reported to
// every tracking destination. OrderID doubles as the cross-sink dedupe key
// when the caller derived it from the checkout session.
type Conversion struct {
	OrderID               string            `json:"order_id"`
	OccurredAt            time.Time         `json:"occurred_at"`
	Customer              Customer          `json:"customer"`
	TrackingParameters    map[string]string `json:"tracking_parameters"`
	AmountTotalMinorUnits int64             `json:"amount_total_minor_units"`
	Currency              string            `json:"currency"`
	SourceURL             string            `json:"source_url,omitempty"`
	LineItems             []LineItem        `json:"line_items"`
}

// Validate reports whether the conversion is deliverable at all. A failure
// here is permanent: retrying will not fix locally malformed data.
func (c *Conversion) Validate() error {
	if c.OrderID == "" {
		return fmt.Errorf("conversion missing order id")
	}
	if c.AmountTotalMinorUnits < 0 {
		return fmt.Errorf("conversion %s: negative amount %d", c.OrderID, c.AmountTotalMinorUnits)
	}
	for i, li := range c.LineItems {
		if li.Quantity <= 0 {
			return fmt.Errorf("conversion %s: line item %d has quantity %d", c.OrderID, i, li.Quantity)
		}
		if li.UnitPriceMinorUnits < 0 {
			return fmt.Errorf("conversion %s: line item %d has negative price", c.OrderID, i)
		}
	}
	return nil
}

// LineItemTotal sums quantity * unit price across all line items. The source
// system does not guarantee this equals AmountTotalMinorUnits; callers that
// care compare the two and log the divergence.
func (c *Conversion) LineItemTotal() int64 {
	var total int64
	for _, li := range c.LineItems {
		total += int64(li.Quantity) * li.UnitPriceMinorUnits
	}
	return total
}

// ContentIDs returns the product ids in cart order, for sinks that report
// content ids rather than full line items.
func (c *Conversion) ContentIDs() []string {
	ids := make([]string, 0, len(c.LineItems))
	for _, li := range c.LineItems {
		ids = append(ids, li.ProductID)
	}
	return ids
}

// FilterTracking keeps only the known UTM keys from params, preserving
// explicit empty values as absent.
func FilterTracking(params map[string]string) map[string]string {
	out := make(map[string]string, len(UTMKeys))
	for _, k := range UTMKeys {
		if v, ok := params[k]; ok && v != "" {
			out[k] = v
		}
	}
	return out
}
