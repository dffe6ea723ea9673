package event

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

const idPrefix = "evt_"

// NewEventID generates an identifier for an ad-hoc event: prefix, millisecond
// timestamp, random suffix. Unique with overwhelming probability across
// concurrent callers.
//
// Ad-hoc ids must never be used where cross-path deduplication matters: the
// checkout-session id is the only identifier both the client path and the
// webhook path can independently derive for the same purchase, so purchase
// events use DedupeKey instead.
func NewEventID() string {
	return fmt.Sprintf("%s%d_%s", idPrefix, time.Now().UnixMilli(), uuid.NewString()[:8])
}

// DedupeKey returns the caller-supplied id when present, falling back to a
// generated one. Callers holding a checkout-session id pass it here so both
// delivery paths report the purchase under the same key.
func DedupeKey(suppliedID string) string {
	if suppliedID != "" {
		return suppliedID
	}
	return NewEventID()
}
