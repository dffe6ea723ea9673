package outbox

import (
	"time"

	"scentry/internal/event"
)

// Record is a conversion that failed immediate delivery to one sink, plus the
// metadata the sweeper needs. Records are keyed by order id and sink name so
// a retry targets only the sink that failed, never sinks that already
// succeeded.
type Record struct {
	Event        event.Conversion `json:"event"`
	SinkName     string           `json:"sink_name"`
	DedupeKey    string           `json:"dedupe_key"`
	CreatedAt    time.Time        `json:"created_at"`
	AttemptCount int              `json:"attempt_count"`
}

// Key returns the storage key: "<orderID>:<sink>".
func (r Record) Key() string {
	return r.Event.OrderID + ":" + r.SinkName
}

func NewRecord(ev event.Conversion, sinkName, dedupeKey string, now time.Time) Record {
	return Record{
		Event:        ev,
		SinkName:     sinkName,
		DedupeKey:    dedupeKey,
		CreatedAt:    now,
		AttemptCount: 0,
	}
}
