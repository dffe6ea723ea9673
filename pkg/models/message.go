package models

import "time"

// MessageEnvelope wraps a conversion for downstream analytics consumers. The
// payload carries the business data; metadata records what the pipeline did
// with it before publishing.
type MessageEnvelope struct {
	ID        string                 `json:"id"`
	Source    string                 `json:"source"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   map[string]interface{} `json:"payload"`
	Metadata  Metadata               `json:"metadata"`
}

type Metadata struct {
	RequestID string     `json:"request_id,omitempty"`
	Dedup     *DedupInfo `json:"dedup,omitempty"`
}

// DedupInfo records the replay-guard decision for this conversion.
type DedupInfo struct {
	Key       string    `json:"key"`
	IsFirst   bool      `json:"is_first"`
	CheckedAt time.Time `json:"checked_at"`
}
