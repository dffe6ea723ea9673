package broker

import (
	"context"

	"scentry/pkg/models"
)

// Producer publishes accepted conversions for downstream analytics. The
// service only writes; reporting consumers live elsewhere.
type Producer interface {
	Publish(ctx context.Context, topic string, msg models.MessageEnvelope) error
	Close() error
}
