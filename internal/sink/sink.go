package sink

import (
	"context"
	"errors"
	"fmt"

	"scentry/internal/event"
)

// Sink is one independent destination for a conversion event. Deliver must
// not mutate the event; the dedupe key is the identifier the destination uses
// to collapse duplicate reports of the same purchase.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev event.Conversion, dedupeKey string) error
}

// Delivery failure taxonomy. Transient failures are retry eligible; the other
// two classes are logged and dropped, since retrying cannot fix a missing
// credential or locally malformed data.
var (
	ErrTransient    = errors.New("transient delivery failure")
	ErrUnconfigured = errors.New("sink not configured")
	ErrMalformed    = errors.New("malformed payload")
)

func Transientf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrTransient)...)
}

func Unconfiguredf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrUnconfigured)...)
}

func Malformedf(format string, args ...interface{}) error {
	return fmt.Errorf(format+": %w", append(args, ErrMalformed)...)
}

func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

func IsUnconfigured(err error) bool {
	return errors.Is(err, ErrUnconfigured)
}

func IsMalformed(err error) bool {
	return errors.Is(err, ErrMalformed)
}
