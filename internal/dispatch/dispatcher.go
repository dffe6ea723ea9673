package dispatch

import (
	"context"
	"sync"
	"time"

	"scentry/internal/event"
	"scentry/internal/logger"
	"scentry/internal/outbox"
	"scentry/internal/sink"
	"scentry/pkg/errors"
	"scentry/pkg/metrics"
)

// Dispatcher fans one conversion out to every registered sink. Its external
// contract is "never fails": tracking must not be able to break the checkout
// flow, so sink failures are contained here, classified, and either parked in
// the outbox (transient) or dropped (unconfigured, malformed).
type Dispatcher struct {
	sinks  []sink.Sink
	store  outbox.Store
	logger logger.Logger
	now    func() time.Time
}

func NewDispatcher(sinks []sink.Sink, store outbox.Store, log logger.Logger) *Dispatcher {
	return &Dispatcher{
		sinks:  sinks,
		store:  store,
		logger: log,
		now:    time.Now,
	}
}

// Dispatch delivers ev to all sinks concurrently and returns once every sink
// has been attempted. Failures in one sink never prevent the others from
// running.
func (d *Dispatcher) Dispatch(ctx context.Context, ev event.Conversion, dedupeKey string) {
	if err := ev.Validate(); err != nil {
		d.logger.WarnwCtx(ctx, "Dropping malformed conversion",
			"dedupe_key", dedupeKey,
			"error", err,
		)
		return
	}

	if total := ev.LineItemTotal(); len(ev.LineItems) > 0 && total != ev.AmountTotalMinorUnits {
		d.logger.WarnwCtx(ctx, "Conversion amount diverges from line item total",
			"dedupe_key", dedupeKey,
			"amount_total", ev.AmountTotalMinorUnits,
			"line_item_total", total,
		)
	}

	var wg sync.WaitGroup
	for _, target := range d.sinks {
		wg.Add(1)
		go func(target sink.Sink) {
			defer wg.Done()
			d.deliverOne(ctx, target, ev, dedupeKey)
		}(target)
	}
	wg.Wait()
}

// DispatchAsync schedules delivery and returns immediately. Callers on the
// checkout path use this so the user never waits on tracking; the work is
// abandoned if the process exits first, which the outbox tolerates. The
// context is detached from the caller's cancellation so an early HTTP
// response does not abort in-flight deliveries, but request-scoped log
// fields carry through.
func (d *Dispatcher) DispatchAsync(ctx context.Context, ev event.Conversion, dedupeKey string) {
	go d.Dispatch(context.WithoutCancel(ctx), ev, dedupeKey)
}

func (d *Dispatcher) deliverOne(ctx context.Context, target sink.Sink, ev event.Conversion, dedupeKey string) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.ErrorwCtx(ctx, "Sink panicked during delivery",
				"sink", target.Name(),
				"dedupe_key", dedupeKey,
				"error", errors.RecoverPanic(r),
			)
			metrics.SinkDeliveriesTotal.WithLabelValues(target.Name(), "panic").Inc()
		}
	}()

	start := d.now()
	err := target.Deliver(ctx, ev, dedupeKey)
	metrics.ObserveSinkDeliveryDuration(target.Name(), time.Since(start))

	switch {
	case err == nil:
		metrics.SinkDeliveriesTotal.WithLabelValues(target.Name(), "delivered").Inc()

	case sink.IsUnconfigured(err):
		// Retrying a permanently unconfigured sink is pointless.
		metrics.SinkDeliveriesTotal.WithLabelValues(target.Name(), "unconfigured").Inc()
		d.logger.WarnwCtx(ctx, "Sink not configured, conversion dropped for this sink",
			"sink", target.Name(),
			"dedupe_key", dedupeKey,
			"error", err,
		)

	case sink.IsMalformed(err):
		metrics.SinkDeliveriesTotal.WithLabelValues(target.Name(), "malformed").Inc()
		d.logger.WarnwCtx(ctx, "Sink rejected payload as malformed, dropped",
			"sink", target.Name(),
			"dedupe_key", dedupeKey,
			"error", err,
		)

	default:
		// Transient, or unclassified which we treat as transient.
		metrics.SinkDeliveriesTotal.WithLabelValues(target.Name(), "failed").Inc()
		d.parkInOutbox(ctx, target, ev, dedupeKey, err)
	}
}

func (d *Dispatcher) parkInOutbox(ctx context.Context, target sink.Sink, ev event.Conversion, dedupeKey string, cause error) {
	rec := outbox.NewRecord(ev, target.Name(), dedupeKey, d.now())
	if err := d.store.Put(ctx, rec); err != nil {
		d.logger.ErrorwCtx(ctx, "Failed to park conversion in outbox, delivery lost",
			"sink", target.Name(),
			"dedupe_key", dedupeKey,
			"error", err,
		)
		return
	}

	metrics.OutboxRecordsTotal.WithLabelValues("created").Inc()
	d.logger.WarnwCtx(ctx, "Sink delivery failed, parked for retry",
		"sink", target.Name(),
		"dedupe_key", dedupeKey,
		"error", cause,
	)
}
