package outbox

import (
	"context"
	"time"

	"scentry/internal/config"
	"scentry/internal/logger"
	"scentry/internal/sink"
	"scentry/pkg/metrics"
)

// Sweeper re-attempts delivery of everything in the outbox. It runs
// cooperatively, once at service start and whenever the sweep endpoint is
// hit, never on a timer. Records are processed independently with no ordering
// guarantee; a partially completed sweep resumes naturally on the next run
// because the store is scanned fresh each time.
type Sweeper struct {
	store  Store
	sinks  map[string]sink.Sink
	cfg    config.OutboxConfig
	logger logger.Logger
	now    func() time.Time
}

func NewSweeper(store Store, sinks []sink.Sink, cfg config.OutboxConfig, log logger.Logger) *Sweeper {
	byName := make(map[string]sink.Sink, len(sinks))
	for _, s := range sinks {
		byName[s.Name()] = s
	}
	return &Sweeper{
		store:  store,
		sinks:  byName,
		cfg:    cfg,
		logger: log,
		now:    time.Now,
	}
}

// Sweep walks every pending record: evict records past the age or attempt
// limit without delivering, redeliver the rest, delete on success, bump the
// attempt count on failure.
func (s *Sweeper) Sweep(ctx context.Context) {
	records, err := s.store.List(ctx)
	if err != nil {
		s.logger.WarnwCtx(ctx, "Outbox sweep aborted, store unavailable",
			"error", err,
		)
		metrics.SweepsTotal.WithLabelValues("error").Inc()
		return
	}

	var retried, delivered, evicted int
	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}

		switch s.sweepRecord(ctx, rec) {
		case sweepDelivered:
			delivered++
		case sweepRetried:
			retried++
		case sweepEvicted:
			evicted++
		}
	}

	if size, err := s.store.Size(ctx); err == nil {
		metrics.SetOutboxSize(size)
	}

	metrics.SweepsTotal.WithLabelValues("completed").Inc()
	s.logger.InfowCtx(ctx, "Outbox sweep completed",
		"scanned", len(records),
		"delivered", delivered,
		"retried", retried,
		"evicted", evicted,
	)
}

type sweepOutcome int

const (
	sweepDelivered sweepOutcome = iota
	sweepRetried
	sweepEvicted
)

func (s *Sweeper) sweepRecord(ctx context.Context, rec Record) sweepOutcome {
	now := s.now()

	if now.Sub(rec.CreatedAt) > s.cfg.MaxAge || rec.AttemptCount >= s.cfg.MaxAttempts {
		s.evict(ctx, rec, now)
		return sweepEvicted
	}

	target, ok := s.sinks[rec.SinkName]
	if !ok {
		// Sink removed from the registry since the record was written.
		s.evict(ctx, rec, now)
		return sweepEvicted
	}

	err := target.Deliver(ctx, rec.Event, rec.DedupeKey)
	if err == nil {
		if delErr := s.store.Delete(ctx, rec.Key()); delErr != nil {
			s.logger.WarnwCtx(ctx, "Failed to delete delivered outbox record",
				"key", rec.Key(),
				"error", delErr,
			)
		}
		metrics.OutboxRecordsTotal.WithLabelValues("delivered").Inc()
		s.logger.InfowCtx(ctx, "Outbox record redelivered",
			"sink", rec.SinkName,
			"dedupe_key", rec.DedupeKey,
			"attempts", rec.AttemptCount,
		)
		return sweepDelivered
	}

	rec.AttemptCount++
	if putErr := s.store.Put(ctx, rec); putErr != nil {
		s.logger.WarnwCtx(ctx, "Failed to update outbox record after retry failure",
			"key", rec.Key(),
			"error", putErr,
		)
	}
	metrics.OutboxRecordsTotal.WithLabelValues("retried").Inc()
	s.logger.WarnwCtx(ctx, "Outbox redelivery failed",
		"sink", rec.SinkName,
		"dedupe_key", rec.DedupeKey,
		"attempts", rec.AttemptCount,
		"error", err,
	)
	return sweepRetried
}

func (s *Sweeper) evict(ctx context.Context, rec Record, now time.Time) {
	if err := s.store.Delete(ctx, rec.Key()); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to evict outbox record",
			"key", rec.Key(),
			"error", err,
		)
		return
	}
	metrics.OutboxRecordsTotal.WithLabelValues("evicted").Inc()
	s.logger.InfowCtx(ctx, "Outbox record evicted",
		"sink", rec.SinkName,
		"dedupe_key", rec.DedupeKey,
		"age", now.Sub(rec.CreatedAt).String(),
		"attempts", rec.AttemptCount,
	)
}
