package dedup

import (
	"context"
	"fmt"
	"time"

	"scentry/internal/config"
	"scentry/internal/constants"
	"scentry/internal/logger"
	"scentry/pkg/metrics"
)

// Guard suppresses re-processing of a checkout session the service has
// already handled. Payment processors redeliver webhooks, and the client
// success page can race the webhook for the same session; whichever path
// claims the session id first wins, so the conversion is dispatched once.
//
// This is a process-level guard, not the cross-sink dedupe: sinks still
// receive the session id as dedupe key and collapse duplicates on their side.
type Guard struct {
	repo   Repository
	cfg    config.DedupConfig
	logger logger.Logger
}

func NewGuard(repo Repository, cfg config.DedupConfig, log logger.Logger) *Guard {
	return &Guard{
		repo:   repo,
		cfg:    cfg,
		logger: log,
	}
}

// Claim returns true when this caller is the first to process sessionID.
// On a Redis error the configured fallback applies: "allow" risks a duplicate
// dispatch (the sinks' dedupe keys absorb it), "deny" risks losing the
// conversion.
func (g *Guard) Claim(ctx context.Context, sessionID string) (bool, error) {
	if g.repo == nil {
		// No store configured: every claim wins. Sinks dedupe downstream.
		return true, nil
	}

	key := constants.CacheKeyPrefixConversion + sessionID
	ttl := time.Duration(g.cfg.TTLSeconds) * time.Second

	first, err := g.repo.SetNX(ctx, key, time.Now().Unix(), ttl)
	if err != nil {
		if g.cfg.OnRedisError == constants.FallbackAllow {
			metrics.FallbackUsageTotal.WithLabelValues("dedup", "allow_on_error", err.Error()).Inc()
			g.logger.WarnwCtx(ctx, "Redis error during replay check, allowing dispatch (fallback: allow)",
				"session_id", sessionID,
				"error", err,
			)
			return true, nil
		}
		metrics.FallbackUsageTotal.WithLabelValues("dedup", "deny_on_error", err.Error()).Inc()
		return false, fmt.Errorf("replay check failed for session %s: %w", sessionID, err)
	}

	if !first {
		g.logger.InfowCtx(ctx, "Session already processed, skipping dispatch",
			"session_id", sessionID,
		)
	}
	return first, nil
}
