package tracking

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSessionRegistryReusesSession(t *testing.T) {
	r := newSessionRegistry(time.Minute)

	first := r.get("sess_client_1")
	again := r.get("sess_client_1")
	assert.Same(t, first, again)

	other := r.get("sess_client_2")
	assert.NotSame(t, first, other)
}

func TestSessionRegistryPrunesStaleSessions(t *testing.T) {
	r := newSessionRegistry(time.Minute)
	current := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return current }

	stale := r.get("sess_client_1")
	stale.tracker.TrackOnce("InitiateCheckout")

	current = current.Add(2 * time.Minute)
	fresh := r.get("sess_client_1")

	assert.NotSame(t, stale, fresh)
	assert.True(t, fresh.tracker.TrackOnce("InitiateCheckout"), "stale state must not survive the TTL")
}

func TestSessionRegistryTouchExtendsLifetime(t *testing.T) {
	r := newSessionRegistry(time.Minute)
	current := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return current }

	first := r.get("sess_client_1")

	// Touch every 30s; the session outlives several TTL windows.
	for i := 0; i < 5; i++ {
		current = current.Add(30 * time.Second)
		assert.Same(t, first, r.get("sess_client_1"))
	}
}

func TestSessionRegistryReset(t *testing.T) {
	r := newSessionRegistry(time.Minute)

	sess := r.get("sess_client_1")
	sess.tracker.TrackOnce("InitiateCheckout")
	sess.profile.SetEmail("ada@example.com")

	r.reset("sess_client_1")

	replaced := r.get("sess_client_1")
	assert.NotSame(t, sess, replaced)
	assert.True(t, replaced.tracker.TrackOnce("InitiateCheckout"))
	assert.Empty(t, replaced.profile.Snapshot().Email)
}

func TestSessionRegistryZeroTTLFallsBack(t *testing.T) {
	r := newSessionRegistry(0)
	assert.Equal(t, defaultSessionTTL, r.ttl)
}
