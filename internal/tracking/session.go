package tracking

import (
	"sync"
	"time"

	"scentry/internal/event"
)

const defaultSessionTTL = 30 * time.Minute

// clientSession holds the per-browser-session tracking state: which named
// steps already fired and whatever PII the funnel captured so far.
type clientSession struct {
	tracker  *event.Tracker
	profile  *event.Profile
	lastSeen time.Time
}

type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*clientSession
	ttl      time.Duration
	now      func() time.Time
}

func newSessionRegistry(ttl time.Duration) *sessionRegistry {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &sessionRegistry{
		sessions: make(map[string]*clientSession),
		ttl:      ttl,
		now:      time.Now,
	}
}

// get returns the session for id, creating it on first sight. Stale sessions
// are pruned opportunistically on each call.
func (r *sessionRegistry) get(id string) *clientSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for key, sess := range r.sessions {
		if now.Sub(sess.lastSeen) > r.ttl {
			delete(r.sessions, key)
		}
	}

	sess, ok := r.sessions[id]
	if !ok {
		sess = &clientSession{
			tracker: event.NewTracker(),
			profile: event.NewProfile(),
		}
		r.sessions[id] = sess
	}
	sess.lastSeen = now
	return sess
}

func (r *sessionRegistry) reset(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}
