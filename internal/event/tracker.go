package event

import "sync"

// Tracker suppresses duplicate firing of the same named step event (quiz
// steps, page views) within one session lifetime. This is a coarser dedup
// than the order-id key used for purchases and must not be conflated with it.
//
// The set is owned by the Tracker instance and injected at call sites, so
// tests reset it by constructing a fresh one.
type Tracker struct {
	mu    sync.Mutex
	fired map[string]struct{}
}

func NewTracker() *Tracker {
	return &Tracker{fired: make(map[string]struct{})}
}

// TrackOnce records the event name and reports whether this call was the
// first; callers fire the event only on true.
func (t *Tracker) TrackOnce(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.fired[name]; ok {
		return false
	}
	t.fired[name] = struct{}{}
	return true
}

// Reset clears the fired set, the equivalent of a full page reload.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.fired = make(map[string]struct{})
}

// Profile accumulates PII captured earlier in the journey (a lead form, a
// quiz email field) so later events can be enriched with it. Updated via
// explicit setters and read explicitly by the Conversions-API sink.
type Profile struct {
	mu         sync.RWMutex
	email      string
	phone      string
	firstName  string
	lastName   string
	externalID string
}

func NewProfile() *Profile {
	return &Profile{}
}

func (p *Profile) SetEmail(email string) {
	p.mu.Lock()
	p.email = email
	p.mu.Unlock()
}

func (p *Profile) SetPhone(phone string) {
	p.mu.Lock()
	p.phone = phone
	p.mu.Unlock()
}

func (p *Profile) SetName(first, last string) {
	p.mu.Lock()
	p.firstName = first
	p.lastName = last
	p.mu.Unlock()
}

func (p *Profile) SetExternalID(id string) {
	p.mu.Lock()
	p.externalID = id
	p.mu.Unlock()
}

// Snapshot returns a copy of the accumulated fields.
func (p *Profile) Snapshot() ProfileData {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return ProfileData{
		Email:      p.email,
		Phone:      p.phone,
		FirstName:  p.firstName,
		LastName:   p.lastName,
		ExternalID: p.externalID,
	}
}

type ProfileData struct {
	Email      string
	Phone      string
	FirstName  string
	LastName   string
	ExternalID string
}
