package outbox

import (
	"context"
	"sync"
)

// Store is the durable key-value shim behind the outbox. Delivery guarantees
// are best effort: the store is local to this service instance, has no
// cross-instance visibility, and losing it loses only pending retries.
type Store interface {
	Put(ctx context.Context, rec Record) error
	List(ctx context.Context) ([]Record, error)
	Delete(ctx context.Context, key string) error
	Size(ctx context.Context) (int, error)
}

// MemoryStore keeps records in a map. Used in tests and as the fallback when
// no Redis is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]Record)}
}

func (s *MemoryStore) Put(ctx context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[rec.Key()] = rec
	return nil
}

func (s *MemoryStore) List(ctx context.Context) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.records))
	for _, rec := range s.records {
		out = append(out, rec)
	}
	return out, nil
}

func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

func (s *MemoryStore) Size(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}

// Get is a test helper; the sweeper only ever scans.
func (s *MemoryStore) Get(key string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	return rec, ok
}
