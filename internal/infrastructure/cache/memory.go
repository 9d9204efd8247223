package cache

import (
	"sync"
	"time"
)

// storeItem represents a single entry with its expiration
type storeItem[V any] struct {
	Value      V
	Expiration time.Time
}

// MemoryStore is a thread-safe in-memory keyed store with idle expiry.
// Every read through GetOrCreate pushes the entry's expiration forward, so
// only entries that go unused for a full TTL are evicted.
type MemoryStore[V any] struct {
	data  map[string]storeItem[V]
	mutex sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	done  chan struct{}
	once  sync.Once
}

// NewMemoryStore creates a store whose entries expire after ttl of disuse.
// A background sweep removes expired entries every cleanupInterval until
// Close is called.
func NewMemoryStore[V any](ttl, cleanupInterval time.Duration) *MemoryStore[V] {
	store := &MemoryStore[V]{
		data: make(map[string]storeItem[V]),
		ttl:  ttl,
		now:  time.Now,
		done: make(chan struct{}),
	}

	if cleanupInterval > 0 {
		go store.cleanupExpired(cleanupInterval)
	}

	return store
}

// GetOrCreate returns the live value for key, calling create to build one
// when the key is missing or expired.
func (s *MemoryStore[V]) GetOrCreate(key string, create func() V) V {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	item, exists := s.data[key]
	if !exists || now.After(item.Expiration) {
		item.Value = create()
	}
	item.Expiration = now.Add(s.ttl)
	s.data[key] = item

	return item.Value
}

// cleanupExpired removes expired entries periodically
func (s *MemoryStore[V]) cleanupExpired(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.removeExpired()
		case <-s.done:
			return
		}
	}
}

func (s *MemoryStore[V]) removeExpired() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	now := s.now()
	for key, item := range s.data {
		if now.After(item.Expiration) {
			delete(s.data, key)
		}
	}
}

// Size returns the current number of entries, expired or not (for monitoring)
func (s *MemoryStore[V]) Size() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.data)
}

// Close stops the background sweep. It is safe to call more than once.
func (s *MemoryStore[V]) Close() {
	s.once.Do(func() { close(s.done) })
}
