package cache

import (
	"sync"
	"time"

	"github.com/noah-isme/meal-gate-api/pkg/clock"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLStore is a process-scoped key/value store whose entries expire after a fixed TTL.
// Expired entries are dropped lazily on read.
type TTLStore[K comparable, V any] struct {
	mu    sync.RWMutex
	ttl   time.Duration
	clock clock.Clock
	items map[K]entry[V]
}

// NewTTLStore builds a store. A nil clock falls back to the system clock.
func NewTTLStore[K comparable, V any](ttl time.Duration, clk clock.Clock) *TTLStore[K, V] {
	if clk == nil {
		clk = clock.System{}
	}
	return &TTLStore[K, V]{
		ttl:   ttl,
		clock: clk,
		items: make(map[K]entry[V]),
	}
}

// Get returns the live value for key.
func (s *TTLStore[K, V]) Get(key K) (V, bool) {
	s.mu.RLock()
	item, ok := s.items[key]
	s.mu.RUnlock()
	var zero V
	if !ok {
		return zero, false
	}
	if !s.clock.Now().Before(item.expiresAt) {
		s.mu.Lock()
		if current, still := s.items[key]; still && current.expiresAt.Equal(item.expiresAt) {
			delete(s.items, key)
		}
		s.mu.Unlock()
		return zero, false
	}
	return item.value, true
}

// Set stores value under key for the store TTL.
func (s *TTLStore[K, V]) Set(key K, value V) {
	s.mu.Lock()
	s.items[key] = entry[V]{value: value, expiresAt: s.clock.Now().Add(s.ttl)}
	s.mu.Unlock()
}

// Delete removes key.
func (s *TTLStore[K, V]) Delete(key K) {
	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

// Len reports stored entries, expired ones included until they are read.
func (s *TTLStore[K, V]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}
