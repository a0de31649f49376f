// Package tiercache implements the generic two-level cache: an
// in-process L1 store backed by a remote key-value store, composed
// with a codec and a performance monitor. Grounded on the teacher's
// internal/cache.MultiLevelCache (L1 + L2 composition) generalized
// from a fixed lru.Cache[string, []byte] to a TTL-aware store over
// arbitrary decoded values, since the spec requires per-entry expiry
// that golang-lru/v2 does not expose.
package tiercache

import (
	"container/list"
	"strings"
	"sync"
	"time"
)

// l1Entry is the value held at each list element: the decoded value
// plus its absolute expiry.
type l1Entry struct {
	key       string
	value     interface{}
	expiresAt time.Time
}

// L1Store is a bounded, in-process map with TTL expiry and FIFO
// eviction. Overwriting a key moves it to the tail of the eviction
// order, matching the source's insertion-order semantics (spec.md
// §4.1). Safe for concurrent use.
type L1Store struct {
	mu      sync.Mutex
	maxSize int
	order   *list.List
	index   map[string]*list.Element
}

// NewL1Store creates a store bounded at maxSize entries. maxSize <= 0
// means unbounded.
func NewL1Store(maxSize int) *L1Store {
	return &L1Store{
		maxSize: maxSize,
		order:   list.New(),
		index:   make(map[string]*list.Element),
	}
}

// Get returns the value for key if present and not expired. An
// expired entry is removed and reported absent.
func (s *L1Store) Get(key string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.index[key]
	if !ok {
		return nil, false
	}
	entry := elem.Value.(*l1Entry)
	if time.Now().After(entry.expiresAt) {
		s.removeElementLocked(elem)
		return nil, false
	}
	return entry.value, true
}

// Set inserts or overwrites key with value, expiring after ttl. If
// ttl <= 0 the entry never expires (an effectively infinite ttl is
// not supported by the spec's contract, but a zero value is rejected
// by Cache before reaching here; L1Store itself stays permissive).
func (s *L1Store) Set(key string, value interface{}, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiresAt := time.Now().Add(ttl)
	if elem, ok := s.index[key]; ok {
		entry := elem.Value.(*l1Entry)
		entry.value = value
		entry.expiresAt = expiresAt
		s.order.MoveToBack(elem)
		return
	}

	if s.maxSize > 0 && s.order.Len() >= s.maxSize {
		s.evictOldestLocked()
	}

	elem := s.order.PushBack(&l1Entry{key: key, value: value, expiresAt: expiresAt})
	s.index[key] = elem
}

// evictOldestLocked removes the front of the order list. Called with
// mu held.
func (s *L1Store) evictOldestLocked() {
	front := s.order.Front()
	if front == nil {
		return
	}
	s.removeElementLocked(front)
}

func (s *L1Store) removeElementLocked(elem *list.Element) {
	entry := elem.Value.(*l1Entry)
	delete(s.index, entry.key)
	s.order.Remove(elem)
}

// Delete removes key, reporting whether it was present.
func (s *L1Store) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.index[key]
	if !ok {
		return false
	}
	s.removeElementLocked(elem)
	return true
}

// Exists reports whether key is present and unexpired, without
// extending its lifetime.
func (s *L1Store) Exists(key string) bool {
	_, ok := s.Get(key)
	return ok
}

// Clear removes every entry.
func (s *L1Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order.Init()
	s.index = make(map[string]*list.Element)
}

// Keys returns every non-expired key, in insertion order. Expired
// entries encountered during the scan are evicted.
func (s *L1Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	keys := make([]string, 0, s.order.Len())
	var next *list.Element
	for elem := s.order.Front(); elem != nil; elem = next {
		next = elem.Next()
		entry := elem.Value.(*l1Entry)
		if now.After(entry.expiresAt) {
			s.removeElementLocked(elem)
			continue
		}
		keys = append(keys, entry.key)
	}
	return keys
}

// Len returns the current entry count, including not-yet-expired
// entries that a concurrent Get would still evict lazily.
func (s *L1Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}

// MaxSize returns the configured entry ceiling (0 meaning unbounded),
// used by AICache's performance summary to judge L1 utilization.
func (s *L1Store) MaxSize() int {
	return s.maxSize
}

// DeleteContaining removes every key containing substr, returning the
// count removed. Grounds spec.md §4.4's invalidate_pattern contract
// for the L1 half of the operation.
func (s *L1Store) DeleteContaining(substr string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	var toRemove []*list.Element
	for elem := s.order.Front(); elem != nil; elem = elem.Next() {
		entry := elem.Value.(*l1Entry)
		if strings.Contains(entry.key, substr) {
			toRemove = append(toRemove, elem)
		}
	}
	for _, elem := range toRemove {
		s.removeElementLocked(elem)
	}
	return len(toRemove)
}
