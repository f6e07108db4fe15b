package cache

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// storeEntry is a stored query result with its expiry bookkeeping.
type storeEntry struct {
	fingerprint  string
	dataSourceID string
	value        any
	insertedAt   time.Time
	ttl          time.Duration
}

// expired reports whether the entry is past its TTL at now.
func (e *storeEntry) expired(now time.Time) bool {
	return now.Sub(e.insertedAt) >= e.ttl
}

// LRUStore is a bounded in-memory store with least-recently-used eviction,
// lazy TTL expiry, and a data-source index for bulk invalidation.
//
// A single mutex guards the recency list, the lookup map, the index, and
// the counters, so every operation runs as one atomic critical section.
// No operation performs I/O; all complete in amortized O(1) and may run
// directly on request-serving goroutines.
//
// Expiry is evaluated only at read time. An entry past its TTL that is
// never read keeps its capacity slot until a read sweeps it or eviction
// displaces it; Stats.Size includes such entries.
type LRUStore struct {
	mu       sync.Mutex
	capacity int
	policy   Policy

	ll    *list.List               // front = most recently used
	items map[string]*list.Element // fingerprint -> element

	// byDataSource maps a data-source ID to the fingerprints currently
	// stored for it, maintained in the same critical section as every
	// store mutation. Fingerprints are one-way digests, so this index is
	// the only route back from a data source to its entries.
	byDataSource map[string]map[string]struct{}

	hits     uint64
	misses   uint64
	recorder EventRecorder
}

// StoreOption configures an LRUStore.
type StoreOption func(*LRUStore)

// WithRecorder attaches an EventRecorder for store lifecycle events.
func WithRecorder(r EventRecorder) StoreOption {
	return func(s *LRUStore) {
		if r != nil {
			s.recorder = r
		}
	}
}

// NewLRUStore creates a store holding at most capacity entries.
func NewLRUStore(capacity int, policy Policy, opts ...StoreOption) (*LRUStore, error) {
	if capacity <= 0 {
		return nil, ErrInvalidCapacity
	}
	if policy.DefaultTTL <= 0 {
		return nil, ErrInvalidTTL
	}

	s := &LRUStore{
		capacity:     capacity,
		policy:       policy,
		ll:           list.New(),
		items:        make(map[string]*list.Element, capacity),
		byDataSource: make(map[string]map[string]struct{}),
		recorder:     NopRecorder{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Get returns the value stored under fingerprint and promotes it to most
// recently used. An expired entry is removed and counted as a miss.
func (s *LRUStore) Get(ctx context.Context, fingerprint string) (any, bool) {
	s.mu.Lock()
	elem, ok := s.items[fingerprint]
	if !ok {
		s.misses++
		s.mu.Unlock()
		s.recorder.RecordMiss(ctx)
		return nil, false
	}

	ent := elem.Value.(*storeEntry)
	if ent.expired(time.Now()) {
		s.removeElement(elem)
		s.misses++
		s.mu.Unlock()
		s.recorder.RecordExpiry(ctx)
		s.recorder.RecordMiss(ctx)
		return nil, false
	}

	s.ll.MoveToFront(elem)
	s.hits++
	value := ent.value
	s.mu.Unlock()
	s.recorder.RecordHit(ctx)
	return value, true
}

// Set stores value under fingerprint for the data source. A ttl <= 0
// selects the policy default.
//
// Overwriting an existing fingerprint replaces the value, resets the
// insertion timestamp and TTL, and promotes the entry; size is unchanged
// so no eviction occurs. Inserting a new key at capacity first evicts the
// least-recently-used entry. Recency is the sole eviction criterion; an
// entry with time left on its TTL is still evicted if it is the
// oldest-touched.
func (s *LRUStore) Set(ctx context.Context, fingerprint, dataSourceID string, value any, ttl time.Duration) error {
	if err := ValidateFingerprint(fingerprint); err != nil {
		return err
	}
	ttl = s.policy.EffectiveTTL(ttl)
	now := time.Now()

	s.mu.Lock()

	if elem, ok := s.items[fingerprint]; ok {
		ent := elem.Value.(*storeEntry)
		s.unindex(ent)
		ent.dataSourceID = dataSourceID
		ent.value = value
		ent.insertedAt = now
		ent.ttl = ttl
		s.index(ent)
		s.ll.MoveToFront(elem)
		s.mu.Unlock()
		return nil
	}

	evicted := false
	for s.ll.Len() >= s.capacity {
		if back := s.ll.Back(); back != nil {
			s.removeElement(back)
			evicted = true
		}
	}

	ent := &storeEntry{
		fingerprint:  fingerprint,
		dataSourceID: dataSourceID,
		value:        value,
		insertedAt:   now,
		ttl:          ttl,
	}
	s.items[fingerprint] = s.ll.PushFront(ent)
	s.index(ent)
	s.mu.Unlock()

	if evicted {
		s.recorder.RecordEviction(ctx)
	}
	return nil
}

// Delete removes the entry under fingerprint and reports whether an entry
// was removed. Idempotent.
func (s *LRUStore) Delete(_ context.Context, fingerprint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.items[fingerprint]
	if !ok {
		return false
	}
	s.removeElement(elem)
	return true
}

// DeleteByDataSource removes every entry stored for the data source and
// returns the number removed.
func (s *LRUStore) DeleteByDataSource(_ context.Context, dataSourceID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	fps, ok := s.byDataSource[dataSourceID]
	if !ok {
		return 0
	}

	removed := 0
	for fp := range fps {
		if elem, ok := s.items[fp]; ok {
			s.removeElement(elem)
			removed++
		}
	}
	return removed
}

// Clear removes all entries, empties the data-source index, and resets the
// hit/miss counters.
func (s *LRUStore) Clear(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ll.Init()
	s.items = make(map[string]*list.Element, s.capacity)
	s.byDataSource = make(map[string]map[string]struct{})
	s.hits = 0
	s.misses = 0
}

// Len returns the number of stored entries, expired-but-unswept included.
func (s *LRUStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ll.Len()
}

// Stats returns a snapshot of counters and occupancy.
func (s *LRUStore) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	limit := s.ll.Len()
	if limit > KeySampleLimit {
		limit = KeySampleLimit
	}
	sample := make([]string, 0, limit)
	for elem := s.ll.Front(); elem != nil && len(sample) < KeySampleLimit; elem = elem.Next() {
		sample = append(sample, elem.Value.(*storeEntry).fingerprint)
	}

	return Stats{
		Hits:      s.hits,
		Misses:    s.misses,
		HitRate:   hitRate(s.hits, s.misses),
		Size:      s.ll.Len(),
		Capacity:  s.capacity,
		KeySample: sample,
	}
}

// removeElement unlinks an element from the list, the map, and the index.
// Caller must hold the lock.
func (s *LRUStore) removeElement(elem *list.Element) {
	ent := elem.Value.(*storeEntry)
	s.ll.Remove(elem)
	delete(s.items, ent.fingerprint)
	s.unindex(ent)
}

// index and unindex keep the data-source index in step with the store.
// Caller must hold the lock.
func (s *LRUStore) index(ent *storeEntry) {
	fps, ok := s.byDataSource[ent.dataSourceID]
	if !ok {
		fps = make(map[string]struct{})
		s.byDataSource[ent.dataSourceID] = fps
	}
	fps[ent.fingerprint] = struct{}{}
}

func (s *LRUStore) unindex(ent *storeEntry) {
	fps, ok := s.byDataSource[ent.dataSourceID]
	if !ok {
		return
	}
	delete(fps, ent.fingerprint)
	if len(fps) == 0 {
		delete(s.byDataSource, ent.dataSourceID)
	}
}
