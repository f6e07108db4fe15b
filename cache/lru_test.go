package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"testing"
	"time"
)

// testFP derives a valid fingerprint from a seed for store-level tests.
func testFP(seed string) string {
	sum := sha256.Sum256([]byte(seed))
	return hex.EncodeToString(sum[:])
}

func newTestStore(t *testing.T, capacity int) *LRUStore {
	t.Helper()
	s, err := NewLRUStore(capacity, DefaultPolicy())
	if err != nil {
		t.Fatalf("NewLRUStore failed: %v", err)
	}
	return s
}

func TestLRUStore_InvalidConstruction(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		policy   Policy
		wantErr  error
	}{
		{"zero capacity", 0, DefaultPolicy(), ErrInvalidCapacity},
		{"negative capacity", -1, DefaultPolicy(), ErrInvalidCapacity},
		{"zero default TTL", 10, Policy{}, ErrInvalidTTL},
		{"valid", 10, DefaultPolicy(), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLRUStore(tt.capacity, tt.policy)
			if err != tt.wantErr {
				t.Errorf("NewLRUStore(%d) error = %v, want %v", tt.capacity, err, tt.wantErr)
			}
		})
	}
}

func TestLRUStore_GetSetDelete(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()
	fp := testFP("k1")

	// Miss on empty store
	if _, ok := s.Get(ctx, fp); ok {
		t.Error("Get on empty store should return ok=false")
	}

	// Set then Get
	if err := s.Set(ctx, fp, "ds-1", map[string]any{"rows": 3}, time.Minute); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, ok := s.Get(ctx, fp)
	if !ok {
		t.Fatal("Get after Set should return ok=true")
	}
	if got.(map[string]any)["rows"] != 3 {
		t.Errorf("Get returned %v, want rows=3", got)
	}

	// Delete reports removal
	if !s.Delete(ctx, fp) {
		t.Error("Delete of existing entry should return true")
	}
	if _, ok := s.Get(ctx, fp); ok {
		t.Error("Get after Delete should return ok=false")
	}

	// Delete is idempotent
	if s.Delete(ctx, fp) {
		t.Error("Delete of missing entry should return false")
	}
}

func TestLRUStore_InvalidFingerprintRejected(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()

	if err := s.Set(ctx, "not-a-fingerprint", "ds-1", "v", 0); err != ErrInvalidFingerprint {
		t.Errorf("Set with invalid fingerprint: error = %v, want %v", err, ErrInvalidFingerprint)
	}
}

func TestLRUStore_CapacityBound(t *testing.T) {
	const capacity = 8
	s := newTestStore(t, capacity)
	ctx := context.Background()

	for i := 0; i < capacity*3; i++ {
		fp := testFP(fmt.Sprintf("k%d", i))
		if err := s.Set(ctx, fp, "ds-1", i, 0); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
		if got := s.Len(); got > capacity {
			t.Fatalf("size %d exceeds capacity %d after %d inserts", got, capacity, i+1)
		}
	}
	if got := s.Len(); got != capacity {
		t.Errorf("Len() = %d, want %d", got, capacity)
	}
}

func TestLRUStore_EvictsLeastRecentlyUsed(t *testing.T) {
	s := newTestStore(t, 2)
	ctx := context.Background()

	fpA, fpB, fpC := testFP("A"), testFP("B"), testFP("C")

	_ = s.Set(ctx, fpA, "ds-1", "a", 0)
	_ = s.Set(ctx, fpB, "ds-1", "b", 0)

	// Promote A; B becomes the eviction candidate.
	if _, ok := s.Get(ctx, fpA); !ok {
		t.Fatal("Get(A) should hit")
	}

	_ = s.Set(ctx, fpC, "ds-1", "c", 0)

	if _, ok := s.Get(ctx, fpA); !ok {
		t.Error("A should survive eviction after promotion")
	}
	if _, ok := s.Get(ctx, fpC); !ok {
		t.Error("C should be present after insert")
	}
	if _, ok := s.Get(ctx, fpB); ok {
		t.Error("B should have been evicted as least recently used")
	}
}

func TestLRUStore_EvictionIgnoresRemainingTTL(t *testing.T) {
	s := newTestStore(t, 2)
	ctx := context.Background()

	fpA, fpB, fpC := testFP("A"), testFP("B"), testFP("C")

	// A has a long TTL but is the oldest-touched; recency alone decides.
	_ = s.Set(ctx, fpA, "ds-1", "a", time.Hour)
	_ = s.Set(ctx, fpB, "ds-1", "b", time.Minute)
	_ = s.Set(ctx, fpC, "ds-1", "c", time.Minute)

	if _, ok := s.Get(ctx, fpA); ok {
		t.Error("A should have been evicted despite its remaining TTL")
	}
	if _, ok := s.Get(ctx, fpB); !ok {
		t.Error("B should still be present")
	}
}

func TestLRUStore_OverwriteDoesNotEvict(t *testing.T) {
	s := newTestStore(t, 2)
	ctx := context.Background()

	fpA, fpB := testFP("A"), testFP("B")

	_ = s.Set(ctx, fpA, "ds-1", "a1", 0)
	_ = s.Set(ctx, fpB, "ds-1", "b", 0)
	_ = s.Set(ctx, fpA, "ds-1", "a2", 0)

	if got := s.Len(); got != 2 {
		t.Errorf("Len() = %d after overwrite, want 2", got)
	}
	got, ok := s.Get(ctx, fpA)
	if !ok || got != "a2" {
		t.Errorf("Get(A) = (%v, %v), want (a2, true)", got, ok)
	}
	if _, ok := s.Get(ctx, fpB); !ok {
		t.Error("B should not have been evicted by an overwrite")
	}
}

func TestLRUStore_SetPromotesExistingKey(t *testing.T) {
	s := newTestStore(t, 2)
	ctx := context.Background()

	fpA, fpB, fpC := testFP("A"), testFP("B"), testFP("C")

	_ = s.Set(ctx, fpA, "ds-1", "a", 0)
	_ = s.Set(ctx, fpB, "ds-1", "b", 0)
	_ = s.Set(ctx, fpA, "ds-1", "a2", 0) // promotes A; B is now oldest
	_ = s.Set(ctx, fpC, "ds-1", "c", 0)

	if _, ok := s.Get(ctx, fpB); ok {
		t.Error("B should have been evicted; Set on A counts as a touch")
	}
	if _, ok := s.Get(ctx, fpA); !ok {
		t.Error("A should survive after promotion by Set")
	}
}

func TestLRUStore_TTLExpiry(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()
	fp := testFP("expiring")

	if err := s.Set(ctx, fp, "ds-1", "v", 50*time.Millisecond); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	// Present immediately
	if _, ok := s.Get(ctx, fp); !ok {
		t.Error("Get immediately after Set should hit")
	}

	time.Sleep(100 * time.Millisecond)

	// Expired: the read misses and sweeps the entry.
	if _, ok := s.Get(ctx, fp); ok {
		t.Error("Get after TTL should miss")
	}
	if got := s.Stats().Size; got != 0 {
		t.Errorf("Stats().Size = %d after expiring read, want 0", got)
	}
}

func TestLRUStore_ExpiredEntryOccupiesSlotUntilRead(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()
	fp := testFP("stale")

	_ = s.Set(ctx, fp, "ds-1", "v", time.Nanosecond)
	time.Sleep(time.Millisecond)

	// Lazy expiry only: the slot stays occupied until a read sweeps it.
	if got := s.Len(); got != 1 {
		t.Errorf("Len() = %d before the sweeping read, want 1", got)
	}
	if _, ok := s.Get(ctx, fp); ok {
		t.Error("Get should treat the stale entry as absent")
	}
	if got := s.Len(); got != 0 {
		t.Errorf("Len() = %d after the sweeping read, want 0", got)
	}
}

func TestLRUStore_OverwriteResetsTTL(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()
	fp := testFP("refreshed")

	_ = s.Set(ctx, fp, "ds-1", "v1", 200*time.Millisecond)
	time.Sleep(120 * time.Millisecond)
	_ = s.Set(ctx, fp, "ds-1", "v2", 200*time.Millisecond)
	time.Sleep(120 * time.Millisecond)

	// 240ms after the first write but only 120ms after the overwrite.
	got, ok := s.Get(ctx, fp)
	if !ok {
		t.Fatal("overwrite should have reset the TTL clock")
	}
	if got != "v2" {
		t.Errorf("Get returned %v, want v2", got)
	}
}

func TestLRUStore_HitRateArithmetic(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()
	fp := testFP("hot")

	_ = s.Set(ctx, fp, "ds-1", "v", time.Minute)

	for i := 0; i < 7; i++ {
		if _, ok := s.Get(ctx, fp); !ok {
			t.Fatalf("Get %d should hit", i)
		}
	}
	for i := 0; i < 3; i++ {
		if _, ok := s.Get(ctx, testFP(fmt.Sprintf("absent-%d", i))); ok {
			t.Fatalf("Get absent-%d should miss", i)
		}
	}

	st := s.Stats()
	if st.Hits != 7 || st.Misses != 3 {
		t.Errorf("counters = %d hits / %d misses, want 7/3", st.Hits, st.Misses)
	}
	if st.HitRate != 70.00 {
		t.Errorf("HitRate = %.2f, want 70.00", st.HitRate)
	}
}

func TestLRUStore_HitRateZeroWithoutLookups(t *testing.T) {
	s := newTestStore(t, 10)

	if got := s.Stats().HitRate; got != 0 {
		t.Errorf("HitRate = %.2f with no lookups, want 0", got)
	}
}

func TestLRUStore_HitRateRoundsToTwoDecimals(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()
	fp := testFP("hot")

	_ = s.Set(ctx, fp, "ds-1", "v", time.Minute)

	// 1 hit, 2 misses: 33.333...% rounds to 33.33.
	_, _ = s.Get(ctx, fp)
	_, _ = s.Get(ctx, testFP("absent-1"))
	_, _ = s.Get(ctx, testFP("absent-2"))

	if got := s.Stats().HitRate; got != 33.33 {
		t.Errorf("HitRate = %v, want 33.33", got)
	}
}

func TestLRUStore_StatsKeySample(t *testing.T) {
	s := newTestStore(t, 50)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		_ = s.Set(ctx, testFP(fmt.Sprintf("k%d", i)), "ds-1", i, 0)
	}

	st := s.Stats()
	if len(st.KeySample) != KeySampleLimit {
		t.Fatalf("KeySample length = %d, want %d", len(st.KeySample), KeySampleLimit)
	}
	// Most recently used first: the last key written leads the sample.
	if st.KeySample[0] != testFP("k24") {
		t.Errorf("KeySample[0] = %s, want fingerprint of k24", st.KeySample[0])
	}
	if st.Size != 25 || st.Capacity != 50 {
		t.Errorf("Size/Capacity = %d/%d, want 25/50", st.Size, st.Capacity)
	}
}

func TestLRUStore_ClearResetsEverything(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()
	fp := testFP("k")

	_ = s.Set(ctx, fp, "ds-1", "v", time.Minute)
	_, _ = s.Get(ctx, fp)
	_, _ = s.Get(ctx, testFP("absent"))

	s.Clear(ctx)

	st := s.Stats()
	if st.Hits != 0 || st.Misses != 0 || st.Size != 0 {
		t.Errorf("Stats after Clear = %+v, want zero hits, misses, size", st)
	}
	if len(st.KeySample) != 0 {
		t.Errorf("KeySample after Clear = %v, want empty", st.KeySample)
	}
	if s.DeleteByDataSource(ctx, "ds-1") != 0 {
		t.Error("data-source index should be empty after Clear")
	}
}

func TestLRUStore_DeleteByDataSource(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()

	_ = s.Set(ctx, testFP("q1"), "ds-1", 1, 0)
	_ = s.Set(ctx, testFP("q2"), "ds-1", 2, 0)
	_ = s.Set(ctx, testFP("q3"), "ds-2", 3, 0)

	if got := s.DeleteByDataSource(ctx, "ds-1"); got != 2 {
		t.Errorf("DeleteByDataSource(ds-1) = %d, want 2", got)
	}
	if _, ok := s.Get(ctx, testFP("q1")); ok {
		t.Error("q1 should have been removed with ds-1")
	}
	if _, ok := s.Get(ctx, testFP("q3")); !ok {
		t.Error("q3 belongs to ds-2 and should survive")
	}
	if got := s.DeleteByDataSource(ctx, "ds-1"); got != 0 {
		t.Errorf("second DeleteByDataSource(ds-1) = %d, want 0", got)
	}
}

func TestLRUStore_IndexTracksEvictionAndOverwrite(t *testing.T) {
	s := newTestStore(t, 2)
	ctx := context.Background()

	fpA, fpB, fpC := testFP("A"), testFP("B"), testFP("C")

	// A is evicted by the insert of C; the index must forget it.
	_ = s.Set(ctx, fpA, "ds-1", "a", 0)
	_ = s.Set(ctx, fpB, "ds-2", "b", 0)
	_ = s.Set(ctx, fpC, "ds-2", "c", 0)

	if got := s.DeleteByDataSource(ctx, "ds-1"); got != 0 {
		t.Errorf("DeleteByDataSource(ds-1) = %d after eviction, want 0", got)
	}

	// Overwriting under a new data source must move the index entry.
	_ = s.Set(ctx, fpB, "ds-3", "b2", 0)
	if got := s.DeleteByDataSource(ctx, "ds-3"); got != 1 {
		t.Errorf("DeleteByDataSource(ds-3) = %d after re-index, want 1", got)
	}
	if got := s.DeleteByDataSource(ctx, "ds-2"); got != 1 {
		t.Errorf("DeleteByDataSource(ds-2) = %d, want 1 (only C left)", got)
	}
}

func TestLRUStore_ExpiredReadCountsAsNormalMiss(t *testing.T) {
	s := newTestStore(t, 10)
	ctx := context.Background()
	fp := testFP("stale")

	_ = s.Set(ctx, fp, "ds-1", "v", time.Nanosecond)
	time.Sleep(time.Millisecond)
	_, _ = s.Get(ctx, fp)

	st := s.Stats()
	if st.Misses != 1 || st.Hits != 0 {
		t.Errorf("counters = %d hits / %d misses after expired read, want 0/1", st.Hits, st.Misses)
	}
}

// recordingRecorder counts events for recorder wiring tests.
type recordingRecorder struct {
	mu                               sync.Mutex
	hits, misses, evictions, expiries int
}

func (r *recordingRecorder) RecordHit(context.Context) {
	r.mu.Lock()
	r.hits++
	r.mu.Unlock()
}

func (r *recordingRecorder) RecordMiss(context.Context) {
	r.mu.Lock()
	r.misses++
	r.mu.Unlock()
}

func (r *recordingRecorder) RecordEviction(context.Context) {
	r.mu.Lock()
	r.evictions++
	r.mu.Unlock()
}

func (r *recordingRecorder) RecordExpiry(context.Context) {
	r.mu.Lock()
	r.expiries++
	r.mu.Unlock()
}

func TestLRUStore_RecorderReceivesEvents(t *testing.T) {
	rec := &recordingRecorder{}
	s, err := NewLRUStore(1, DefaultPolicy(), WithRecorder(rec))
	if err != nil {
		t.Fatalf("NewLRUStore failed: %v", err)
	}
	ctx := context.Background()

	_ = s.Set(ctx, testFP("A"), "ds-1", "a", 0)
	_, _ = s.Get(ctx, testFP("A"))     // hit
	_, _ = s.Get(ctx, testFP("nope")) // miss
	_ = s.Set(ctx, testFP("B"), "ds-1", "b", 0) // evicts A

	_ = s.Set(ctx, testFP("C"), "ds-1", "c", time.Nanosecond) // evicts B
	time.Sleep(time.Millisecond)
	_, _ = s.Get(ctx, testFP("C")) // expiry + miss

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.hits != 1 || rec.misses != 2 || rec.evictions != 2 || rec.expiries != 1 {
		t.Errorf("recorder saw hits=%d misses=%d evictions=%d expiries=%d, want 1/2/2/1",
			rec.hits, rec.misses, rec.evictions, rec.expiries)
	}
}

func TestLRUStore_ConcurrentAccess(t *testing.T) {
	s := newTestStore(t, 64)
	ctx := context.Background()

	const numGoroutines = 50
	const opsPerGoroutine = 500

	var wg sync.WaitGroup
	wg.Add(numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			for j := 0; j < opsPerGoroutine; j++ {
				fp := testFP(fmt.Sprintf("k%d", j%100))
				ds := fmt.Sprintf("ds-%d", j%3)
				switch j % 5 {
				case 0, 1:
					_ = s.Set(ctx, fp, ds, j, 0)
				case 2, 3:
					_, _ = s.Get(ctx, fp)
				case 4:
					_ = s.Delete(ctx, fp)
				}
			}
		}(i)
	}

	wg.Wait()

	if got := s.Len(); got > 64 {
		t.Errorf("size %d exceeds capacity after concurrent churn", got)
	}
}
