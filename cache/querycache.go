package cache

import (
	"context"
	"time"
)

// QueryCache is the content-addressed front over an LRUStore. It derives
// fingerprints from logical query inputs and delegates storage, eviction,
// and expiry to the store.
//
// A QueryCache must be constructed explicitly and handed to consumers;
// there is no package-level instance.
type QueryCache struct {
	keyer Keyer
	store *LRUStore
}

// New creates a QueryCache with the default keyer over a fresh LRUStore.
func New(capacity int, policy Policy, opts ...StoreOption) (*QueryCache, error) {
	store, err := NewLRUStore(capacity, policy, opts...)
	if err != nil {
		return nil, err
	}
	return &QueryCache{keyer: NewDefaultKeyer(), store: store}, nil
}

// Get returns the cached result for the logical key. Returns (nil, false)
// on miss, on expiry, or when the key cannot be derived.
func (c *QueryCache) Get(ctx context.Context, query, dataSourceID string, timeRange map[string]any) (any, bool) {
	fp, err := c.keyer.Fingerprint(query, dataSourceID, timeRange)
	if err != nil {
		return nil, false
	}
	return c.store.Get(ctx, fp)
}

// Set stores a result under the logical key. A ttl <= 0 selects the policy
// default.
func (c *QueryCache) Set(ctx context.Context, query, dataSourceID string, timeRange map[string]any, result any, ttl time.Duration) error {
	fp, err := c.keyer.Fingerprint(query, dataSourceID, timeRange)
	if err != nil {
		return err
	}
	return c.store.Set(ctx, fp, dataSourceID, result, ttl)
}

// Delete re-derives the fingerprint and removes that single entry if
// present, reporting whether a removal occurred.
func (c *QueryCache) Delete(ctx context.Context, query, dataSourceID string, timeRange map[string]any) (bool, error) {
	fp, err := c.keyer.Fingerprint(query, dataSourceID, timeRange)
	if err != nil {
		return false, err
	}
	return c.store.Delete(ctx, fp), nil
}

// DeleteByDataSource removes every entry stored for the data source via
// the store's secondary index and returns the number removed.
func (c *QueryCache) DeleteByDataSource(ctx context.Context, dataSourceID string) int {
	return c.store.DeleteByDataSource(ctx, dataSourceID)
}

// Clear removes all entries and resets counters.
func (c *QueryCache) Clear(ctx context.Context) {
	c.store.Clear(ctx)
}

// Stats reports counters and current occupancy.
func (c *QueryCache) Stats() Stats {
	return c.store.Stats()
}

// Ensure QueryCache implements Cache
var _ Cache = (*QueryCache)(nil)
