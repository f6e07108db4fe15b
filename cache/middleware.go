package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// ExecutorFunc produces a query result on a cache miss. Any timeout or
// cancellation around the execution belongs to the caller's context; the
// cache itself imposes none.
type ExecutorFunc func(ctx context.Context) (any, error)

// Middleware wraps the query-execution path with caching.
//
// Contract:
//   - Concurrency: safe for concurrent use; concurrent misses for the same
//     fingerprint collapse to a single execution.
//   - Errors: executor errors are propagated unchanged and never cached.
type Middleware struct {
	cache *QueryCache
	group singleflight.Group
}

// NewMiddleware creates a caching middleware over an existing QueryCache.
func NewMiddleware(qc *QueryCache) (*Middleware, error) {
	if qc == nil {
		return nil, ErrNilCache
	}
	return &Middleware{cache: qc}, nil
}

// Execute returns the cached result for the logical key, or runs exec and
// caches its result. A ttl <= 0 selects the policy default.
func (m *Middleware) Execute(ctx context.Context, query, dataSourceID string, timeRange map[string]any, ttl time.Duration, exec ExecutorFunc) (any, error) {
	fp, err := m.cache.keyer.Fingerprint(query, dataSourceID, timeRange)
	if err != nil {
		// Derivation failed - execute without caching.
		return exec(ctx)
	}

	if value, ok := m.cache.store.Get(ctx, fp); ok {
		return value, nil
	}

	value, err, _ := m.group.Do(fp, func() (any, error) {
		// A concurrent caller may have stored the entry while this one
		// waited to lead the flight.
		if cached, ok := m.cache.store.Get(ctx, fp); ok {
			return cached, nil
		}

		result, err := exec(ctx)
		if err != nil {
			// Don't cache errors
			return nil, err
		}

		_ = m.cache.store.Set(ctx, fp, dataSourceID, result, ttl)
		return result, nil
	})
	return value, err
}
