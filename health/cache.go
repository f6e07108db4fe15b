package health

import (
	"context"
	"fmt"

	"github.com/in0ig/ChatA-sub005/cache"
)

// StatsSource exposes the cache counters the checker inspects.
// *cache.QueryCache and *cache.LRUStore both satisfy it.
type StatsSource interface {
	Stats() cache.Stats
}

// CacheCheckerConfig configures the query cache health checker.
type CacheCheckerConfig struct {
	// WarningOccupancy is the size/capacity ratio above which the cache
	// reports degraded. Values outside (0, 1] fall back to 0.9.
	WarningOccupancy float64
}

// CacheChecker reports the health of a query cache. A full or nearly
// full cache is degraded rather than unhealthy: the cache still serves,
// but eviction pressure erodes the hit rate.
type CacheChecker struct {
	source StatsSource
	config CacheCheckerConfig
}

// NewCacheChecker creates a checker over the given cache.
func NewCacheChecker(source StatsSource, config CacheCheckerConfig) (*CacheChecker, error) {
	if source == nil {
		return nil, ErrNilStatsSource
	}
	if config.WarningOccupancy <= 0 || config.WarningOccupancy > 1 {
		config.WarningOccupancy = 0.9
	}
	return &CacheChecker{source: source, config: config}, nil
}

// Name returns "query-cache".
func (c *CacheChecker) Name() string {
	return "query-cache"
}

// Check snapshots the cache stats and grades occupancy.
func (c *CacheChecker) Check(ctx context.Context) Result {
	select {
	case <-ctx.Done():
		return Unhealthy("context cancelled", ctx.Err())
	default:
	}

	stats := c.source.Stats()

	occupancy := 0.0
	if stats.Capacity > 0 {
		occupancy = float64(stats.Size) / float64(stats.Capacity)
	}

	details := map[string]any{
		"hits":              stats.Hits,
		"misses":            stats.Misses,
		"hit_rate":          stats.HitRate,
		"size":              stats.Size,
		"capacity":          stats.Capacity,
		"occupancy_percent": occupancy * 100,
	}

	if occupancy >= c.config.WarningOccupancy {
		return Degraded(
			fmt.Sprintf("cache occupancy high: %.1f%%", occupancy*100),
		).WithDetails(details)
	}

	return Healthy(
		fmt.Sprintf("cache occupancy normal: %.1f%%", occupancy*100),
	).WithDetails(details)
}
