package cache

import "math"

// KeySampleLimit bounds the number of fingerprints reported by Stats.
const KeySampleLimit = 10

// Stats is a point-in-time snapshot of cache counters and occupancy.
type Stats struct {
	// Hits and Misses are cumulative since construction or the last Clear.
	// A read that discovers a lazily-expired entry counts as a normal miss.
	Hits   uint64
	Misses uint64

	// HitRate is hits/(hits+misses) as a percentage, rounded to two
	// decimal places. Zero when no lookups have occurred.
	HitRate float64

	// Size counts stored entries, including expired entries that have not
	// yet been swept by a read or displaced by eviction.
	Size int

	// Capacity is the fixed maximum number of entries.
	Capacity int

	// KeySample holds at most KeySampleLimit fingerprints, most recently
	// used first, for diagnostics.
	KeySample []string
}

func hitRate(hits, misses uint64) float64 {
	total := hits + misses
	if total == 0 {
		return 0
	}
	pct := float64(hits) / float64(total) * 100
	return math.Round(pct*100) / 100
}
