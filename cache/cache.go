package cache

import (
	"context"
	"errors"
	"time"
)

// FingerprintLength is the length of a hex-encoded SHA-256 fingerprint.
const FingerprintLength = 64

// DefaultCapacity is a reasonable store capacity for callers without
// sizing data of their own.
const DefaultCapacity = 1000

// Sentinel errors for cache operations.
var (
	ErrNilCache           = errors.New("cache: cache is nil")
	ErrInvalidCapacity    = errors.New("cache: capacity must be positive")
	ErrInvalidTTL         = errors.New("cache: default TTL must be positive")
	ErrInvalidFingerprint = errors.New("cache: fingerprint is invalid")
)

// Cache is the interface consumed by the query-execution pipeline.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Get never errors; it reports (nil, false) on miss. Misses are
//   not errors. Only fingerprint derivation over a time range the JSON
//   encoder cannot represent fails, and that surfaces on Set and Delete.
type Cache interface {
	// Get returns the cached result for the logical key, or (nil, false)
	// when absent or expired.
	Get(ctx context.Context, query, dataSourceID string, timeRange map[string]any) (any, bool)

	// Set stores a result under the logical key. A ttl <= 0 selects the
	// policy default.
	Set(ctx context.Context, query, dataSourceID string, timeRange map[string]any, result any, ttl time.Duration) error

	// Delete removes the entry for the logical key and reports whether an
	// entry was removed.
	Delete(ctx context.Context, query, dataSourceID string, timeRange map[string]any) (bool, error)

	// DeleteByDataSource removes every entry stored for the data source
	// and returns the number removed.
	DeleteByDataSource(ctx context.Context, dataSourceID string) int

	// Clear removes all entries and resets the hit/miss counters.
	Clear(ctx context.Context)

	// Stats reports counters and current occupancy.
	Stats() Stats
}

// ValidateFingerprint checks that a key is a hex-encoded SHA-256 digest.
func ValidateFingerprint(fp string) error {
	if len(fp) != FingerprintLength {
		return ErrInvalidFingerprint
	}
	for _, c := range fp {
		isLowerHex := (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
		if !isLowerHex {
			return ErrInvalidFingerprint
		}
	}
	return nil
}

// EventRecorder receives store lifecycle events.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: recording must be best-effort and must not panic.
type EventRecorder interface {
	RecordHit(ctx context.Context)
	RecordMiss(ctx context.Context)
	RecordEviction(ctx context.Context)
	RecordExpiry(ctx context.Context)
}

// NopRecorder discards all events. It is the default recorder so callers
// without telemetry avoid nil checks.
type NopRecorder struct{}

func (NopRecorder) RecordHit(context.Context)      {}
func (NopRecorder) RecordMiss(context.Context)     {}
func (NopRecorder) RecordEviction(context.Context) {}
func (NopRecorder) RecordExpiry(context.Context)   {}

// Ensure NopRecorder implements EventRecorder
var _ EventRecorder = NopRecorder{}
