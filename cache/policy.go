package cache

import "time"

// Policy configures entry time-to-live.
type Policy struct {
	// DefaultTTL applies when Set is called without a TTL override.
	// Must be positive for a store to be constructed.
	DefaultTTL time.Duration

	// MaxTTL caps override TTLs. If zero, no maximum is enforced.
	MaxTTL time.Duration
}

// DefaultPolicy returns the default expiry policy.
// DefaultTTL: 5 minutes, MaxTTL: 1 hour.
func DefaultPolicy() Policy {
	return Policy{
		DefaultTTL: 5 * time.Minute,
		MaxTTL:     1 * time.Hour,
	}
}

// EffectiveTTL returns the TTL to store, applying the default and the cap.
func (p Policy) EffectiveTTL(override time.Duration) time.Duration {
	ttl := override
	if ttl <= 0 {
		ttl = p.DefaultTTL
	}
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}
	return ttl
}
