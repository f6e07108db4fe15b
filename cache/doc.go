// Package cache provides a bounded, content-addressed query-result cache.
//
// It combines SHA-256 fingerprint derivation over canonicalized query
// inputs, least-recently-used eviction under a fixed capacity, lazy TTL
// expiry, and a data-source index for targeted bulk invalidation.
package cache
