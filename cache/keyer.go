package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
)

// keySeparator joins the fingerprint components. Every component is
// JSON-encoded before joining, and the encoder escapes control
// characters, so a raw 0x1F can never appear inside a component and the
// joined form parses back to exactly one input triple.
const keySeparator = "\x1f"

// Keyer derives cache fingerprints from query inputs.
//
// Contract:
// - Determinism: the same logical inputs must produce the same fingerprint,
//   regardless of map iteration order.
// - Purity: no side effects, no dependency on cache state.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	// Fingerprint derives the cache key for a (query, data source,
	// time range) triple.
	Fingerprint(query, dataSourceID string, timeRange map[string]any) (string, error)
}

// DefaultKeyer derives SHA-256 fingerprints over canonicalized inputs.
type DefaultKeyer struct{}

// NewDefaultKeyer creates a new default keyer.
func NewDefaultKeyer() *DefaultKeyer {
	return &DefaultKeyer{}
}

// Fingerprint returns the full hex digest of
// SHA-256(JSON(query) <SEP> JSON(dataSourceID) <SEP> canonical JSON(timeRange)).
// The time range is serialized with keys sorted lexicographically at every
// nesting level, so field order never changes the key. Query and data
// source are JSON string literals, so separator bytes inside either
// cannot shift content across a component boundary. Output length is
// fixed regardless of input size.
func (k *DefaultKeyer) Fingerprint(query, dataSourceID string, timeRange map[string]any) (string, error) {
	queryJSON, err := json.Marshal(query)
	if err != nil {
		return "", fmt.Errorf("cache: failed to encode query: %w", err)
	}
	dsJSON, err := json.Marshal(dataSourceID)
	if err != nil {
		return "", fmt.Errorf("cache: failed to encode data source: %w", err)
	}

	canonical := []byte("null")
	if timeRange != nil {
		canonical, err = appendCanonical(nil, timeRange)
		if err != nil {
			return "", fmt.Errorf("cache: failed to canonicalize time range: %w", err)
		}
	}

	h := sha256.New()
	h.Write(queryJSON)
	h.Write([]byte(keySeparator))
	h.Write(dsJSON)
	h.Write([]byte(keySeparator))
	h.Write(canonical)

	return hex.EncodeToString(h.Sum(nil)), nil
}

// appendCanonical appends a deterministic JSON encoding of v to dst.
// Map keys are sorted; slice order is preserved.
func appendCanonical(dst []byte, v any) ([]byte, error) {
	switch val := v.(type) {
	case nil:
		return append(dst, "null"...), nil
	case map[string]any:
		return appendCanonicalMap(dst, val)
	case []any:
		return appendCanonicalSlice(dst, val)
	default:
		enc, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		return append(dst, enc...), nil
	}
}

func appendCanonicalMap(dst []byte, m map[string]any) ([]byte, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	dst = append(dst, '{')
	for i, k := range keys {
		if i > 0 {
			dst = append(dst, ',')
		}
		enc, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		dst = append(dst, enc...)
		dst = append(dst, ':')
		dst, err = appendCanonical(dst, m[k])
		if err != nil {
			return nil, err
		}
	}
	return append(dst, '}'), nil
}

func appendCanonicalSlice(dst []byte, s []any) ([]byte, error) {
	dst = append(dst, '[')
	for i, v := range s {
		if i > 0 {
			dst = append(dst, ',')
		}
		var err error
		dst, err = appendCanonical(dst, v)
		if err != nil {
			return nil, err
		}
	}
	return append(dst, ']'), nil
}

// Ensure DefaultKeyer implements Keyer
var _ Keyer = (*DefaultKeyer)(nil)
