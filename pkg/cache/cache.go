// Package cache provides the byte caches shared by the gadget container.
//
// Two kinds of data are cached:
//
//   - Compiled feature content: the (optionally minified) script payload of one
//     feature for one rendering context, keyed by a fingerprint of its script
//     sources. Stored with no TTL; entries live until the cache is cleared.
//   - Registry snapshots: the parsed feature descriptors for a set of feature
//     roots, keyed by a hash of the root set and the resource base, so a
//     restart can skip XML parsing.
//
// Backends implement [Cache]. [NullCache] disables caching, [MemoryCache] is the
// in-process default, [FileCache] persists to disk for the CLI, and
// [RedisCache] and [MongoCache] share entries between server replicas.
//
// Keys are produced by a [Keyer] so that every backend sees the same key space.
package cache

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Cache is a byte-oriented key/value store.
//
// A zero ttl means the entry does not expire. Implementations must be safe for
// concurrent use.
type Cache interface {
	// Get returns the cached bytes and true on a hit, or nil and false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores data under key.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Close releases backend resources.
	Close() error
}

// Clearer is implemented by backends that can drop every entry they own.
type Clearer interface {
	Clear(ctx context.Context) error
}

// Clear drops all entries of c if the backend supports it and reports whether
// anything was attempted.
func Clear(ctx context.Context, c Cache) (bool, error) {
	cl, ok := c.(Clearer)
	if !ok {
		return false, nil
	}
	return true, cl.Clear(ctx)
}

// Keyer generates cache keys.
type Keyer interface {
	// FeatureKey addresses the assembled content of one feature in one
	// context. The fingerprint identifies the script sources the content was
	// built from.
	FeatureKey(feature, context, fingerprint string, compressed bool) string
	// RegistryKey addresses a registry snapshot for the given feature roots.
	// The resource base is the scheme and host that res:// sources were
	// rewritten against.
	RegistryKey(roots []string, resourceBase string) string
	// HTTPKey addresses a fetched HTTP body.
	HTTPKey(url string) string
}

// DefaultKeyer is the standard [Keyer].
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

// FeatureKey returns "feature:<context>:<name>:<fingerprint>" with a ":min"
// suffix for compressed content. An empty fingerprint is left out. Feature
// names are lowercased since lookups are case-insensitive.
func (DefaultKeyer) FeatureKey(feature, context, fingerprint string, compressed bool) string {
	key := fmt.Sprintf("feature:%s:%s", context, strings.ToLower(feature))
	if fingerprint != "" {
		key += ":" + fingerprint
	}
	if compressed {
		key += ":min"
	}
	return key
}

// RegistryKey hashes the root list and the resource base. Order matters:
// the same roots in a different order produce a different global feature
// order.
func (DefaultKeyer) RegistryKey(roots []string, resourceBase string) string {
	return hashKey("registry", roots, resourceBase)
}

// HTTPKey returns "http:<url>".
func (DefaultKeyer) HTTPKey(url string) string {
	return "http:" + url
}
