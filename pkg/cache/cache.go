// Package cache provides the optional byte cache callers put in front of
// repository analysis. The core packages never read or write it: a pipeline
// runner may store serialized graphs here keyed by manifest content, so an
// unchanged repository skips re-analysis.
//
// Three backends implement the same interface: a file cache for CLI use,
// a Redis cache for shared deployments, and a null cache that disables
// caching entirely.
package cache

import (
	"context"
	"strings"
	"time"
)

// Cache is a byte-oriented cache with TTL support.
type Cache interface {
	// Get retrieves a value. The second return is false on a miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores a value. A ttl of 0 means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes a value. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases backend resources.
	Close() error
}

// Keyer derives cache keys for the things the pipeline stores.
type Keyer interface {
	// GraphKey keys one repository's analyzed graph by its root path and
	// the combined hash of its manifest contents. Editing any manifest
	// changes the hash and invalidates the entry.
	GraphKey(root, manifestHash string) string

	// ResolutionKey keys a solver result by the hash of the rendered
	// requirement set it was produced from.
	ResolutionKey(requirementsHash string) string
}

// DefaultKeyer is the standard key derivation.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the standard keyer.
func NewDefaultKeyer() Keyer { return &DefaultKeyer{} }

func (k *DefaultKeyer) GraphKey(root, manifestHash string) string {
	return hashKey("graph", root, manifestHash)
}

func (k *DefaultKeyer) ResolutionKey(requirementsHash string) string {
	return hashKey("resolution", requirementsHash)
}

// Open constructs a backend from a location string: "" disables caching,
// "redis://..." connects to Redis, anything else is a file cache directory.
func Open(location string) (Cache, error) {
	switch {
	case location == "":
		return NewNullCache(), nil
	case strings.HasPrefix(location, "redis://") || strings.HasPrefix(location, "rediss://"):
		return NewRedisCache(location)
	default:
		return NewFileCache(location)
	}
}
