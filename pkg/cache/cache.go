// Package cache provides the byte-oriented cache used by the postcard
// pipeline to avoid refetching images, regenerating captions and recomposing
// identical postcards.
//
// Three backends implement [Cache]:
//
//   - [FileCache]: one JSON file per entry under a directory, for the CLI
//   - [RedisCache]: a shared Redis instance, for the HTTP service
//   - [NullCache]: stores nothing, for --no-cache and tests
//
// Keys are produced by a [Keyer] so that every caller derives the same key
// for the same inputs; [ScopedKeyer] adds a prefix for isolation.
//
// Entries are transient: every entry carries a TTL and nothing in the cache
// is required for correctness.
package cache

import (
	"context"
	"time"
)

// Cache is a byte-oriented key/value store with per-entry TTL.
//
// Get returns (data, true, nil) on a hit and (nil, false, nil) on a miss;
// an error means the backend itself failed. Implementations must be safe
// for concurrent use.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Clearer is implemented by backends that can drop every entry they hold.
// Clear reports how many entries were removed.
type Clearer interface {
	Clear(ctx context.Context) (int, error)
}

// KeyKinds lists the key prefixes produced by [DefaultKeyer].
var KeyKinds = []string{"http", "image", "caption", "artifact"}

// Default time-to-live values per entry kind.
const (
	// TTLHTTP applies to raw upstream HTTP responses.
	TTLHTTP = 24 * time.Hour

	// TTLImage applies to fetched source images.
	TTLImage = 24 * time.Hour

	// TTLCaption applies to generated captions and SVG replies.
	TTLCaption = 24 * time.Hour

	// TTLArtifact applies to composed postcards.
	TTLArtifact = 7 * 24 * time.Hour
)
