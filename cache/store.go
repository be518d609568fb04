package cache

import (
	"time"
)

// Entry is a cached item with its validity metadata.
type Entry struct {
	Key            string
	Prefix         string
	Value          []byte
	CreatedAt      time.Time
	ExpiresAt      time.Time
	Version        string
	SourceVersions map[string]string
	HitCount       int64
}

// InvalidationEvent records an explicit eviction for auditing.
type InvalidationEvent struct {
	Type         string
	AffectedKeys int
	Reason       string
	Timestamp    time.Time
}

// StoreStats summarizes the backing store's contents.
type StoreStats struct {
	TotalEntries   int
	ValidEntries   int
	ExpiredEntries int
	TotalHits      int64
}

// Store is the persistence contract for cache entries.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the entry for a key, or false if absent.
	Get(key string) (*Entry, bool)

	// Put stores an entry, overwriting any existing row (last write wins).
	Put(e Entry) error

	// Delete removes a key. Returns true if a row was removed.
	Delete(key string) (bool, error)

	// DeleteByPrefix removes every entry tagged with the prefix and
	// returns the number of rows removed.
	DeleteByPrefix(prefix string) (int, error)

	// IncrementHit bumps a key's hit counter. At-least-once semantics
	// under concurrency are sufficient.
	IncrementHit(key string) error

	// Stats reports entry counts relative to the given clock reading.
	Stats(now time.Time) (StoreStats, error)

	// LogInvalidation appends an invalidation audit record.
	LogInvalidation(ev InvalidationEvent) error

	// CleanupExpired removes entries whose expiry precedes now and
	// returns the number removed.
	CleanupExpired(now time.Time) (int, error)
}
