// Package cache provides a versioned TTL key/value cache used to avoid
// recomputing expensive model verification runs and derived analyses.
//
// Every entry is stamped with the versions of its upstream components
// (model registry, pricing, judge rubric). A read returns a value only
// while the entry is unexpired AND all stamped versions still match the
// current component versions; either condition failing evicts the row.
//
// Keys are produced by GenerateKey, a deterministic hash over a prefix
// and sorted dimension pairs. The prefix survives hashing as a tag on the
// key, so invalidation can be scoped to a prefix instead of wiping the
// whole cache.
//
// Storage failures are soft: a failed write is reported as a boolean and
// the cache behaves as a permanent miss for that key.
package cache
