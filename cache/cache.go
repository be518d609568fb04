package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"
)

// Cache key prefixes used across the optimizer.
const (
	PrefixModelOutput    = "model_output"
	PrefixEvaluation     = "evaluation"
	PrefixRecommendation = "recommendation"
	PrefixPricing        = "pricing"
	PrefixRegistry       = "registry"
)

// Tracked source components. A cached entry is valid only while the
// versions of all three match the versions stamped at write time.
const (
	ComponentRegistry = "model_registry"
	ComponentPricing  = "pricing"
	ComponentRubric   = "rubric"
)

// entryVersion stamps the cache row format.
const entryVersion = "1.0.0"

// Manager implements TTL plus version-based cache invalidation on top of
// a pluggable Store.
type Manager struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time

	mu       sync.RWMutex
	versions map[string]string
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger for soft-failure and invalidation events.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithVersions seeds the tracked component versions.
func WithVersions(registry, pricing, rubric string) Option {
	return func(m *Manager) {
		m.versions[ComponentRegistry] = registry
		m.versions[ComponentPricing] = pricing
		m.versions[ComponentRubric] = rubric
	}
}

// NewManager creates a cache manager over the given store.
func NewManager(store Store, opts ...Option) *Manager {
	m := &Manager{
		store: store,
		now:   time.Now,
		versions: map[string]string{
			ComponentRegistry: "1.0.0",
			ComponentPricing:  "2024-01",
			ComponentRubric:   "1.0.0",
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.logger == nil {
		m.logger = slog.Default()
	}
	return m
}

// GenerateKey builds a deterministic, collision-resistant key from a
// prefix and dimension pairs. The same dimensions produce the same key
// regardless of map iteration order. The prefix is preserved as a tag so
// invalidation can be scoped to it.
func GenerateKey(prefix string, dims map[string]string) string {
	parts := make([]string, 0, len(dims))
	for k, v := range dims {
		parts = append(parts, k+"="+v)
	}
	sort.Strings(parts)

	h := sha256.Sum256([]byte(prefix + ":" + strings.Join(parts, ":")))
	return prefix + ":" + hex.EncodeToString(h[:])[:32]
}

// prefixOf recovers the prefix tag from a generated key.
func prefixOf(key string) string {
	if i := strings.LastIndex(key, ":"); i > 0 {
		return key[:i]
	}
	return ""
}

// HashJSON returns a short deterministic hash of any JSON-marshalable
// value. Used to key verification results by conversation content.
func HashJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte(fmt.Sprintf("%v", v))
	}
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])[:16]
}

// Get returns the raw cached payload if the entry is unexpired and all
// stamped source versions still match. Stale or version-mismatched rows
// are evicted on read. A successful read increments the hit counter.
func (m *Manager) Get(key string) ([]byte, bool) {
	e, ok := m.store.Get(key)
	if !ok {
		return nil, false
	}

	if m.now().After(e.ExpiresAt) {
		m.evict(key, "expired")
		return nil, false
	}
	if !m.versionsCurrent(e.SourceVersions) {
		m.evict(key, "source version mismatch")
		return nil, false
	}

	if err := m.store.IncrementHit(key); err != nil {
		m.logger.Debug("cache hit count update failed",
			slog.String("key", key), slog.Any("error", err))
	}
	return e.Value, true
}

// GetInto unmarshals the cached payload into out. Returns false on miss
// or if the payload no longer decodes into out's shape.
func (m *Manager) GetInto(key string, out any) bool {
	data, ok := m.Get(key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		m.logger.Warn("cache payload decode failed, evicting",
			slog.String("key", key), slog.Any("error", err))
		m.evict(key, "undecodable payload")
		return false
	}
	return true
}

// Set stores a value with the given TTL, stamped with the current source
// versions. Returns false on marshal or store failure; callers must treat
// that as a cache miss, not an error.
func (m *Manager) Set(key string, value any, ttl time.Duration) bool {
	data, err := json.Marshal(value)
	if err != nil {
		m.logger.Warn("cache set: marshal failed",
			slog.String("key", key), slog.Any("error", err))
		return false
	}

	now := m.now()
	e := Entry{
		Key:            key,
		Prefix:         prefixOf(key),
		Value:          data,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
		Version:        entryVersion,
		SourceVersions: m.versionSnapshot(),
	}
	if err := m.store.Put(e); err != nil {
		m.logger.Warn("cache set: store failed",
			slog.String("key", key), slog.Any("error", err))
		return false
	}
	return true
}

// Invalidate removes a single entry. Returns true if a row was removed.
func (m *Manager) Invalidate(key string) bool {
	removed, err := m.store.Delete(key)
	if err != nil {
		m.logger.Warn("cache invalidate failed",
			slog.String("key", key), slog.Any("error", err))
		return false
	}
	return removed
}

// InvalidateByPrefix removes every entry tagged with the prefix and logs
// the eviction. Returns the number of rows removed.
func (m *Manager) InvalidateByPrefix(prefix, reason string) int {
	count, err := m.store.DeleteByPrefix(prefix)
	if err != nil {
		m.logger.Warn("cache prefix invalidation failed",
			slog.String("prefix", prefix), slog.Any("error", err))
		return 0
	}

	ev := InvalidationEvent{
		Type:         "prefix_invalidation",
		AffectedKeys: count,
		Reason:       fmt.Sprintf("prefix %s: %s", prefix, reason),
		Timestamp:    m.now(),
	}
	if err := m.store.LogInvalidation(ev); err != nil {
		m.logger.Debug("invalidation log write failed", slog.Any("error", err))
	}
	m.logger.Info("cache invalidated by prefix",
		slog.String("prefix", prefix),
		slog.Int("affected", count),
		slog.String("reason", reason))
	return count
}

// InvalidateOnVersionChange bumps a tracked component version and evicts
// entries under that component's prefix. Existing entries stamped with
// the old version are additionally rejected on read, so no stale value
// survives an upstream change. Returns the number of rows evicted.
func (m *Manager) InvalidateOnVersionChange(component, newVersion string) int {
	m.mu.Lock()
	old, tracked := m.versions[component]
	if !tracked || old == newVersion {
		m.mu.Unlock()
		return 0
	}
	m.versions[component] = newVersion
	m.mu.Unlock()

	return m.InvalidateByPrefix(prefixForComponent(component),
		fmt.Sprintf("version %s -> %s", old, newVersion))
}

// HandleVersionChange adapts InvalidateOnVersionChange to the registry's
// version hook signature, so a manager can be attached directly:
//
//	reg.OnVersionChange(mgr.HandleVersionChange)
func (m *Manager) HandleVersionChange(component, version string) {
	m.InvalidateOnVersionChange(component, version)
}

// Stats reports cache contents and the current tracked versions.
func (m *Manager) Stats() Stats {
	ss, err := m.store.Stats(m.now())
	if err != nil {
		m.logger.Warn("cache stats failed", slog.Any("error", err))
	}
	return Stats{
		TotalEntries:   ss.TotalEntries,
		ValidEntries:   ss.ValidEntries,
		ExpiredEntries: ss.ExpiredEntries,
		TotalHits:      ss.TotalHits,
		Versions:       m.versionSnapshot(),
	}
}

// Stats summarizes cache state for observability.
type Stats struct {
	TotalEntries   int               `json:"total_entries"`
	ValidEntries   int               `json:"valid_entries"`
	ExpiredEntries int               `json:"expired_entries"`
	TotalHits      int64             `json:"total_hits"`
	Versions       map[string]string `json:"versions"`
}

// CleanupExpired removes every expired row and returns the count.
func (m *Manager) CleanupExpired() int {
	n, err := m.store.CleanupExpired(m.now())
	if err != nil {
		m.logger.Warn("cache cleanup failed", slog.Any("error", err))
		return 0
	}
	return n
}

// Version returns the tracked version of a component.
func (m *Manager) Version(component string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.versions[component]
}

func (m *Manager) evict(key, reason string) {
	if _, err := m.store.Delete(key); err != nil {
		m.logger.Debug("cache eviction failed",
			slog.String("key", key),
			slog.String("reason", reason),
			slog.Any("error", err))
	}
}

func (m *Manager) versionsCurrent(stamped map[string]string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for component, current := range m.versions {
		if stamped[component] != current {
			return false
		}
	}
	return true
}

func (m *Manager) versionSnapshot() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]string, len(m.versions))
	for k, v := range m.versions {
		out[k] = v
	}
	return out
}

// prefixForComponent maps a component to the key prefix its derived
// entries live under.
func prefixForComponent(component string) string {
	switch component {
	case ComponentRegistry:
		return PrefixRegistry
	case ComponentPricing:
		return PrefixPricing
	case ComponentRubric:
		return PrefixEvaluation
	default:
		return component
	}
}
