package registry

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"
)

// LatencyTier classifies typical response latency for a model.
type LatencyTier string

// Latency tiers.
const (
	LatencyFast   LatencyTier = "fast"
	LatencyMedium LatencyTier = "medium"
	LatencySlow   LatencyTier = "slow"
)

// ReliabilityTier classifies operational reliability for a model.
type ReliabilityTier string

// Reliability tiers.
const (
	ReliabilityHigh   ReliabilityTier = "high"
	ReliabilityMedium ReliabilityTier = "medium"
	ReliabilityLow    ReliabilityTier = "low"
)

// Capabilities describes what a model supports and how it behaves.
type Capabilities struct {
	ContextWindow     int             `yaml:"context_window" json:"context_window"`
	FunctionCalling   bool            `yaml:"function_calling" json:"function_calling"`
	JSONMode          bool            `yaml:"json_mode" json:"json_mode"`
	Vision            bool            `yaml:"vision" json:"vision"`
	Streaming         bool            `yaml:"streaming" json:"streaming"`
	LatencyTier       LatencyTier     `yaml:"latency_tier" json:"latency_tier"`
	ReliabilityTier   ReliabilityTier `yaml:"reliability_tier" json:"reliability_tier"`
	Strengths         []string        `yaml:"strengths" json:"strengths"`
	KnownFailureModes []string        `yaml:"known_failure_modes,omitempty" json:"known_failure_modes,omitempty"`
}

// HasStrength checks whether the model lists the given strength tag.
func (c Capabilities) HasStrength(tag string) bool {
	for _, s := range c.Strengths {
		if s == tag {
			return true
		}
	}
	return false
}

// Pricing holds per-1k-token pricing and rate limits for a model.
type Pricing struct {
	InputPer1K           float64 `yaml:"input_per_1k" json:"input_per_1k"`
	OutputPer1K          float64 `yaml:"output_per_1k" json:"output_per_1k"`
	RateLimitRPM         int     `yaml:"rate_limit_rpm" json:"rate_limit_rpm"`
	RateLimitTPM         int     `yaml:"rate_limit_tpm" json:"rate_limit_tpm"`
	BatchDiscountPercent float64 `yaml:"batch_discount_percent,omitempty" json:"batch_discount_percent,omitempty"`
}

// Entry is a complete registry record for one model.
type Entry struct {
	ID          string `yaml:"id" json:"id"`
	DisplayName string `yaml:"display_name" json:"display_name"`
	Provider    string `yaml:"provider" json:"provider"`

	// GatewaySlug is the model identifier understood by the external
	// gateway, e.g. "@openai/gpt-4o-mini".
	GatewaySlug string `yaml:"gateway_slug" json:"gateway_slug"`

	// Rank orders models by price tier: 1 is the most expensive,
	// ascending ranks are cheaper.
	Rank int `yaml:"rank" json:"rank"`

	Capabilities Capabilities `yaml:"capabilities" json:"capabilities"`
	Pricing      Pricing      `yaml:"pricing" json:"pricing"`

	LastVerified time.Time `yaml:"last_verified,omitempty" json:"last_verified,omitempty"`
	Confidence   float64   `yaml:"confidence,omitempty" json:"confidence,omitempty"`
	SourceURLs   []string  `yaml:"source_urls,omitempty" json:"source_urls,omitempty"`
}

// VersionHook is notified after a successful Reload with the new version.
type VersionHook func(component, version string)

// Component name reported to version hooks.
const Component = "model_registry"

// Registry is a versioned, rank-ordered model catalog.
// The snapshot is immutable between Reload calls; all accessors are safe
// for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry
	version string
	hooks   []VersionHook
	logger  *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for reload and validation events.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// New creates a registry from the given catalog entries and version.
func New(entries []Entry, version string, opts ...Option) *Registry {
	r := &Registry{
		entries: make(map[string]Entry, len(entries)),
		version: version,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	for _, e := range entries {
		r.entries[e.ID] = e
	}
	return r
}

// Version returns the current registry version.
func (r *Registry) Version() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Get returns the entry for a model ID.
func (r *Registry) Get(id string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	return e, ok
}

// All returns every entry sorted by ascending rank.
func (r *Registry) All() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortByRank(r.snapshotLocked())
}

// CheaperThan returns all models with a strictly higher rank number
// (cheaper price tier) than the given model, sorted by ascending rank.
// Returns nil if the model is unknown.
func (r *Registry) CheaperThan(id string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	current, ok := r.entries[id]
	if !ok {
		return nil
	}
	var out []Entry
	for _, e := range r.entries {
		if e.Rank > current.Rank {
			out = append(out, e)
		}
	}
	return sortByRank(out)
}

// RankRange returns models whose rank falls within [min, max] inclusive,
// sorted by ascending rank.
func (r *Registry) RankRange(min, max int) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Entry
	for _, e := range r.entries {
		if e.Rank >= min && e.Rank <= max {
			out = append(out, e)
		}
	}
	return sortByRank(out)
}

// ForUseCase returns models that list at least one of the use case's
// required strengths, ordered by match count then rank.
func (r *Registry) ForUseCase(useCase string) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	required := StrengthsForUseCase(useCase)
	type scored struct {
		entry Entry
		score int
	}
	var matches []scored
	for _, e := range r.entries {
		n := 0
		for _, tag := range required {
			if e.Capabilities.HasStrength(tag) {
				n++
			}
		}
		if n > 0 {
			matches = append(matches, scored{e, n})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].entry.Rank < matches[j].entry.Rank
	})
	out := make([]Entry, len(matches))
	for i, m := range matches {
		out[i] = m.entry
	}
	return out
}

// OnVersionChange registers a hook invoked after every successful Reload.
// Hooks run synchronously in registration order.
func (r *Registry) OnVersionChange(hook VersionHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hooks = append(r.hooks, hook)
}

// Reload replaces the catalog snapshot and bumps the version.
// The new catalog is validated first; an invalid catalog leaves the
// current snapshot untouched. Hooks fire only when the version changed.
func (r *Registry) Reload(entries []Entry, version string) error {
	if err := Validate(entries); err != nil {
		return fmt.Errorf("reload rejected: %w", err)
	}

	r.mu.Lock()
	old := r.version
	r.entries = make(map[string]Entry, len(entries))
	for _, e := range entries {
		r.entries[e.ID] = e
	}
	r.version = version
	hooks := make([]VersionHook, len(r.hooks))
	copy(hooks, r.hooks)
	r.mu.Unlock()

	r.logger.Info("registry reloaded",
		slog.String("old_version", old),
		slog.String("new_version", version),
		slog.Int("models", len(entries)))

	if old != version {
		for _, hook := range hooks {
			hook(Component, version)
		}
	}
	return nil
}

// Validate checks catalog invariants: unique IDs, unique ranks, and rank
// ordering consistent with pricing (blended per-1k price must not increase
// as rank decreases in price tier).
func Validate(entries []Entry) error {
	if len(entries) == 0 {
		return fmt.Errorf("empty catalog")
	}
	ids := make(map[string]bool, len(entries))
	ranks := make(map[int]string, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			return fmt.Errorf("entry with empty id")
		}
		if ids[e.ID] {
			return fmt.Errorf("duplicate model id %q", e.ID)
		}
		ids[e.ID] = true
		if e.Rank < 1 {
			return fmt.Errorf("model %q: rank must be >= 1, got %d", e.ID, e.Rank)
		}
		if other, dup := ranks[e.Rank]; dup {
			return fmt.Errorf("models %q and %q share rank %d", other, e.ID, e.Rank)
		}
		ranks[e.Rank] = e.ID
		if e.Pricing.InputPer1K < 0 || e.Pricing.OutputPer1K < 0 {
			return fmt.Errorf("model %q: negative pricing", e.ID)
		}
	}

	sorted := sortByRank(entries)
	for i := 1; i < len(sorted); i++ {
		prev, cur := sorted[i-1], sorted[i]
		if blended(cur.Pricing) > blended(prev.Pricing) {
			return fmt.Errorf("rank ordering inconsistent with pricing: %q (rank %d) costs more than %q (rank %d)",
				cur.ID, cur.Rank, prev.ID, prev.Rank)
		}
	}
	return nil
}

func blended(p Pricing) float64 {
	return p.InputPer1K + p.OutputPer1K
}

func (r *Registry) snapshotLocked() []Entry {
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	return out
}

func sortByRank(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	sort.Slice(out, func(i, j int) bool { return out[i].Rank < out[j].Rank })
	return out
}

// StrengthsForUseCase maps a use case tag to the strength tags a model
// should carry to serve it well.
func StrengthsForUseCase(useCase string) []string {
	if tags, ok := useCaseStrengths[useCase]; ok {
		return tags
	}
	return useCaseStrengths["general"]
}

var useCaseStrengths = map[string][]string{
	"coding":        {"coding", "reasoning"},
	"reasoning":     {"reasoning", "analysis", "complex_tasks"},
	"extraction":    {"extraction", "general"},
	"summarization": {"summarization", "general"},
	"creative":      {"creative", "general"},
	"support_bot":   {"general", "fast", "cost_effective"},
	"general":       {"general"},
}
