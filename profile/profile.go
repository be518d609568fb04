// Package profile stores per-user optimization context: the model a user
// currently runs on, their use case and constraints, token volume
// estimates, and a bounded sample of recent conversations.
//
// Profiles are created on first access with intentionally expensive
// defaults, so a fresh user typically has room to save. Profiles are
// never deleted.
package profile

import (
	"errors"
	"time"

	"github.com/paretolabs/modelopt/replay"
)

// ErrNotFound is returned when a profile does not exist.
var ErrNotFound = errors.New("profile not found")

// ConversationSampleSize bounds the recent-conversation sample loaded
// with a profile.
const ConversationSampleSize = 20

// Constraints are user-defined limits on model selection.
type Constraints struct {
	MaxBudgetPer1KRequests float64  `json:"max_budget_per_1k_requests" toml:"max_budget_per_1k_requests"`
	MaxLatencyMS           int      `json:"max_latency_ms" toml:"max_latency_ms"`
	MinQualityScore        float64  `json:"min_quality_score" toml:"min_quality_score"`
	ComplianceLevel        string   `json:"compliance_level" toml:"compliance_level"`
	PreferredProviders     []string `json:"preferred_providers,omitempty" toml:"preferred_providers"`
	BlockedProviders       []string `json:"blocked_providers,omitempty" toml:"blocked_providers"`
}

// DefaultConstraints returns the constraint set applied to new users.
func DefaultConstraints() Constraints {
	return Constraints{
		MaxBudgetPer1KRequests: 10.0,
		MaxLatencyMS:           5000,
		MinQualityScore:        80.0,
		ComplianceLevel:        "standard",
	}
}

// Profile is the complete per-user optimization context.
type Profile struct {
	UserID       string      `json:"user_id"`
	CurrentModel string      `json:"current_model"`
	UseCase      string      `json:"use_case"`
	Constraints  Constraints `json:"constraints"`

	PreferredOutputFormat string `json:"preferred_output_format"`
	AvgInputTokens        int    `json:"avg_input_tokens"`
	AvgOutputTokens       int    `json:"avg_output_tokens"`
	MonthlyRequestVolume  int    `json:"monthly_request_volume"`

	// RecentConversations is the most-recent-N sample used as
	// verification test traffic.
	RecentConversations []replay.Conversation `json:"recent_conversations,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Update describes a partial profile mutation. Nil fields are left
// untouched.
type Update struct {
	CurrentModel          *string
	UseCase               *string
	PreferredOutputFormat *string
	AvgInputTokens        *int
	AvgOutputTokens       *int
	MonthlyRequestVolume  *int
	Constraints           *Constraints
}

// Store is the persistence contract for user profiles.
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns a user's profile or ErrNotFound.
	Get(userID string) (*Profile, error)

	// Put creates or replaces a profile.
	Put(p Profile) error

	// Update applies a partial mutation and stamps UpdatedAt.
	// Returns ErrNotFound for unknown users.
	Update(userID string, u Update) error

	// AddConversation appends to a user's recent-conversation sample.
	// Stores keep only the most recent ConversationSampleSize entries.
	AddConversation(userID string, conv replay.Conversation) error
}

// DefaultModel is the model assigned to users created on first access.
// Intentionally an expensive one, so recommendations are non-trivial.
const DefaultModel = "gpt-4o"

// GetOrCreate returns the user's profile, creating the default profile
// if none exists yet.
func GetOrCreate(store Store, userID string) (*Profile, error) {
	p, err := store.Get(userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	def := Profile{
		UserID:                userID,
		CurrentModel:          DefaultModel,
		UseCase:               "general",
		Constraints:           DefaultConstraints(),
		PreferredOutputFormat: "text",
		AvgInputTokens:        500,
		AvgOutputTokens:       200,
		MonthlyRequestVolume:  10000,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := store.Put(def); err != nil {
		return nil, err
	}
	return &def, nil
}
