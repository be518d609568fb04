package optimizer

import "time"

// Thresholds are the acceptance and budget knobs for an optimization
// run. Zero values are replaced by defaults in New.
type Thresholds struct {
	// MinCostSavingPercent is the minimum projected saving for a
	// candidate to be worth switching to.
	MinCostSavingPercent float64 `toml:"min_cost_saving_percent"`

	// MaxQualityDropPercent is the largest tolerated quality regression
	// versus the incumbent baseline.
	MaxQualityDropPercent float64 `toml:"max_quality_drop_percent"`

	// MinConfidence is the minimum verification confidence.
	MinConfidence float64 `toml:"min_confidence"`

	// MaxVerificationBudgetUSD caps cumulative replay spend per run.
	MaxVerificationBudgetUSD float64 `toml:"max_verification_budget_usd"`

	// MaxIterations bounds the retry/escalation loop.
	MaxIterations int `toml:"max_iterations"`

	// MinSampleSize is the minimum real-conversation count before the
	// verifier falls back to synthetic tests.
	MinSampleSize int `toml:"min_sample_size"`

	// BaselineQuality is the assumed judged quality of the incumbent
	// model, the reference point for quality deltas.
	BaselineQuality float64 `toml:"baseline_quality"`

	// MaxConversations caps test conversations per candidate.
	MaxConversations int `toml:"max_conversations"`

	// VerifyConcurrency bounds parallel candidate verification.
	VerifyConcurrency int `toml:"verify_concurrency"`

	// VerificationCacheTTL bounds how long verification results are
	// reused across runs.
	VerificationCacheTTL time.Duration `toml:"verification_cache_ttl"`

	// ReuseThreshold is the similarity score above which a prior answer
	// is returned to the user directly at zero cost.
	ReuseThreshold float64 `toml:"reuse_threshold"`

	// AnalysisReuseThreshold is the looser similarity score at which a
	// prior question's stored optimization analysis is returned instead
	// of rerunning the full pipeline.
	AnalysisReuseThreshold float64 `toml:"analysis_reuse_threshold"`
}

// DefaultThresholds returns the standard production knobs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinCostSavingPercent:     20.0,
		MaxQualityDropPercent:    5.0,
		MinConfidence:            0.3,
		MaxVerificationBudgetUSD: 1.0,
		MaxIterations:            3,
		MinSampleSize:            3,
		BaselineQuality:          90.0,
		MaxConversations:         10,
		VerifyConcurrency:        3,
		VerificationCacheTTL:     time.Hour,
		ReuseThreshold:           0.75,
		AnalysisReuseThreshold:   0.35,
	}
}

// withDefaults fills zero fields from DefaultThresholds.
func (t Thresholds) withDefaults() Thresholds {
	def := DefaultThresholds()
	if t.MinCostSavingPercent == 0 {
		t.MinCostSavingPercent = def.MinCostSavingPercent
	}
	if t.MaxQualityDropPercent == 0 {
		t.MaxQualityDropPercent = def.MaxQualityDropPercent
	}
	if t.MinConfidence == 0 {
		t.MinConfidence = def.MinConfidence
	}
	if t.MaxVerificationBudgetUSD == 0 {
		t.MaxVerificationBudgetUSD = def.MaxVerificationBudgetUSD
	}
	if t.MaxIterations == 0 {
		t.MaxIterations = def.MaxIterations
	}
	if t.MinSampleSize == 0 {
		t.MinSampleSize = def.MinSampleSize
	}
	if t.BaselineQuality == 0 {
		t.BaselineQuality = def.BaselineQuality
	}
	if t.MaxConversations == 0 {
		t.MaxConversations = def.MaxConversations
	}
	if t.VerifyConcurrency == 0 {
		t.VerifyConcurrency = def.VerifyConcurrency
	}
	if t.VerificationCacheTTL == 0 {
		t.VerificationCacheTTL = def.VerificationCacheTTL
	}
	if t.ReuseThreshold == 0 {
		t.ReuseThreshold = def.ReuseThreshold
	}
	if t.AnalysisReuseThreshold == 0 {
		t.AnalysisReuseThreshold = def.AnalysisReuseThreshold
	}
	return t
}
