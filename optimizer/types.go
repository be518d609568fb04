package optimizer

import (
	"errors"
	"time"

	"github.com/paretolabs/modelopt/profile"
	"github.com/paretolabs/modelopt/registry"
)

// ErrModelNotFound indicates the user's current model is absent from
// the registry. This is fatal to the run, never retried.
var ErrModelNotFound = errors.New("current model not found in registry")

// Candidate is one cheaper model under consideration, enriched as it
// moves through the layers.
type Candidate struct {
	Entry     registry.Entry     `json:"entry"`
	CostDelta registry.CostDelta `json:"estimated_cost_delta"`

	// FitScore and Rationale are attached by Layer 2.
	FitScore  float64 `json:"fit_score,omitempty"`
	Rationale string  `json:"rationale,omitempty"`
}

// DiscoveryResult is Layer 1 output: every cheaper model found, priced
// against the user's traffic shape.
type DiscoveryResult struct {
	Profile     *profile.Profile `json:"user"`
	CurrentRank int              `json:"current_rank"`
	Candidates  []Candidate      `json:"candidates"`

	// TotalFound counts all cheaper models before truncation to K.
	TotalFound int `json:"total_found"`
}

// RankingResult is Layer 2 output: the top-N candidates by fit score.
type RankingResult struct {
	Profile       *profile.Profile `json:"user"`
	CurrentModel  string           `json:"current_model"`
	CurrentRank   int              `json:"current_rank"`
	UseCase       string           `json:"use_case"`
	TopCandidates []Candidate      `json:"top_candidates"`
}

// Evaluation stages a candidate can end in.
const (
	StageCompleted     = "completed"
	StageFailedA       = "failed_stage_a"
	StageNoCompletions = "no_completions"
)

// Evaluation is the verification verdict for one candidate.
type Evaluation struct {
	Candidate Candidate `json:"candidate"`

	QualityScore float64 `json:"quality_score"`

	// QualityDelta is judged quality minus the incumbent baseline.
	QualityDelta float64 `json:"quality_delta"`

	Confidence float64 `json:"confidence"`
	Stage      string  `json:"evaluation_stage"`

	FormatFailureRate float64 `json:"format_failure_rate"`
	RefusalRate       float64 `json:"refusal_rate"`

	// AvgResponseLength is the Stage B diagnostic; it does not gate.
	AvgResponseLength float64 `json:"avg_response_length"`

	SamplesRun       int     `json:"samples_run"`
	SamplesJudged    int     `json:"samples_judged"`
	VerificationCost float64 `json:"verification_cost_usd"`
}

// VerificationResult is Layer 3 output for one iteration.
type VerificationResult struct {
	Evaluations []Evaluation `json:"verification_results"`
	Acceptable  []Evaluation `json:"acceptable_candidates"`
	NeedsRetry  bool         `json:"needs_retry"`
	Iteration   int          `json:"iteration"`
	TotalCost   float64      `json:"total_verification_cost"`
}

// EvaluationSummary condenses the winning candidate's verification
// evidence for the recommendation payload.
type EvaluationSummary struct {
	QualityScore      float64 `json:"quality_score"`
	FormatFailureRate float64 `json:"format_failure_rate"`
	RefusalRate       float64 `json:"refusal_rate"`
	SamplesEvaluated  int     `json:"samples_evaluated"`
	EvaluationStage   string  `json:"evaluation_stage"`
}

// BusinessImpact projects the recommendation onto monthly volume.
type BusinessImpact struct {
	MonthlyRequestVolume    int     `json:"monthly_request_volume"`
	CurrentMonthlyCostUSD   float64 `json:"current_monthly_cost_usd"`
	ProjectedMonthlyCostUSD float64 `json:"projected_monthly_cost_usd"`
	MonthlySavingsUSD       float64 `json:"projected_monthly_savings_usd"`
	AnnualSavingsUSD        float64 `json:"annual_savings_usd"`
}

// Fallback is the next-best acceptable candidate, offered in case the
// primary recommendation does not work out.
type Fallback struct {
	Model                string  `json:"model"`
	CostSavingPercent    float64 `json:"cost_saving_percent"`
	QualityImpactPercent float64 `json:"quality_impact_percent"`
}

// Recommendation is the successful outcome of an optimization run.
type Recommendation struct {
	CurrentModel            string `json:"current_model"`
	RecommendedModel        string `json:"recommended_model"`
	RecommendedModelDisplay string `json:"recommended_model_display"`

	ProjectedCostSavingPercent    float64 `json:"projected_cost_saving_percent"`
	ProjectedQualityImpactPercent float64 `json:"projected_quality_impact_percent"`
	Confidence                    float64 `json:"confidence"`

	EvaluationSummary EvaluationSummary `json:"evaluation_summary"`
	BusinessImpact    BusinessImpact    `json:"business_impact"`
	Reasons           []string          `json:"reasons"`
	FallbackOption    *Fallback         `json:"fallback_option,omitempty"`

	// Summary is the single business-readable sentence.
	Summary string `json:"summary"`

	ThresholdsUsed      Thresholds `json:"thresholds_used"`
	VerificationCostUSD float64    `json:"verification_cost_usd"`
}

// NoRecommendation is the structured outcome when no candidate clears
// the thresholds. It is a normal result, not an error.
type NoRecommendation struct {
	Reason       string `json:"reason"`
	CurrentModel string `json:"current_model"`
	UserID       string `json:"user_id"`
	Suggestion   string `json:"suggestion"`
}

// Outcome statuses.
const (
	StatusSuccess          = "success"
	StatusNoRecommendation = "no_recommendation"
)

// Outcome is the result of a full optimization run. Exactly one of
// Recommendation and NoRecommendation is set, matching Status.
type Outcome struct {
	Status             string            `json:"status"`
	Timestamp          time.Time         `json:"timestamp"`
	ProcessingTime     time.Duration     `json:"processing_time"`
	IterationsRequired int               `json:"iterations_required"`
	Recommendation     *Recommendation   `json:"recommendation,omitempty"`
	NoRecommendation   *NoRecommendation `json:"no_recommendation,omitempty"`
}
