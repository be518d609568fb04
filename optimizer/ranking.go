package optimizer

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/paretolabs/modelopt/profile"
	"github.com/paretolabs/modelopt/registry"
)

// Ranker is Layer 2: it scores discovered candidates 0-100 against the
// user's use case and constraints and keeps the top N.
type Ranker struct {
	logger *slog.Logger
}

// NewRanker creates the ranking layer.
func NewRanker(logger *slog.Logger) *Ranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ranker{logger: logger}
}

// Execute scores every candidate and returns the top n by fit score,
// each with a one-line rationale.
func (r *Ranker) Execute(d *DiscoveryResult, n int) *RankingResult {
	useCase := d.Profile.UseCase
	constraints := d.Profile.Constraints

	scored := make([]Candidate, len(d.Candidates))
	copy(scored, d.Candidates)
	for i := range scored {
		scored[i].FitScore = FitScore(scored[i], useCase, constraints)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].FitScore > scored[j].FitScore
	})
	if n > 0 && len(scored) > n {
		scored = scored[:n]
	}

	for i := range scored {
		scored[i].Rationale = rationale(scored[i], useCase)
	}

	r.logger.Info("candidates ranked",
		slog.String("use_case", useCase),
		slog.Int("top_n", len(scored)))

	return &RankingResult{
		Profile:       d.Profile,
		CurrentModel:  d.Profile.CurrentModel,
		CurrentRank:   d.CurrentRank,
		UseCase:       useCase,
		TopCandidates: scored,
	}
}

// Fit score component weights.
const (
	strengthWeight    = 40.0
	latencyFullScore  = 20.0
	reliabilityHigh   = 20.0
	reliabilityMedium = 15.0
	reliabilityLow    = 10.0
	costBonusCap      = 20.0
)

// FitScore computes the 0-100 use-case fit of a candidate:
// strength match (0-40), latency fit (0-20), reliability (0-20), and a
// cost-saving bonus (0-20, one point per 5% saving).
func FitScore(c Candidate, useCase string, constraints profile.Constraints) float64 {
	score := 0.0
	caps := c.Entry.Capabilities

	required := registry.StrengthsForUseCase(useCase)
	matches := 0
	for _, tag := range required {
		if caps.HasStrength(tag) {
			matches++
		}
	}
	score += float64(matches) / float64(len(required)) * strengthWeight

	maxLatency := constraints.MaxLatencyMS
	switch caps.LatencyTier {
	case registry.LatencyFast:
		score += latencyFullScore
	case registry.LatencyMedium:
		if maxLatency >= 3000 {
			score += 15
		}
	case registry.LatencySlow:
		if maxLatency >= 5000 {
			score += 10
		}
	}

	switch caps.ReliabilityTier {
	case registry.ReliabilityHigh:
		score += reliabilityHigh
	case registry.ReliabilityMedium:
		score += reliabilityMedium
	default:
		score += reliabilityLow
	}

	bonus := c.CostDelta.PercentSaving / 5
	if bonus > costBonusCap {
		bonus = costBonusCap
	}
	if bonus > 0 {
		score += bonus
	}

	return score
}

func rationale(c Candidate, useCase string) string {
	name := c.Entry.DisplayName
	if name == "" {
		name = c.Entry.ID
	}
	return fmt.Sprintf("%s scores %.1f/100 for %s tasks with %.1f%% cost reduction",
		name, c.FitScore, useCase, c.CostDelta.PercentSaving)
}
