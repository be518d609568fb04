package optimizer

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/paretolabs/modelopt/cache"
	"github.com/paretolabs/modelopt/history"
	"github.com/paretolabs/modelopt/profile"
	"github.com/paretolabs/modelopt/registry"
	"github.com/paretolabs/modelopt/replay"
)

// Defaults for candidate fan-out per run.
const (
	DefaultKCandidates = 6
	DefaultNTop        = 3
)

// retryNTop is the narrower top-N used on escalation retries.
const retryNTop = 3

// Deps are the explicitly injected collaborators an Orchestrator needs.
type Deps struct {
	Registry *registry.Registry
	Profiles profile.Store
	Cache    *cache.Manager
	History  *history.Service
	Replayer replay.Replayer
	Judge    replay.Judge

	// Tracker is optional spend accounting for verification traffic.
	Tracker *registry.Tracker

	Logger *slog.Logger
}

// Orchestrator drives the three selection layers and renders the final
// business recommendation.
type Orchestrator struct {
	discovery  *Discovery
	ranker     *Ranker
	verifier   *Verifier
	registry   *registry.Registry
	profiles   profile.Store
	cache      *cache.Manager
	history    *history.Service
	replayer   replay.Replayer
	judge      replay.Judge
	thresholds Thresholds
	logger     *slog.Logger
	now        func() time.Time
}

// New wires an orchestrator from its dependencies. Zero threshold
// fields take defaults.
func New(deps Deps, thresholds Thresholds) *Orchestrator {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	thresholds = thresholds.withDefaults()

	return &Orchestrator{
		discovery:  NewDiscovery(deps.Registry, deps.Profiles, logger),
		ranker:     NewRanker(logger),
		verifier:   NewVerifier(deps.Replayer, deps.Judge, deps.Cache, deps.Tracker, thresholds, logger),
		registry:   deps.Registry,
		profiles:   deps.Profiles,
		cache:      deps.Cache,
		history:    deps.History,
		replayer:   deps.Replayer,
		judge:      deps.Judge,
		thresholds: thresholds,
		logger:     logger,
		now:        time.Now,
	}
}

// Thresholds returns the knobs this orchestrator runs with.
func (o *Orchestrator) Thresholds() Thresholds {
	return o.thresholds
}

// DiscoverCandidates exposes Layer 1 directly.
func (o *Orchestrator) DiscoverCandidates(ctx context.Context, userID string, k int) (*DiscoveryResult, error) {
	return o.discovery.Execute(ctx, userID, k)
}

// RankCandidates exposes Layer 2 directly.
func (o *Orchestrator) RankCandidates(d *DiscoveryResult, n int) *RankingResult {
	return o.ranker.Execute(d, n)
}

// Verify exposes Layer 3 directly.
func (o *Orchestrator) Verify(ctx context.Context, rr *RankingResult,
	conversations []replay.Conversation, iteration int) (*VerificationResult, error) {
	return o.verifier.Execute(ctx, rr, conversations, iteration)
}

// RunOptimization runs the full pipeline for one user. Layer errors are
// fatal and returned; a run that simply finds no acceptable candidate
// returns a no-recommendation Outcome with a nil error.
func (o *Orchestrator) RunOptimization(ctx context.Context, userID string, k, n int) (*Outcome, error) {
	start := o.now()
	if k <= 0 {
		k = DefaultKCandidates
	}
	if n <= 0 {
		n = DefaultNTop
	}

	o.logger.Info("optimization started",
		slog.String("user_id", userID),
		slog.Int("k_candidates", k),
		slog.Int("n_top", n))

	discovery, err := o.discovery.Execute(ctx, userID, k)
	if err != nil {
		return nil, fmt.Errorf("candidate discovery: %w", err)
	}
	if len(discovery.Candidates) == 0 {
		return o.noRecommendation(start, 0, discovery.Profile,
			"No cheaper candidates available"), nil
	}

	ranking := o.ranker.Execute(discovery, n)

	var verification *VerificationResult
	iteration := 0
	for iteration <= o.thresholds.MaxIterations {
		verification, err = o.verifier.Execute(ctx, ranking, nil, iteration)
		if err != nil {
			return nil, fmt.Errorf("verification iteration %d: %w", iteration, err)
		}

		if len(verification.Acceptable) > 0 {
			o.logger.Info("acceptable candidate found",
				slog.Int("iteration", iteration))
			break
		}
		if !verification.NeedsRetry {
			break
		}

		o.logger.Info("quality too low, narrowing candidate band",
			slog.Int("next_iteration", iteration+1))
		ranking, err = o.narrowBand(ctx, userID, iteration+1)
		if err != nil {
			return nil, fmt.Errorf("candidate re-discovery: %w", err)
		}
		iteration++
	}

	return o.render(start, iteration, discovery.Profile, verification), nil
}

// narrowBand re-runs discovery and keeps only candidates within a rank
// window that shrinks each iteration, biasing retries toward models
// closer in price to the incumbent.
func (o *Orchestrator) narrowBand(ctx context.Context, userID string, iteration int) (*RankingResult, error) {
	discovery, err := o.discovery.Execute(ctx, userID, DefaultKCandidates)
	if err != nil {
		return nil, err
	}

	maxRankDelta := 6 - iteration
	if maxRankDelta < 1 {
		maxRankDelta = 1
	}

	filtered := make([]Candidate, 0, len(discovery.Candidates))
	for _, c := range discovery.Candidates {
		if c.Entry.Rank-discovery.CurrentRank <= maxRankDelta {
			filtered = append(filtered, c)
		}
	}
	if len(filtered) == 0 {
		filtered = discovery.Candidates
		if len(filtered) > retryNTop {
			filtered = filtered[:retryNTop]
		}
	}
	discovery.Candidates = filtered

	return o.ranker.Execute(discovery, retryNTop), nil
}

// render turns a finished verification into the run outcome.
func (o *Orchestrator) render(start time.Time, iterations int,
	p *profile.Profile, verification *VerificationResult) *Outcome {

	if verification == nil || len(verification.Acceptable) == 0 {
		return o.noRecommendation(start, iterations, p,
			"No model meets the quality and cost thresholds")
	}

	best := verification.Acceptable[0]
	for _, e := range verification.Acceptable[1:] {
		if e.QualityScore > best.QualityScore {
			best = e
		}
	}

	entry := best.Candidate.Entry
	rec := &Recommendation{
		CurrentModel:            p.CurrentModel,
		RecommendedModel:        entry.ID,
		RecommendedModelDisplay: entry.DisplayName,

		ProjectedCostSavingPercent:    round1(best.Candidate.CostDelta.PercentSaving),
		ProjectedQualityImpactPercent: round1(best.QualityDelta),
		Confidence:                    round2(best.Confidence),

		EvaluationSummary: EvaluationSummary{
			QualityScore:      round1(best.QualityScore),
			FormatFailureRate: round1(best.FormatFailureRate),
			RefusalRate:       round1(best.RefusalRate),
			SamplesEvaluated:  best.SamplesRun,
			EvaluationStage:   best.Stage,
		},

		BusinessImpact: businessImpact(p, best.Candidate.CostDelta),

		Reasons: []string{
			fmt.Sprintf("Cost reduction of %.1f%%", best.Candidate.CostDelta.PercentSaving),
			fmt.Sprintf("Quality impact of %.1f%%", best.QualityDelta),
			fmt.Sprintf("Strong fit for %s use case", p.UseCase),
			best.Candidate.Rationale,
		},

		FallbackOption: fallbackFor(verification.Acceptable, best),

		ThresholdsUsed:      o.thresholds,
		VerificationCostUSD: verification.TotalCost,
	}
	rec.Summary = fmt.Sprintf(
		"Switching from %s to %s reduces cost by %.1f%% with a %.1f%% quality impact.",
		p.CurrentModel, entry.DisplayName,
		best.Candidate.CostDelta.PercentSaving, math.Abs(best.QualityDelta))

	return &Outcome{
		Status:             StatusSuccess,
		Timestamp:          o.now().UTC(),
		ProcessingTime:     o.now().Sub(start),
		IterationsRequired: iterations,
		Recommendation:     rec,
	}
}

func (o *Orchestrator) noRecommendation(start time.Time, iterations int,
	p *profile.Profile, reason string) *Outcome {

	o.logger.Info("no recommendation",
		slog.String("user_id", p.UserID),
		slog.String("reason", reason))

	return &Outcome{
		Status:             StatusNoRecommendation,
		Timestamp:          o.now().UTC(),
		ProcessingTime:     o.now().Sub(start),
		IterationsRequired: iterations,
		NoRecommendation: &NoRecommendation{
			Reason:       reason,
			CurrentModel: p.CurrentModel,
			UserID:       p.UserID,
			Suggestion:   "Current model appears to be optimal for your use case and constraints",
		},
	}
}

// businessImpact projects the per-request delta onto monthly volume.
func businessImpact(p *profile.Profile, delta registry.CostDelta) BusinessImpact {
	volume := p.MonthlyRequestVolume
	monthlyCurrent := delta.CurrentCost * float64(volume)
	monthlyNew := delta.CandidateCost * float64(volume)
	savings := monthlyCurrent - monthlyNew

	return BusinessImpact{
		MonthlyRequestVolume:    volume,
		CurrentMonthlyCostUSD:   round2(monthlyCurrent),
		ProjectedMonthlyCostUSD: round2(monthlyNew),
		MonthlySavingsUSD:       round2(savings),
		AnnualSavingsUSD:        round2(savings * 12),
	}
}

// fallbackFor picks the next acceptable candidate after the primary.
func fallbackFor(acceptable []Evaluation, best Evaluation) *Fallback {
	for _, e := range acceptable {
		if e.Candidate.Entry.ID == best.Candidate.Entry.ID {
			continue
		}
		return &Fallback{
			Model:                e.Candidate.Entry.ID,
			CostSavingPercent:    round1(e.Candidate.CostDelta.PercentSaving),
			QualityImpactPercent: round1(e.QualityDelta),
		}
	}
	return nil
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
func round2(v float64) float64 { return math.Round(v*100) / 100 }
