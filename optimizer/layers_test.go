package optimizer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paretolabs/modelopt/profile"
	"github.com/paretolabs/modelopt/registry"
)

func TestDiscovery_CreatesDefaultProfile(t *testing.T) {
	h := newHarness(t, Thresholds{})

	result, err := h.orch.DiscoverCandidates(context.Background(), "fresh-user", 6)
	require.NoError(t, err)

	assert.Equal(t, profile.DefaultModel, result.Profile.CurrentModel)
	assert.Equal(t, 2, result.CurrentRank)
	assert.Equal(t, 2, result.TotalFound)
	require.Len(t, result.Candidates, 2)
}

func TestDiscovery_NeverReturnsEqualOrPricierRank(t *testing.T) {
	h := newHarness(t, Thresholds{})

	result, err := h.orch.DiscoverCandidates(context.Background(), "alice", 6)
	require.NoError(t, err)
	for _, c := range result.Candidates {
		assert.Greater(t, c.Entry.Rank, result.CurrentRank)
	}
}

func TestDiscovery_TruncatesToKButReportsTotal(t *testing.T) {
	h := newHarness(t, Thresholds{})

	result, err := h.orch.DiscoverCandidates(context.Background(), "alice", 1)
	require.NoError(t, err)
	assert.Len(t, result.Candidates, 1)
	assert.Equal(t, 2, result.TotalFound)
	assert.Equal(t, "gpt-3.5-turbo", result.Candidates[0].Entry.ID,
		"candidates come back in ascending rank order")
}

func TestDiscovery_UnknownCurrentModelIsFatal(t *testing.T) {
	h := newHarness(t, Thresholds{})
	require.NoError(t, h.profiles.Put(profile.Profile{
		UserID:       "ghost-user",
		CurrentModel: "retired-model",
		UseCase:      "general",
	}))

	_, err := h.orch.DiscoverCandidates(context.Background(), "ghost-user", 6)
	assert.ErrorIs(t, err, ErrModelNotFound)
}

func TestFitScore_Bounds(t *testing.T) {
	constraints := profile.DefaultConstraints()
	for _, e := range testCatalog() {
		for _, useCase := range []string{"coding", "reasoning", "general", "support_bot"} {
			c := Candidate{Entry: e, CostDelta: registry.CostDelta{PercentSaving: 97}}
			score := FitScore(c, useCase, constraints)
			assert.GreaterOrEqual(t, score, 0.0)
			assert.LessOrEqual(t, score, 100.0)
		}
	}
}

func TestFitScore_Ordering(t *testing.T) {
	delta := registry.CostDelta{PercentSaving: 50}

	weak := Candidate{
		Entry: registry.Entry{Capabilities: registry.Capabilities{
			LatencyTier:     registry.LatencyMedium,
			ReliabilityTier: registry.ReliabilityLow,
		}},
		CostDelta: delta,
	}
	strong := Candidate{
		Entry: registry.Entry{Capabilities: registry.Capabilities{
			LatencyTier:     registry.LatencyFast,
			ReliabilityTier: registry.ReliabilityHigh,
			Strengths:       []string{"coding", "reasoning"},
		}},
		CostDelta: delta,
	}

	tight := profile.Constraints{MaxLatencyMS: 1000}
	assert.Less(t,
		FitScore(weak, "coding", tight),
		FitScore(strong, "coding", tight))
}

func TestFitScore_CostBonusCapped(t *testing.T) {
	base := Candidate{Entry: testCatalog()[3]}
	capped := base
	capped.CostDelta = registry.CostDelta{PercentSaving: 500}
	moderate := base
	moderate.CostDelta = registry.CostDelta{PercentSaving: 100}

	constraints := profile.DefaultConstraints()
	assert.Equal(t,
		FitScore(moderate, "general", constraints),
		FitScore(capped, "general", constraints),
		"cost bonus saturates at 20 points")
}

func TestRanker_SortsAndAnnotates(t *testing.T) {
	h := newHarness(t, Thresholds{})

	discovery, err := h.orch.DiscoverCandidates(context.Background(), "alice", 6)
	require.NoError(t, err)

	ranking := h.orch.RankCandidates(discovery, 2)
	require.Len(t, ranking.TopCandidates, 2)
	assert.GreaterOrEqual(t,
		ranking.TopCandidates[0].FitScore,
		ranking.TopCandidates[1].FitScore)
	for _, c := range ranking.TopCandidates {
		assert.NotEmpty(t, c.Rationale)
		assert.Contains(t, c.Rationale, "cost reduction")
	}
}

func TestVerifier_StageAShortCircuit(t *testing.T) {
	h := newHarness(t, Thresholds{})
	h.replayer.failAll = true

	discovery, err := h.orch.DiscoverCandidates(context.Background(), "alice", 6)
	require.NoError(t, err)
	ranking := h.orch.RankCandidates(discovery, 1)

	result, err := h.orch.Verify(context.Background(), ranking, nil, 0)
	require.NoError(t, err)
	require.Len(t, result.Evaluations, 1)

	eval := result.Evaluations[0]
	assert.Equal(t, StageFailedA, eval.Stage)
	assert.Zero(t, eval.QualityScore)
	assert.Equal(t, -100.0, eval.QualityDelta)
	assert.Equal(t, 0.5, eval.Confidence)
	assert.Zero(t, h.judge.callCount(), "stage A failures never reach the judge")
	assert.Empty(t, result.Acceptable)
}

func TestVerifier_NoCompletionsFallback(t *testing.T) {
	h := newHarness(t, Thresholds{})
	h.replayer.err = errGatewayDown

	discovery, err := h.orch.DiscoverCandidates(context.Background(), "alice", 6)
	require.NoError(t, err)
	ranking := h.orch.RankCandidates(discovery, 1)

	result, err := h.orch.Verify(context.Background(), ranking, nil, 0)
	require.NoError(t, err)
	require.Len(t, result.Evaluations, 1)

	eval := result.Evaluations[0]
	assert.Equal(t, StageNoCompletions, eval.Stage)
	assert.Equal(t, 80.0, eval.QualityScore)
	assert.Equal(t, -10.0, eval.QualityDelta)
	assert.Equal(t, 0.6, eval.Confidence)
}

func TestVerifier_ConfidenceSaturates(t *testing.T) {
	assert.InDelta(t, 0.3, confidenceFor(3), 1e-9)
	assert.InDelta(t, 0.5, confidenceFor(5), 1e-9)
	assert.Equal(t, 0.95, confidenceFor(10))
	assert.Equal(t, 0.95, confidenceFor(50))
}

func TestVerifier_BudgetStopsNewCalls(t *testing.T) {
	h := newHarness(t, Thresholds{MaxVerificationBudgetUSD: 0.0000001})

	discovery, err := h.orch.DiscoverCandidates(context.Background(), "alice", 6)
	require.NoError(t, err)
	ranking := h.orch.RankCandidates(discovery, 1)

	result, err := h.orch.Verify(context.Background(), ranking, nil, 0)
	require.NoError(t, err)
	require.Len(t, result.Evaluations, 1)

	// First call passes (nothing spent yet), then the ceiling trips.
	assert.Equal(t, 1, result.Evaluations[0].SamplesRun)
}

func TestVerifier_CachesResults(t *testing.T) {
	h := newHarness(t, Thresholds{})

	discovery, err := h.orch.DiscoverCandidates(context.Background(), "alice", 6)
	require.NoError(t, err)
	ranking := h.orch.RankCandidates(discovery, 2)

	_, err = h.orch.Verify(context.Background(), ranking, nil, 0)
	require.NoError(t, err)
	callsAfterFirst := h.replayer.callCount()
	assert.Positive(t, callsAfterFirst)

	_, err = h.orch.Verify(context.Background(), ranking, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, callsAfterFirst, h.replayer.callCount(),
		"identical conversations on identical candidates replay from cache")
}

func TestVerifier_NeedsRetryOnlyWithinIterationBudget(t *testing.T) {
	h := newHarness(t, Thresholds{})
	h.judge.defaultScore = 50 // delta -40: never acceptable

	discovery, err := h.orch.DiscoverCandidates(context.Background(), "alice", 6)
	require.NoError(t, err)
	ranking := h.orch.RankCandidates(discovery, 2)

	early, err := h.orch.Verify(context.Background(), ranking, nil, 0)
	require.NoError(t, err)
	assert.True(t, early.NeedsRetry)

	last, err := h.orch.Verify(context.Background(), ranking, nil, h.orch.Thresholds().MaxIterations)
	require.NoError(t, err)
	assert.False(t, last.NeedsRetry)
}
