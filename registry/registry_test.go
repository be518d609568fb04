package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testEntries() []Entry {
	return []Entry{
		{
			ID: "gpt-4-turbo", DisplayName: "GPT-4 Turbo", Provider: "openai", Rank: 1,
			Pricing:      Pricing{InputPer1K: 0.01, OutputPer1K: 0.03},
			Capabilities: Capabilities{LatencyTier: LatencySlow, ReliabilityTier: ReliabilityHigh, Strengths: []string{"reasoning", "coding"}},
		},
		{
			ID: "gpt-4o", DisplayName: "GPT-4o", Provider: "openai", Rank: 2,
			Pricing:      Pricing{InputPer1K: 0.005, OutputPer1K: 0.015},
			Capabilities: Capabilities{LatencyTier: LatencyMedium, ReliabilityTier: ReliabilityHigh, Strengths: []string{"general", "reasoning"}},
		},
		{
			ID: "gpt-3.5-turbo", DisplayName: "GPT-3.5 Turbo", Provider: "openai", Rank: 3,
			Pricing:      Pricing{InputPer1K: 0.0005, OutputPer1K: 0.0015},
			Capabilities: Capabilities{LatencyTier: LatencyFast, ReliabilityTier: ReliabilityHigh, Strengths: []string{"general", "fast"}},
		},
		{
			ID: "gpt-4o-mini", DisplayName: "GPT-4o Mini", Provider: "openai", Rank: 4,
			Pricing:      Pricing{InputPer1K: 0.00015, OutputPer1K: 0.0006},
			Capabilities: Capabilities{LatencyTier: LatencyFast, ReliabilityTier: ReliabilityMedium, Strengths: []string{"general", "cost_effective"}},
		},
	}
}

func TestRegistry_CheaperThan_StrictlyHigherRank(t *testing.T) {
	r := New(testEntries(), "1.0.0")

	cheaper := r.CheaperThan("gpt-4o")
	require.Len(t, cheaper, 2)
	for _, e := range cheaper {
		assert.Greater(t, e.Rank, 2, "only strictly cheaper ranks may appear")
	}
	// Ascending rank order.
	assert.Equal(t, "gpt-3.5-turbo", cheaper[0].ID)
	assert.Equal(t, "gpt-4o-mini", cheaper[1].ID)
}

func TestRegistry_CheaperThan_CheapestModel(t *testing.T) {
	r := New(testEntries(), "1.0.0")
	assert.Empty(t, r.CheaperThan("gpt-4o-mini"))
}

func TestRegistry_CheaperThan_UnknownModel(t *testing.T) {
	r := New(testEntries(), "1.0.0")
	assert.Nil(t, r.CheaperThan("nope"))
}

func TestRegistry_RankRange(t *testing.T) {
	r := New(testEntries(), "1.0.0")

	got := r.RankRange(2, 3)
	require.Len(t, got, 2)
	assert.Equal(t, "gpt-4o", got[0].ID)
	assert.Equal(t, "gpt-3.5-turbo", got[1].ID)
}

func TestRegistry_ForUseCase_OrdersByMatchCount(t *testing.T) {
	r := New(testEntries(), "1.0.0")

	got := r.ForUseCase("coding")
	require.NotEmpty(t, got)
	assert.Equal(t, "gpt-4-turbo", got[0].ID, "only model with both coding strengths comes first")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func([]Entry) []Entry
		wantErr string
	}{
		{
			name:   "valid catalog",
			mutate: func(e []Entry) []Entry { return e },
		},
		{
			name:    "empty catalog",
			mutate:  func([]Entry) []Entry { return nil },
			wantErr: "empty catalog",
		},
		{
			name: "duplicate id",
			mutate: func(e []Entry) []Entry {
				e[1].ID = e[0].ID
				e[1].Rank = 9
				return e
			},
			wantErr: "duplicate model id",
		},
		{
			name: "duplicate rank",
			mutate: func(e []Entry) []Entry {
				e[1].Rank = e[0].Rank
				return e
			},
			wantErr: "share rank",
		},
		{
			name: "pricing out of rank order",
			mutate: func(e []Entry) []Entry {
				e[3].Pricing.InputPer1K = 1.0
				return e
			},
			wantErr: "inconsistent with pricing",
		},
		{
			name: "negative pricing",
			mutate: func(e []Entry) []Entry {
				e[0].Pricing.InputPer1K = -1
				return e
			},
			wantErr: "negative pricing",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(tt.mutate(testEntries()))
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestRegistry_Reload_FiresHooksOnVersionChange(t *testing.T) {
	r := New(testEntries(), "1.0.0")

	var gotComponent, gotVersion string
	calls := 0
	r.OnVersionChange(func(component, version string) {
		gotComponent, gotVersion = component, version
		calls++
	})

	require.NoError(t, r.Reload(testEntries(), "1.1.0"))
	assert.Equal(t, 1, calls)
	assert.Equal(t, Component, gotComponent)
	assert.Equal(t, "1.1.0", gotVersion)

	// Same version again: no hook.
	require.NoError(t, r.Reload(testEntries(), "1.1.0"))
	assert.Equal(t, 1, calls)
}

func TestRegistry_Reload_RejectsInvalidCatalog(t *testing.T) {
	r := New(testEntries(), "1.0.0")

	bad := testEntries()
	bad[1].ID = bad[0].ID
	bad[1].Rank = 9
	require.Error(t, r.Reload(bad, "2.0.0"))

	assert.Equal(t, "1.0.0", r.Version(), "failed reload must not bump the version")
	_, ok := r.Get("gpt-4o")
	assert.True(t, ok, "failed reload must keep the old snapshot")
}

func TestCostDelta(t *testing.T) {
	r := New(testEntries(), "1.0.0")

	t.Run("cheaper candidate saves", func(t *testing.T) {
		d := r.CostDelta("gpt-4o", "gpt-4o-mini", 500, 200)
		assert.Greater(t, d.PercentSaving, 0.0)
		assert.Greater(t, d.CurrentCost, d.CandidateCost)
	})

	t.Run("zero current cost yields zero percent", func(t *testing.T) {
		d := r.CostDelta("unknown-model", "gpt-4o-mini", 500, 200)
		assert.Zero(t, d.PercentSaving)
		assert.Zero(t, d.CurrentCost)
	})

	t.Run("exact formula", func(t *testing.T) {
		// gpt-4o at 500 in / 200 out: 0.5*0.005 + 0.2*0.015 = 0.0055
		assert.InDelta(t, 0.0055, r.Cost("gpt-4o", 500, 200), 1e-9)
	})
}

func TestDefaultCatalog_Valid(t *testing.T) {
	require.NoError(t, Validate(DefaultCatalog()))

	r := New(DefaultCatalog(), DefaultCatalogVersion)
	e, ok := r.Get("gpt-4o")
	require.True(t, ok)
	assert.Equal(t, 2, e.Rank)
}

func TestTracker(t *testing.T) {
	tr := NewTracker()
	tr.Record("gpt-4o-mini", 100, 50, 0.001)
	tr.Record("gpt-4o-mini", 200, 80, 0.002)
	tr.Record("gpt-4o", 300, 100, 0.01)

	mini := tr.Usage("gpt-4o-mini")
	assert.Equal(t, 2, mini.Requests)
	assert.Equal(t, 430, mini.TotalTokens())
	assert.InDelta(t, 0.003, mini.CostUSD, 1e-9)

	total := tr.Total()
	assert.Equal(t, 3, total.Requests)
	assert.InDelta(t, 0.013, total.CostUSD, 1e-9)

	tr.Reset()
	assert.Zero(t, tr.Total().Requests)
}
