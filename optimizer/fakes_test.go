package optimizer

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/paretolabs/modelopt/cache"
	"github.com/paretolabs/modelopt/history"
	"github.com/paretolabs/modelopt/profile"
	"github.com/paretolabs/modelopt/registry"
	"github.com/paretolabs/modelopt/replay"
)

func testCatalog() []registry.Entry {
	return []registry.Entry{
		{
			ID: "gpt-4-turbo", DisplayName: "GPT-4 Turbo", Provider: "openai",
			GatewaySlug: "@openai/gpt-4-turbo", Rank: 1,
			Pricing: registry.Pricing{InputPer1K: 0.01, OutputPer1K: 0.03},
			Capabilities: registry.Capabilities{
				LatencyTier:     registry.LatencySlow,
				ReliabilityTier: registry.ReliabilityHigh,
				Strengths:       []string{"reasoning", "coding"},
			},
		},
		{
			ID: "gpt-4o", DisplayName: "GPT-4o", Provider: "openai",
			GatewaySlug: "@openai/gpt-4o", Rank: 2,
			Pricing: registry.Pricing{InputPer1K: 0.005, OutputPer1K: 0.015},
			Capabilities: registry.Capabilities{
				LatencyTier:     registry.LatencyMedium,
				ReliabilityTier: registry.ReliabilityHigh,
				Strengths:       []string{"general", "reasoning"},
			},
		},
		{
			ID: "gpt-3.5-turbo", DisplayName: "GPT-3.5 Turbo", Provider: "openai",
			GatewaySlug: "@openai/gpt-3.5-turbo", Rank: 3,
			Pricing: registry.Pricing{InputPer1K: 0.0005, OutputPer1K: 0.0015},
			Capabilities: registry.Capabilities{
				LatencyTier:     registry.LatencyFast,
				ReliabilityTier: registry.ReliabilityHigh,
				Strengths:       []string{"general", "fast"},
			},
		},
		{
			ID: "gpt-4o-mini", DisplayName: "GPT-4o Mini", Provider: "openai",
			GatewaySlug: "@openai/gpt-4o-mini", Rank: 4,
			Pricing: registry.Pricing{InputPer1K: 0.00015, OutputPer1K: 0.0006},
			Capabilities: registry.Capabilities{
				LatencyTier:     registry.LatencyFast,
				ReliabilityTier: registry.ReliabilityMedium,
				Strengths:       []string{"general", "cost_effective"},
			},
		},
	}
}

// fakeReplayer answers every conversation successfully, embedding the
// model slug in the response so the fake judge can score per model.
type fakeReplayer struct {
	mu    sync.Mutex
	calls int

	// failAll makes every completion a format failure.
	failAll bool

	// err aborts every replay with a structural error.
	err error
}

func (f *fakeReplayer) Replay(_ context.Context, conv replay.Conversation, mc replay.ModelConfig) (*replay.Completion, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if f.failAll {
		return &replay.Completion{
			ModelName: mc.Name,
			Success:   false,
			Err:       "malformed output",
		}, nil
	}
	return &replay.Completion{
		ModelName:    mc.Name,
		Provider:     "openai",
		Response:     "[" + mc.Slug + "] answer: " + conv.Question(),
		TokensInput:  100,
		TokensOutput: 50,
		LatencyMS:    120,
		Cost:         mc.Cost(100, 50),
		Success:      true,
	}, nil
}

func (f *fakeReplayer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeJudge scores responses by the model slug embedded in them.
type fakeJudge struct {
	mu    sync.Mutex
	calls int

	// scores maps a response substring to an overall score.
	// Unmatched responses get defaultScore.
	scores       map[string]float64
	defaultScore float64

	// err makes every evaluation fail at the transport level.
	err error
}

func (f *fakeJudge) Evaluate(_ context.Context, _, response string) (*replay.QualityScore, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	score := f.defaultScore
	for marker, s := range f.scores {
		if marker != "" && strings.Contains(response, marker) {
			score = s
			break
		}
	}
	return &replay.QualityScore{
		OverallScore: score,
		Confidence:   0.9,
	}, nil
}

func (f *fakeJudge) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

var errGatewayDown = errors.New("gateway down")

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	orch     *Orchestrator
	registry *registry.Registry
	profiles profile.Store
	cache    *cache.Manager
	history  *history.Service
	replayer *fakeReplayer
	judge    *fakeJudge
}

func newHarness(t *testing.T, thresholds Thresholds) *harness {
	t.Helper()

	logger := discardLogger()
	reg := registry.New(testCatalog(), "1.0.0", registry.WithLogger(logger))
	profiles := profile.NewMemStore()
	mgr := cache.NewManager(cache.NewMemStore(), cache.WithLogger(logger))
	hist := history.NewService(history.NewMemStore(), history.WithLogger(logger))
	replayer := &fakeReplayer{}
	judge := &fakeJudge{defaultScore: 88}

	orch := New(Deps{
		Registry: reg,
		Profiles: profiles,
		Cache:    mgr,
		History:  hist,
		Replayer: replayer,
		Judge:    judge,
		Tracker:  registry.NewTracker(),
		Logger:   logger,
	}, thresholds)

	return &harness{
		orch:     orch,
		registry: reg,
		profiles: profiles,
		cache:    mgr,
		history:  hist,
		replayer: replayer,
		judge:    judge,
	}
}
