package optimizer

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/paretolabs/modelopt/profile"
	"github.com/paretolabs/modelopt/registry"
)

// Discovery is Layer 1: it finds every registry model cheaper than the
// user's current one and prices the switch at the user's traffic shape.
type Discovery struct {
	registry *registry.Registry
	profiles profile.Store
	logger   *slog.Logger
}

// NewDiscovery creates the discovery layer.
func NewDiscovery(reg *registry.Registry, profiles profile.Store, logger *slog.Logger) *Discovery {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discovery{registry: reg, profiles: profiles, logger: logger}
}

// Execute fetches the user's profile (creating the default on first
// access) and returns up to k cheaper candidates ordered by ascending
// rank. A current model missing from the registry is fatal.
func (d *Discovery) Execute(ctx context.Context, userID string, k int) (*DiscoveryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := profile.GetOrCreate(d.profiles, userID)
	if err != nil {
		return nil, fmt.Errorf("load profile for %s: %w", userID, err)
	}

	current, ok := d.registry.Get(p.CurrentModel)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrModelNotFound, p.CurrentModel)
	}

	cheaper := d.registry.CheaperThan(p.CurrentModel)
	total := len(cheaper)
	if k > 0 && len(cheaper) > k {
		cheaper = cheaper[:k]
	}

	candidates := make([]Candidate, 0, len(cheaper))
	for _, e := range cheaper {
		candidates = append(candidates, Candidate{
			Entry:     e,
			CostDelta: d.registry.CostDelta(p.CurrentModel, e.ID, p.AvgInputTokens, p.AvgOutputTokens),
		})
	}

	d.logger.Info("candidate discovery complete",
		slog.String("user_id", userID),
		slog.String("current_model", p.CurrentModel),
		slog.Int("current_rank", current.Rank),
		slog.Int("found", total),
		slog.Int("selected", len(candidates)))

	return &DiscoveryResult{
		Profile:     p,
		CurrentRank: current.Rank,
		Candidates:  candidates,
		TotalFound:  total,
	}, nil
}
